package satchel

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ChangeBatch reports the ids mutated in one burst of table writes. Batches
// are delivered on the tick after the writes, so several synchronous
// mutations coalesce into a single notification.
type ChangeBatch struct {
	Collection string
	Rev        uint64
	IDs        []string
}

// Table stores one collection's documents keyed by id. All operations are
// safe for concurrent use. Mutations bump the table revision, record the
// changed id, and wake the dispatcher, which delivers coalesced ChangeBatch
// notifications to listeners outside the table lock.
type Table struct {
	path string

	mu        sync.RWMutex
	docs      map[string]Document
	revs      map[string]uint64
	rev       uint64
	pending   map[string]struct{}
	listeners map[string]func(ChangeBatch)

	wake      chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newTable(path string) *Table {
	t := &Table{
		path:      path,
		docs:      make(map[string]Document),
		revs:      make(map[string]uint64),
		pending:   make(map[string]struct{}),
		listeners: make(map[string]func(ChangeBatch)),
		wake:      make(chan struct{}, 1),
		closeCh:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.dispatch()
	return t
}

// Path returns the collection path this table backs.
func (t *Table) Path() string { return t.path }

// Put stores a document under id, replacing any existing document.
func (t *Table) Put(id string, doc Document) error {
	if id == "" {
		return ErrNotFound
	}
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	stored["id"] = id

	t.mu.Lock()
	t.docs[id] = stored
	t.rev++
	t.revs[id] = t.rev
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	t.signal()
	return nil
}

// Insert stores a document under id, failing with ErrConflict if the id is
// already taken.
func (t *Table) Insert(id string, doc Document) error {
	if id == "" {
		return ErrNotFound
	}
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	stored["id"] = id

	t.mu.Lock()
	if _, ok := t.docs[id]; ok {
		t.mu.Unlock()
		return ErrConflict
	}
	t.docs[id] = stored
	t.rev++
	t.revs[id] = t.rev
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	t.signal()
	return nil
}

// Replace overwrites an existing document, failing with ErrNotFound if the
// id is absent.
func (t *Table) Replace(id string, doc Document) error {
	stored := doc.Clone()
	if stored == nil {
		stored = Document{}
	}
	stored["id"] = id

	t.mu.Lock()
	if _, ok := t.docs[id]; !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	t.docs[id] = stored
	t.rev++
	t.revs[id] = t.rev
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	t.signal()
	return nil
}

// Get returns a copy of the document under id.
func (t *Table) Get(id string) (Document, bool) {
	t.mu.RLock()
	doc, ok := t.docs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// Patch merges fields into the document under id.
func (t *Table) Patch(id string, fields Document) error {
	t.mu.Lock()
	doc, ok := t.docs[id]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	doc.Merge(fields)
	doc["id"] = id
	t.rev++
	t.revs[id] = t.rev
	t.pending[id] = struct{}{}
	t.mu.Unlock()

	t.signal()
	return nil
}

// Delete removes the document under id, reporting whether it existed.
func (t *Table) Delete(id string) bool {
	t.mu.Lock()
	_, ok := t.docs[id]
	if ok {
		delete(t.docs, id)
		delete(t.revs, id)
		t.rev++
		t.pending[id] = struct{}{}
	}
	t.mu.Unlock()

	if ok {
		t.signal()
	}
	return ok
}

// Len returns the number of documents in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.docs)
}

// Rev returns the table revision, which increases with every mutation.
func (t *Table) Rev() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rev
}

// DocRev returns the revision at which the document was last written.
func (t *Table) DocRev(id string) (uint64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rev, ok := t.revs[id]
	return rev, ok
}

// IDs returns the ids of all documents, sorted.
func (t *Table) IDs() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.docs))
	for id := range t.docs {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of all documents keyed by id.
func (t *Table) Snapshot() map[string]Document {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Document, len(t.docs))
	for id, doc := range t.docs {
		out[id] = doc.Clone()
	}
	return out
}

// snapshotRev returns the snapshot together with the revision it was taken
// at, under a single lock acquisition.
func (t *Table) snapshotRev() (map[string]Document, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Document, len(t.docs))
	for id, doc := range t.docs {
		out[id] = doc.Clone()
	}
	return out, t.rev
}

// loadDocs replaces the table contents wholesale, as one change batch.
// Used when restoring a snapshot.
func (t *Table) loadDocs(docs map[string]Document) {
	t.mu.Lock()
	for id := range t.docs {
		t.pending[id] = struct{}{}
	}
	t.docs = make(map[string]Document, len(docs))
	t.revs = make(map[string]uint64, len(docs))
	for id, doc := range docs {
		stored := doc.Clone()
		stored["id"] = id
		t.rev++
		t.docs[id] = stored
		t.revs[id] = t.rev
		t.pending[id] = struct{}{}
	}
	t.mu.Unlock()
	t.signal()
}

// Listen registers a change listener and returns its remove function.
// Listeners run on the dispatcher goroutine, one batch at a time, and must
// not block for long.
func (t *Table) Listen(fn func(ChangeBatch)) func() {
	id := uuid.NewString()
	t.mu.Lock()
	t.listeners[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Table) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Table) dispatch() {
	defer t.wg.Done()
	for {
		select {
		case <-t.closeCh:
			t.deliver()
			return
		case <-t.wake:
			t.deliver()
		}
	}
}

func (t *Table) deliver() {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	t.pending = make(map[string]struct{})
	rev := t.rev
	listeners := make([]func(ChangeBatch), 0, len(t.listeners))
	for _, fn := range t.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	sort.Strings(ids)
	batch := ChangeBatch{Collection: t.path, Rev: rev, IDs: ids}
	for _, fn := range listeners {
		fn(batch)
	}
}

func (t *Table) close() {
	t.closeOnce.Do(func() {
		close(t.closeCh)
	})
	t.wg.Wait()
}
