package satchel

import (
	"context"

	"github.com/google/uuid"
)

// Collection is a handle to one document collection. Handles are cheap and
// safe to share; all of them address the same underlying table.
type Collection struct {
	db    *DB
	table *Table
	path  string
}

// Path returns the collection path.
func (c *Collection) Path() string { return c.path }

// Len returns the number of documents in the collection.
func (c *Collection) Len() int { return c.table.Len() }

// Rev returns the collection revision, which increases with every mutation.
func (c *Collection) Rev() uint64 { return c.table.Rev() }

// Insert stores a new document and returns its id. When the document carries
// no id, one is minted. Fails with ErrConflict if the id is taken.
func (c *Collection) Insert(doc Document) (string, error) {
	id := doc.ID()
	if id == "" {
		id = uuid.NewString()
	}
	if err := c.table.Insert(id, doc); err != nil {
		return "", err
	}
	c.emit(OpInsert, id, nil)
	return id, nil
}

// Put stores a document under id, inserting or replacing as needed.
func (c *Collection) Put(id string, doc Document) error {
	before, existed := c.table.Get(id)
	if err := c.table.Put(id, doc); err != nil {
		return err
	}
	if existed {
		c.emit(OpUpdate, id, before)
	} else {
		c.emit(OpInsert, id, nil)
	}
	return nil
}

// Update replaces an existing document, failing with ErrNotFound if the id
// is absent.
func (c *Collection) Update(id string, doc Document) error {
	before, _ := c.table.Get(id)
	if err := c.table.Replace(id, doc); err != nil {
		return err
	}
	c.emit(OpUpdate, id, before)
	return nil
}

// Patch merges fields into the document under id.
func (c *Collection) Patch(id string, fields Document) error {
	before, _ := c.table.Get(id)
	if err := c.table.Patch(id, fields); err != nil {
		return err
	}
	c.emit(OpUpdate, id, before)
	return nil
}

// Get returns a copy of the document under id.
func (c *Collection) Get(id string) (Document, error) {
	doc, ok := c.table.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Delete removes the document under id, reporting whether it existed.
func (c *Collection) Delete(id string) bool {
	before, existed := c.table.Get(id)
	if !c.table.Delete(id) {
		return false
	}
	if existed {
		c.emit(OpDelete, id, before)
	}
	return true
}

// Find runs a query and returns the matching documents in query order.
func (c *Collection) Find(ctx context.Context, q *Query) ([]Document, error) {
	page, err := c.FindPage(ctx, q)
	if err != nil {
		return nil, err
	}
	return page.Documents, nil
}

// FindPage runs a query and returns one page of results with continuation
// cursors. Results are served from the query cache when the collection has
// not changed since an identical query ran.
func (c *Collection) FindPage(ctx context.Context, q *Query) (*Page, error) {
	ctx, cancel := c.db.queryContext(ctx)
	defer cancel()

	docs, rev := c.table.snapshotRev()

	key := cacheKey(c.path, rev, q)
	if page, ok := c.db.cache.get(key); ok {
		return clonePage(page), nil
	}

	res, err := runQuery(ctx, c.path, q, docs)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = &Query{}
	}
	page := buildPage(q, res, docs)

	c.db.cache.put(key, clonePage(page))
	return page, nil
}

// Count returns the number of documents matching rule. A nil rule counts
// every document.
func (c *Collection) Count(ctx context.Context, rule Rule) (int, error) {
	page, err := c.FindPage(ctx, &Query{Rule: rule, Limit: 1})
	if err != nil {
		return 0, err
	}
	return page.Total, nil
}

// Watch creates a live view of the query: its subscribers receive the
// current result page, then a fresh page after every change batch that
// affects it. Watch queries do not take cursors.
func (c *Collection) Watch(q *Query) (*View, error) {
	return newView(c.table, q)
}

// Listen registers a raw change-batch listener on the collection's table and
// returns its remove function.
func (c *Collection) Listen(fn func(ChangeBatch)) func() {
	return c.table.Listen(fn)
}

// emit publishes a change event to the database feed. The after image and
// revision are read back from the table, so the event reflects the write
// that just happened (or a later one, under concurrent writers).
func (c *Collection) emit(op ChangeOp, id string, before Document) {
	if c.db.feed == nil {
		return
	}
	var after Document
	if op != OpDelete {
		after, _ = c.table.Get(id)
	}
	rev, _ := c.table.DocRev(id)
	if op == OpDelete {
		rev = c.table.Rev()
	}
	c.db.feed.Emit(ChangeEvent{
		Collection: c.path,
		Op:         op,
		DocID:      id,
		Before:     before,
		After:      after,
		Rev:        rev,
	})
}
