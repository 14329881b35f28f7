package satchel

import (
	"context"
	"sort"
	"sync"
)

// View is a live query: an ordered projection of the documents matching a
// query, kept current as the table changes. Only the ids named in a change
// batch are re-evaluated, so an update touches work proportional to the
// change, not to the collection.
//
// Subscribers receive the projected page as a whole via a conflating State;
// intermediate snapshots may be skipped under load but the latest one is
// always delivered.
type View struct {
	table *Table
	query *Query

	mu      sync.Mutex
	matched map[string]Document
	order   []string
	closed  bool

	state    *State[[]Document]
	unlisten func()
}

func newView(t *Table, q *Query) (*View, error) {
	if q == nil {
		q = &Query{}
	}
	if q.After != "" || q.Before != "" {
		return nil, newQueryError(QueryErrorTypeInvalid, "watch queries do not take cursors", t.path, nil)
	}

	docs := t.Snapshot()
	res, err := runQuery(context.Background(), t.path, &Query{Rule: q.Rule, Sort: q.Sort}, docs)
	if err != nil {
		return nil, err
	}

	v := &View{
		table:   t,
		query:   q,
		matched: make(map[string]Document, len(res.ids)),
		order:   res.ids,
	}
	for _, id := range res.ids {
		v.matched[id] = docs[id]
	}
	v.state = NewState(v.window())
	v.unlisten = t.Listen(v.apply)
	return v, nil
}

// Snapshot returns the current projection.
func (v *View) Snapshot() []Document {
	return v.state.Get()
}

// Subscribe attaches a subscription that first receives the current
// projection, then an updated projection after each change batch that
// affects it.
func (v *View) Subscribe() *Subscription[[]Document] {
	return v.state.Subscribe()
}

// Len returns the number of matching documents, ignoring offset/limit.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.order)
}

// Close detaches the view from its table and completes its stream.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.unlisten()
	v.state.Close()
}

// apply folds one change batch into the projection. Runs on the table's
// dispatcher goroutine.
func (v *View) apply(batch ChangeBatch) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}

	changed := false
	for _, id := range batch.IDs {
		doc, exists := v.table.Get(id)
		old, wasIn := v.matched[id]
		nowIn := exists && (v.query.Rule == nil || v.query.Rule.Match(doc))

		switch {
		case wasIn && !nowIn:
			v.removeLocked(id, old)
			delete(v.matched, id)
			changed = true
		case !wasIn && nowIn:
			v.matched[id] = doc
			v.insertLocked(id, doc)
			changed = true
		case wasIn && nowIn:
			v.removeLocked(id, old)
			v.matched[id] = doc
			v.insertLocked(id, doc)
			changed = true
		}
	}

	if !changed {
		v.mu.Unlock()
		return
	}
	snap := v.window()
	v.mu.Unlock()

	v.state.Set(snap)
}

// removeLocked deletes id from the order slice, locating it by binary search
// against the document's previous sort position.
func (v *View) removeLocked(id string, old Document) {
	keys := v.query.Sort
	i := sort.Search(len(v.order), func(i int) bool {
		cur := v.order[i]
		return compareDocs(keys, v.matched[cur], cur, old, id) >= 0
	})
	if i >= len(v.order) || v.order[i] != id {
		// Stored position is stale relative to the slice; fall back to a scan.
		i = -1
		for j, cur := range v.order {
			if cur == id {
				i = j
				break
			}
		}
		if i < 0 {
			return
		}
	}
	v.order = append(v.order[:i], v.order[i+1:]...)
}

func (v *View) insertLocked(id string, doc Document) {
	keys := v.query.Sort
	i := sort.Search(len(v.order), func(i int) bool {
		cur := v.order[i]
		return compareDocs(keys, v.matched[cur], cur, doc, id) >= 0
	})
	v.order = append(v.order, "")
	copy(v.order[i+1:], v.order[i:])
	v.order[i] = id
}

// window applies the query's offset/limit to the ordered match set and
// clones the page. Callers hold v.mu.
func (v *View) window() []Document {
	start := v.query.Offset
	if start > len(v.order) {
		start = len(v.order)
	}
	end := len(v.order)
	if v.query.Limit > 0 && start+v.query.Limit < end {
		end = start + v.query.Limit
	}

	out := make([]Document, 0, end-start)
	for _, id := range v.order[start:end] {
		out = append(out, v.matched[id].Clone())
	}
	return out
}
