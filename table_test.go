package satchel

import (
	"errors"
	"testing"
	"time"
)

func TestTablePutGet(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	if err := tbl.Put("b1", Document{"title": "go"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	doc, ok := tbl.Get("b1")
	if !ok {
		t.Fatal("Get should find the stored document")
	}
	if doc["title"] != "go" || doc["id"] != "b1" {
		t.Errorf("doc = %v", doc)
	}

	// Returned documents are copies.
	doc["title"] = "mutated"
	again, _ := tbl.Get("b1")
	if again["title"] != "go" {
		t.Error("mutating a Get result should not touch stored state")
	}
}

func TestTableInsertConflict(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	if err := tbl.Insert("b1", Document{}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := tbl.Insert("b1", Document{}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate Insert = %v, want ErrConflict", err)
	}
}

func TestTableReplaceMissing(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	if err := tbl.Replace("nope", Document{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Replace of missing id = %v, want ErrNotFound", err)
	}
}

func TestTablePatch(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	_ = tbl.Put("b1", Document{"title": "go", "meta": map[string]any{"pages": 100}})
	if err := tbl.Patch("b1", Document{"meta": Document{"pages": 200}}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	doc, _ := tbl.Get("b1")
	if got, _ := doc.Field("meta.pages"); got != 200 {
		t.Errorf("meta.pages = %v, want 200", got)
	}
	if doc["title"] != "go" {
		t.Error("Patch should leave untouched fields alone")
	}

	if err := tbl.Patch("missing", Document{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Patch of missing id = %v, want ErrNotFound", err)
	}
}

func TestTableDelete(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	_ = tbl.Put("b1", Document{})
	if !tbl.Delete("b1") {
		t.Error("Delete of existing id should report true")
	}
	if tbl.Delete("b1") {
		t.Error("Delete of missing id should report false")
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d, want 0", tbl.Len())
	}
}

func TestTableRevMonotonic(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	var last uint64
	for i := 0; i < 5; i++ {
		_ = tbl.Put("b1", Document{"i": i})
		rev := tbl.Rev()
		if rev <= last {
			t.Fatalf("rev %d not greater than previous %d", rev, last)
		}
		last = rev
	}
	docRev, ok := tbl.DocRev("b1")
	if !ok || docRev != last {
		t.Errorf("DocRev = %d (%v), want %d", docRev, ok, last)
	}
}

func TestTableCoalescesBatches(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	batches := make(chan ChangeBatch, 16)
	// Block the dispatcher on the first delivery so the writes below land in
	// one pending set.
	gate := make(chan struct{})
	remove := tbl.Listen(func(b ChangeBatch) {
		<-gate
		batches <- b
	})
	defer remove()

	_ = tbl.Put("a", Document{})
	_ = tbl.Put("b", Document{})
	_ = tbl.Put("a", Document{"v": 2})
	_ = tbl.Delete("b")
	close(gate)

	seen := make(map[string]bool)
	deliveries := 0
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case b := <-batches:
			deliveries++
			if b.Collection != "books" {
				t.Errorf("batch collection = %q", b.Collection)
			}
			for _, id := range b.IDs {
				seen[id] = true
			}
		case <-deadline:
			t.Fatalf("saw ids %v after %d deliveries, want both a and b", seen, deliveries)
		}
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("changed ids = %v, want a and b", seen)
	}
	// Four writes must not mean four deliveries.
	if deliveries >= 4 {
		t.Errorf("%d deliveries for 4 writes, expected coalescing", deliveries)
	}
}

func TestTableListenerRemove(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	calls := make(chan struct{}, 8)
	remove := tbl.Listen(func(ChangeBatch) { calls <- struct{}{} })

	_ = tbl.Put("a", Document{})
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("listener should fire for the first write")
	}

	remove()
	_ = tbl.Put("b", Document{})
	select {
	case <-calls:
		t.Error("removed listener should not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTableSnapshotAndLoad(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	_ = tbl.Put("b1", Document{"title": "one"})
	_ = tbl.Put("b2", Document{"title": "two"})

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot holds %d docs, want 2", len(snap))
	}
	// Snapshot is a deep copy.
	snap["b1"]["title"] = "mutated"
	if doc, _ := tbl.Get("b1"); doc["title"] != "one" {
		t.Error("snapshot mutation leaked into the table")
	}

	other := newTable("restored")
	defer other.close()
	other.loadDocs(snap)
	if other.Len() != 2 {
		t.Errorf("restored Len = %d, want 2", other.Len())
	}
	doc, ok := other.Get("b2")
	if !ok || doc["title"] != "two" {
		t.Errorf("restored b2 = %v (%v)", doc, ok)
	}
}

func TestTableIDsSorted(t *testing.T) {
	tbl := newTable("books")
	defer tbl.close()

	for _, id := range []string{"c", "a", "b"} {
		_ = tbl.Put(id, Document{})
	}
	ids := tbl.IDs()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("IDs = %v, want [a b c]", ids)
	}
}
