package satchel

import "testing"

func TestQueryCacheHitMiss(t *testing.T) {
	c := newQueryCache(4)
	if c == nil {
		t.Fatal("newQueryCache(4) returned nil")
	}

	key := cacheKey("tasks", 1, &Query{Rule: Eq("done", false)})
	if _, ok := c.get(key); ok {
		t.Fatal("empty cache should miss")
	}

	c.put(key, &Page{Total: 3})
	page, ok := c.get(key)
	if !ok || page.Total != 3 {
		t.Fatalf("get = %+v (%v), want cached page", page, ok)
	}

	stats := c.stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 entry", stats)
	}
}

func TestQueryCacheKeyEmbedsRevision(t *testing.T) {
	q := &Query{Rule: Eq("done", false)}
	if cacheKey("tasks", 1, q) == cacheKey("tasks", 2, q) {
		t.Error("different revisions must produce different keys")
	}
	if cacheKey("tasks", 1, q) == cacheKey("users", 1, q) {
		t.Error("different collections must produce different keys")
	}
}

func TestQueryCacheDisabled(t *testing.T) {
	for _, size := range []int{0, -1} {
		c := newQueryCache(size)
		if c != nil {
			t.Fatalf("newQueryCache(%d) should disable caching", size)
		}
		// The nil cache is safe to use.
		if _, ok := c.get("k"); ok {
			t.Error("nil cache should always miss")
		}
		c.put("k", &Page{})
		if s := c.stats(); s.Entries != 0 {
			t.Errorf("nil cache stats = %+v", s)
		}
	}
}

func TestClonePage(t *testing.T) {
	page := &Page{
		Documents:  []Document{{"id": "a", "n": 1}},
		Total:      1,
		NextCursor: "next",
	}
	clone := clonePage(page)
	clone.Documents[0]["n"] = 99

	if page.Documents[0]["n"] != 1 {
		t.Error("clone mutation leaked into the original page")
	}
	if clone.Total != 1 || clone.NextCursor != "next" {
		t.Errorf("clone = %+v", clone)
	}
}
