package satchel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	keys := []SortKey{Desc("rank"), Asc("name")}
	doc := Document{"rank": 4, "name": "ada"}

	cur := EncodeCursor(keys, doc, "d1")
	p, err := decodeCursor(cur, keys)
	if err != nil {
		t.Fatalf("decodeCursor: %v", err)
	}
	if p.ID != "d1" {
		t.Errorf("ID = %q, want d1", p.ID)
	}
	if len(p.Keys) != 2 || p.Keys[0] != float64(4) || p.Keys[1] != "ada" {
		t.Errorf("Keys = %v, want [4 ada]", p.Keys)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	keys := []SortKey{Asc("n")}

	for _, bad := range []string{"!!!not-base64!!!", "bm90LWpzb24"} {
		if _, err := decodeCursor(bad, keys); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("decodeCursor(%q) = %v, want ErrInvalidCursor", bad, err)
		}
	}
}

func TestDecodeCursorRejectsSortMismatch(t *testing.T) {
	cur := EncodeCursor([]SortKey{Asc("a")}, Document{"a": 1}, "d1")

	// Different field, different direction, different key count.
	for _, keys := range [][]SortKey{
		{Asc("b")},
		{Desc("a")},
		{Asc("a"), Asc("b")},
		nil,
	} {
		if _, err := decodeCursor(cur, keys); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("decodeCursor with sort %v = %v, want ErrInvalidCursor", keys, err)
		}
	}

	// The minting spec still decodes.
	if _, err := decodeCursor(cur, []SortKey{Asc("a")}); err != nil {
		t.Errorf("matching sort spec should decode, got %v", err)
	}
}

func TestCursorSurvivesTimeFields(t *testing.T) {
	keys := []SortKey{Asc("created")}
	early := Document{"id": "a", "created": time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	late := Document{"id": "b", "created": time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	docs := map[string]Document{"a": early, "b": late}

	cur := EncodeCursor(keys, early, "a")
	res, err := runQuery(context.Background(), "test", &Query{Sort: keys, After: cur}, docs)
	if err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	ids := res.pageIDs()
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("after-cursor result = %v, want [b]", ids)
	}
}

func TestCursorPaginatesMixedFractionalSeconds(t *testing.T) {
	// Whole-second timestamps trim to "…00Z" under RFC3339Nano while
	// fractional ones render "…00.5Z", and 'Z' > '.' lexicographically. The
	// cursor boundary scan compares encoded strings, so the encoding must
	// keep string order chronological.
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	docs := map[string]Document{
		"a": {"id": "a", "at": base},
		"b": {"id": "b", "at": base.Add(500 * time.Millisecond)},
		"c": {"id": "c", "at": base.Add(time.Second)},
	}

	walk := func(keys []SortKey) []string {
		var seen []string
		q := &Query{Sort: keys, Limit: 1}
		for {
			res, err := runQuery(context.Background(), "test", q, docs)
			if err != nil {
				t.Fatalf("runQuery: %v", err)
			}
			page := buildPage(q, res, docs)
			for _, d := range page.Documents {
				seen = append(seen, d.ID())
			}
			if page.NextCursor == "" {
				break
			}
			q = &Query{Sort: keys, Limit: 1, After: page.NextCursor}
		}
		return seen
	}

	got := walk([]SortKey{Asc("at")})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("ascending walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ascending walk = %v, want %v (no skips or repeats)", got, want)
		}
	}

	got = walk([]SortKey{Desc("at")})
	want = []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("descending walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descending walk = %v, want %v (no skips or repeats)", got, want)
		}
	}
}

func TestCompareToCursorNullsLast(t *testing.T) {
	keys := []SortKey{Asc("rank")}
	cur := &cursorPayload{Keys: []any{float64(1)}, ID: "x", Sort: keys}

	// A document missing the sort field sorts after any concrete value.
	if c := compareToCursor(keys, Document{}, "a", cur); c <= 0 {
		t.Errorf("missing field should compare after cursor value, got %d", c)
	}
	// Equal key falls through to the id tiebreak.
	if c := compareToCursor(keys, Document{"rank": 1}, "a", cur); c >= 0 {
		t.Errorf("id a should order before cursor id x, got %d", c)
	}
}
