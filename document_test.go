package satchel

import "testing"

func TestDocumentField(t *testing.T) {
	doc := Document{
		"title": "hello",
		"author": map[string]any{
			"name": "ada",
			"contact": map[string]any{
				"email": "ada@example.com",
			},
		},
		"tags": []any{"a", "b"},
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"title", "hello", true},
		{"author.name", "ada", true},
		{"author.contact.email", "ada@example.com", true},
		{"author.missing", nil, false},
		{"missing", nil, false},
		{"title.sub", nil, false},
		{"tags.0", nil, false},
	}

	for _, tt := range tests {
		got, ok := doc.Field(tt.path)
		if ok != tt.found {
			t.Errorf("Field(%q) found = %v, want %v", tt.path, ok, tt.found)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Field(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDocumentFieldNil(t *testing.T) {
	var doc Document
	if _, ok := doc.Field("anything"); ok {
		t.Error("nil document should resolve no fields")
	}
}

func TestDocumentClone(t *testing.T) {
	doc := Document{
		"n": 1,
		"nested": map[string]any{
			"list": []any{1, 2, 3},
		},
	}
	clone := doc.Clone()

	clone["n"] = 2
	clone["nested"].(map[string]any)["list"].([]any)[0] = 99

	if doc["n"] != 1 {
		t.Errorf("clone mutation leaked into original: n = %v", doc["n"])
	}
	if got := doc["nested"].(map[string]any)["list"].([]any)[0]; got != 1 {
		t.Errorf("clone mutation leaked into nested list: %v", got)
	}
}

func TestDocumentMerge(t *testing.T) {
	doc := Document{
		"title": "old",
		"meta": map[string]any{
			"views": 1,
			"flags": map[string]any{"pinned": true},
		},
	}
	doc.Merge(Document{
		"title": "new",
		"meta": Document{
			"views": 2,
		},
		"extra": "x",
	})

	if doc["title"] != "new" {
		t.Errorf("title = %v, want new", doc["title"])
	}
	if doc["extra"] != "x" {
		t.Errorf("extra = %v, want x", doc["extra"])
	}
	meta := doc["meta"].(map[string]any)
	if meta["views"] != 2 {
		t.Errorf("meta.views = %v, want 2", meta["views"])
	}
	// Untouched nested keys survive the merge.
	if got, ok := doc.Field("meta.flags.pinned"); !ok || got != true {
		t.Errorf("meta.flags.pinned = %v (%v), want true", got, ok)
	}
}

func TestDocumentID(t *testing.T) {
	if got := (Document{"id": "d1"}).ID(); got != "d1" {
		t.Errorf("ID() = %q, want d1", got)
	}
	if got := (Document{"id": 42}).ID(); got != "" {
		t.Errorf("non-string id should read as empty, got %q", got)
	}
	if got := (Document{}).ID(); got != "" {
		t.Errorf("missing id should read as empty, got %q", got)
	}
}
