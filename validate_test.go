package satchel

import (
	"strings"
	"testing"
)

func TestValidateCollectionPath(t *testing.T) {
	valid := []string{
		"users",
		"teams/acme/members",
		"a_b-c",
		"v2",
		strings.Repeat("a", 256),
	}
	for _, path := range valid {
		if err := ValidateCollectionPath(path); err != nil {
			t.Errorf("ValidateCollectionPath(%q) = %v, want nil", path, err)
		}
	}

	invalid := []string{
		"",
		"/users",
		"users/",
		"a//b",
		"users/../other",
		"has space",
		"dot.name",
		strings.Repeat("a", 257),
	}
	for _, path := range invalid {
		if err := ValidateCollectionPath(path); err == nil {
			t.Errorf("ValidateCollectionPath(%q) = nil, want error", path)
		}
	}
}

func TestValidateFieldPath(t *testing.T) {
	valid := []string{"title", "author.name", "_meta.created_at", "a.b.c"}
	for _, path := range valid {
		if err := ValidateFieldPath(path); err != nil {
			t.Errorf("ValidateFieldPath(%q) = %v, want nil", path, err)
		}
	}

	invalid := []string{"", ".", "a.", ".a", "a..b", "1leading", "has space", "a.b-c"}
	for _, path := range invalid {
		if err := ValidateFieldPath(path); err == nil {
			t.Errorf("ValidateFieldPath(%q) = nil, want error", path)
		}
	}
}
