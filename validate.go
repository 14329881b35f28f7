package satchel

import (
	"regexp"
	"strings"
)

// collectionPathRegex validates collection paths: slash-separated segments of
// alphanumerics, underscores and hyphens. Must not start or end with a slash.
var collectionPathRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+(/[a-zA-Z0-9_-]+)*$`)

// fieldSegmentRegex validates a single segment of a dot-separated field path.
var fieldSegmentRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxCollectionPathLen is the maximum allowed collection path length.
const maxCollectionPathLen = 256

// maxFieldPathLen is the maximum allowed field path length.
const maxFieldPathLen = 256

// ValidateCollectionPath validates a collection path such as "users" or
// "teams/acme/members".
func ValidateCollectionPath(path string) error {
	if path == "" || len(path) > maxCollectionPathLen {
		return ErrInvalidCollection
	}
	if strings.Contains(path, "..") {
		return ErrInvalidCollection
	}
	if !collectionPathRegex.MatchString(path) {
		return ErrInvalidCollection
	}
	return nil
}

// ValidateFieldPath validates a dot-separated field path such as
// "author.name".
func ValidateFieldPath(path string) error {
	if path == "" || len(path) > maxFieldPathLen {
		return ErrInvalidField
	}
	for _, seg := range strings.Split(path, ".") {
		if !fieldSegmentRegex.MatchString(seg) {
			return ErrInvalidField
		}
	}
	return nil
}
