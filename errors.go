package satchel

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the satchel package.
var (
	// ErrClosed is returned when operations are attempted on a closed database.
	ErrClosed = errors.New("database is closed")

	// ErrNotFound is returned when a document id does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when an insert collides with an existing id.
	ErrConflict = errors.New("document id already exists")

	// ErrInvalidQuery is returned for malformed queries.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidCursor is returned when a pagination cursor cannot be decoded
	// or does not match the query's sort specification.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidCollection is returned for malformed collection paths.
	ErrInvalidCollection = errors.New("invalid collection path")

	// ErrInvalidField is returned for malformed field paths.
	ErrInvalidField = errors.New("invalid field path")

	// ErrSnapshotCorrupt is returned when snapshot data cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// QueryErrorType categorizes query errors.
type QueryErrorType int

const (
	// QueryErrorTypeUnknown is an unclassified error.
	QueryErrorTypeUnknown QueryErrorType = iota
	// QueryErrorTypeInvalid indicates the query is malformed.
	QueryErrorTypeInvalid
	// QueryErrorTypeCursor indicates a bad pagination cursor.
	QueryErrorTypeCursor
	// QueryErrorTypeCanceled indicates the query was canceled via context.
	QueryErrorTypeCanceled
)

// QueryError provides detailed information about query execution failures.
type QueryError struct {
	Type       QueryErrorType
	Message    string
	Collection string
	Cause      error
}

func (e *QueryError) Error() string {
	if e.Collection != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [%s]: %v", e.Message, e.Collection, e.Cause)
		}
		return fmt.Sprintf("%s [%s]", e.Message, e.Collection)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for QueryError.
func (e *QueryError) Is(target error) bool {
	switch e.Type {
	case QueryErrorTypeInvalid:
		return target == ErrInvalidQuery
	case QueryErrorTypeCursor:
		return target == ErrInvalidCursor
	}
	return false
}

func newQueryError(errType QueryErrorType, message, collection string, cause error) *QueryError {
	return &QueryError{
		Type:       errType,
		Message:    message,
		Collection: collection,
		Cause:      cause,
	}
}

// SnapshotErrorType categorizes snapshot persistence errors.
type SnapshotErrorType int

const (
	// SnapshotErrorTypeUnknown is an unclassified snapshot error.
	SnapshotErrorTypeUnknown SnapshotErrorType = iota
	// SnapshotErrorTypeEncode indicates an encoding failure.
	SnapshotErrorTypeEncode
	// SnapshotErrorTypeDecode indicates data corruption or a format mismatch.
	SnapshotErrorTypeDecode
	// SnapshotErrorTypeBackend indicates a backend read/write failure.
	SnapshotErrorTypeBackend
)

// SnapshotError provides detailed information about snapshot failures.
type SnapshotError struct {
	Type    SnapshotErrorType
	Message string
	Key     string
	Cause   error
}

func (e *SnapshotError) Error() string {
	if e.Key != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [%s]: %v", e.Message, e.Key, e.Cause)
		}
		return fmt.Sprintf("%s [%s]", e.Message, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SnapshotError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for SnapshotError.
func (e *SnapshotError) Is(target error) bool {
	return e.Type == SnapshotErrorTypeDecode && target == ErrSnapshotCorrupt
}

func newSnapshotError(errType SnapshotErrorType, message, key string, cause error) *SnapshotError {
	return &SnapshotError{
		Type:    errType,
		Message: message,
		Key:     key,
		Cause:   cause,
	}
}
