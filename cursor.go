package satchel

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// cursorPayload is the decoded form of a pagination cursor: the sort-key
// values and id of the document the cursor points at, plus the sort spec it
// was minted under so mismatched reuse can be rejected.
type cursorPayload struct {
	Keys []any     `json:"k"`
	ID   string    `json:"id"`
	Sort []SortKey `json:"s,omitempty"`
}

// EncodeCursor builds a continuation cursor pointing at the given document
// under the given sort spec. FindPage does this for you; EncodeCursor is for
// callers that persist positions externally.
func EncodeCursor(keys []SortKey, doc Document, id string) string {
	p := cursorPayload{
		Keys: make([]any, len(keys)),
		ID:   id,
		Sort: keys,
	}
	for i, k := range keys {
		p.Keys[i] = normalizeCursorValue(sortFieldValue(doc, k.Field))
	}
	raw, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string, keys []SortKey) (*cursorPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, newQueryError(QueryErrorTypeCursor, "cursor is not valid base64", "", err)
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, newQueryError(QueryErrorTypeCursor, "cursor is not valid JSON", "", err)
	}
	if len(p.Keys) != len(keys) || !sameSortSpec(p.Sort, keys) {
		return nil, newQueryError(QueryErrorTypeCursor, "cursor does not match query sort", "", nil)
	}
	return &p, nil
}

func sameSortSpec(a, b []SortKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// cursorTimeLayout renders times in UTC at fixed fractional width.
// RFC3339Nano trims trailing zeros, which breaks lexicographic ordering
// ("10:00:00Z" > "10:00:00.5Z" because 'Z' > '.'); a fixed-width fraction
// keeps string order equal to chronological order.
const cursorTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// normalizeCursorValue maps a field value onto the JSON type set so that a
// round-tripped cursor compares consistently with live documents.
func normalizeCursorValue(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(cursorTimeLayout)
	}
	switch v.(type) {
	case nil, bool, string:
		return v
	default:
		return v
	}
}

// compareToCursor orders a document against a cursor position under the sort
// spec, with the same nulls-last and ascending-id-tiebreak behavior as
// compareDocs.
func compareToCursor(keys []SortKey, doc Document, id string, cur *cursorPayload) int {
	for i, k := range keys {
		va := normalizeCursorValue(sortFieldValue(doc, k.Field))
		vb := cur.Keys[i]

		aNil := valueClass(va) == 4
		bNil := valueClass(vb) == 4
		if aNil || bNil {
			switch {
			case aNil && bNil:
				continue
			case aNil:
				return 1
			default:
				return -1
			}
		}

		c := compareValues(va, vb)
		if c == 0 {
			continue
		}
		if k.Desc {
			return -c
		}
		return c
	}
	return strings.Compare(id, cur.ID)
}
