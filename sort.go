package satchel

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// SortKey orders documents by one field.
type SortKey struct {
	// Field is a dot-separated field path.
	Field string `json:"field" yaml:"field"`
	// Desc reverses the order for this key.
	Desc bool `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Asc returns an ascending sort key.
func Asc(field string) SortKey { return SortKey{Field: field} }

// Desc returns a descending sort key.
func Desc(field string) SortKey { return SortKey{Field: field, Desc: true} }

// compareValues imposes a total order on field values: values compare within
// their class (bool < number < string < time), classes compare by rank, and
// nil/missing ranks after everything so absent fields trail in either
// direction of a per-key sort.
func compareValues(a, b any) int {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}
	switch ca {
	case 0:
		ab, bb := a.(bool), b.(bool)
		if ab == bb {
			return 0
		}
		if !ab {
			return -1
		}
		return 1
	case 1:
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		at, bt := a.(time.Time), b.(time.Time)
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		}
		return 0
	case 4:
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// equalValues reports equality with numeric loosening, so Eq("n", 3) matches
// a document holding float64(3).
func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// sortFieldValue reads the sort field, mapping a missing path to nil so it
// participates in the nulls-last ordering.
func sortFieldValue(doc Document, field string) any {
	v, ok := doc.Field(field)
	if !ok {
		return nil
	}
	return v
}

// compareDocs orders (docA, idA) against (docB, idB) under the sort spec.
// Missing/nil values trail regardless of direction, and ascending id breaks
// every remaining tie so the order is total.
func compareDocs(keys []SortKey, a Document, idA string, b Document, idB string) int {
	for _, k := range keys {
		va := sortFieldValue(a, k.Field)
		vb := sortFieldValue(b, k.Field)

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
	return strings.Compare(idA, idB)
}

// sortDocs orders id/document pairs in place under the sort spec.
func sortDocs(keys []SortKey, ids []string, docs map[string]Document) {
	sort.SliceStable(ids, func(i, j int) bool {
		return compareDocs(keys, docs[ids[i]], ids[i], docs[ids[j]], ids[j]) < 0
	})
}
