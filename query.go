package satchel

import (
	"context"
	"fmt"
	"strings"
)

// Query describes a filtered, sorted, paginated projection of a collection.
// A nil Rule matches every document. Execution order is filter, sort, cursor
// window, then offset/limit.
type Query struct {
	// Rule filters documents. Nil matches all.
	Rule Rule

	// Sort orders the result. The order always ends with an implicit
	// ascending-id tiebreak, so it is total even without sort keys.
	Sort []SortKey

	// Offset skips that many documents of the (windowed) result.
	Offset int

	// Limit caps the page size. 0 means no limit.
	Limit int

	// After restricts the result to documents strictly after the cursor
	// position. Mutually exclusive with Before.
	After string

	// Before restricts the result to documents strictly before the cursor
	// position; Limit/Offset then count backward from the cursor.
	Before string
}

// Page is one page of query results.
type Page struct {
	// Documents holds the page contents in query order.
	Documents []Document

	// Total is the number of documents matching the filter, ignoring
	// cursors and slicing.
	Total int

	// NextCursor continues forward from the last document of the page.
	// Empty when the page reaches the end of the result.
	NextCursor string

	// PrevCursor continues backward from the first document of the page.
	// Empty when the page starts at the beginning of the result.
	PrevCursor string
}

// checkEvery is how many documents are filtered between context checks.
const checkEvery = 256

// queryResult is the internal outcome of running a query against a document
// snapshot: the full sorted match list plus the page window within it.
type queryResult struct {
	ids        []string
	start, end int
	total      int
}

func (r *queryResult) pageIDs() []string {
	return r.ids[r.start:r.end]
}

// runQuery executes a query against a snapshot of documents. The snapshot is
// not mutated; callers own cloning of returned documents.
func runQuery(ctx context.Context, collection string, q *Query, docs map[string]Document) (*queryResult, error) {
	if q == nil {
		q = &Query{}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return nil, newQueryError(QueryErrorTypeInvalid, "negative offset or limit", collection, nil)
	}
	if q.After != "" && q.Before != "" {
		return nil, newQueryError(QueryErrorTypeInvalid, "After and Before are mutually exclusive", collection, nil)
	}
	for _, k := range q.Sort {
		if err := ValidateFieldPath(k.Field); err != nil {
			return nil, newQueryError(QueryErrorTypeInvalid, "invalid sort field", collection, err)
		}
	}

	ids := make([]string, 0, len(docs))
	n := 0
	for id, doc := range docs {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, newQueryError(QueryErrorTypeCanceled, "query canceled", collection, err)
			}
		}
		n++
		if q.Rule == nil || q.Rule.Match(doc) {
			ids = append(ids, id)
		}
	}
	total := len(ids)

	sortDocs(q.Sort, ids, docs)

	// Cursor windowing. The sorted list is searched linearly; cursors are
	// exclusive on both sides.
	if q.After != "" {
		cur, err := decodeCursor(q.After, q.Sort)
		if err != nil {
			return nil, err
		}
		i := 0
		for i < len(ids) && compareToCursor(q.Sort, docs[ids[i]], ids[i], cur) <= 0 {
			i++
		}
		ids = ids[i:]
	}
	if q.Before != "" {
		cur, err := decodeCursor(q.Before, q.Sort)
		if err != nil {
			return nil, err
		}
		i := len(ids)
		for i > 0 && compareToCursor(q.Sort, docs[ids[i-1]], ids[i-1], cur) >= 0 {
			i--
		}
		ids = ids[:i]
	}

	start, end := 0, len(ids)
	if q.Before != "" {
		// Backward pagination: count offset and limit from the cursor end.
		end -= q.Offset
		if end < 0 {
			end = 0
		}
		start = end
		if q.Limit > 0 {
			start = end - q.Limit
		} else {
			start = 0
		}
		if start < 0 {
			start = 0
		}
	} else {
		start += q.Offset
		if start > len(ids) {
			start = len(ids)
		}
		end = len(ids)
		if q.Limit > 0 && start+q.Limit < end {
			end = start + q.Limit
		}
	}

	return &queryResult{ids: ids, start: start, end: end, total: total}, nil
}

// buildPage assembles a Page from a query result, minting continuation
// cursors from the page boundaries.
func buildPage(q *Query, res *queryResult, docs map[string]Document) *Page {
	page := &Page{
		Documents: make([]Document, 0, res.end-res.start),
		Total:     res.total,
	}
	for _, id := range res.pageIDs() {
		page.Documents = append(page.Documents, docs[id])
	}

	if res.end > res.start {
		if res.end < len(res.ids) || q.Before != "" {
			last := res.ids[res.end-1]
			page.NextCursor = EncodeCursor(q.Sort, docs[last], last)
		}
		if res.start > 0 || q.After != "" {
			first := res.ids[res.start]
			page.PrevCursor = EncodeCursor(q.Sort, docs[first], first)
		}
	}
	return page
}

// fingerprint produces a stable cache key component for the query.
func (q *Query) fingerprint() string {
	if q == nil {
		return "all"
	}
	var b strings.Builder
	if q.Rule != nil {
		b.WriteString(q.Rule.String())
	} else {
		b.WriteString("all")
	}
	for _, k := range q.Sort {
		b.WriteByte('|')
		b.WriteString(k.Field)
		if k.Desc {
			b.WriteString(":desc")
		}
	}
	fmt.Fprintf(&b, "|o=%d|l=%d|a=%s|b=%s", q.Offset, q.Limit, q.After, q.Before)
	return b.String()
}
