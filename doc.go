// Package satchel provides a reactive in-memory document database with
// live queries, cursor pagination, and optional snapshot persistence.
//
// Satchel stores schemaless JSON-style documents in named collections and
// keeps query results current as documents change: a watched query delivers
// a fresh result page after every batch of writes that affects it, with
// re-evaluation proportional to the change rather than the collection.
//
// # Basic Usage
//
// Open a database and get a collection:
//
//	db, err := satchel.Open(satchel.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	tasks, err := db.Collection("projects/demo/tasks")
//
// Write documents:
//
//	id, err := tasks.Insert(satchel.Document{
//	    "title":    "ship it",
//	    "done":     false,
//	    "priority": 2,
//	})
//
// Query with filtering, sorting, and pagination:
//
//	page, err := tasks.FindPage(ctx, &satchel.Query{
//	    Rule:  satchel.Eq("done", false),
//	    Sort:  []satchel.SortKey{satchel.Desc("priority")},
//	    Limit: 20,
//	})
//	// page.NextCursor continues where this page left off.
//
// Watch a query for changes:
//
//	view, err := tasks.Watch(&satchel.Query{Rule: satchel.Eq("done", false)})
//	sub := view.Subscribe()
//	for docs := range sub.C() {
//	    fmt.Println("open tasks:", len(docs))
//	}
//
// # Features
//
// Core:
//   - Schemaless documents with dot-path field access
//   - Composable filter rules (Eq, Lt, In, Contains, All, Any, Not, ...)
//   - Multi-key sorting with a total, stable order
//   - Cursor-based pagination in both directions
//   - Coalesced change notification: bursts of writes, one update
//   - Generic Stream and State observables
//
// Persistence & Integration:
//   - Snapshot persistence to file, SQLite, or S3-compatible storage
//   - Snappy compression and AES-256-GCM encryption at rest
//   - Change feed with filtered subscriptions and a WebSocket transport
//   - Revision-keyed query result cache
//   - YAML configuration files
//
// # Configuration
//
// Use [Config] to customize behavior:
//
//	cfg := satchel.DefaultConfig()
//	cfg.Snapshot.Dir = "data"
//	cfg.Snapshot.Interval = time.Minute
//
// Or load it from a file with [LoadConfig].
package satchel
