// Package syncer pulls remote collection metadata into the local library.
//
// The Engine lists the account's collections and pages through each one
// with a small randomized delay per page, bounded per-page retries, and a
// consecutive-failure circuit breaker. Retrieved items are written through
// the library store's reconcile path in one transaction per collection.
//
// A completed sync is classified against the collection's declared item
// count (complete, empty, majority-missing, partial). The classification
// is advisory: it is logged and reported but never blocks storage of
// whatever was retrieved.
package syncer
