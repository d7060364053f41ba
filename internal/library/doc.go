// Package library persists synced collections and their items in SQLite.
//
// The Store manages the database connection, additive schema migrations,
// and the reconcile write path used by the sync engine. Reconciliation is
// append/update-only: collections are upserted, items are inserted with
// insert-or-ignore semantics keyed by (collection id, bvid), and rows absent
// from a later sync payload are kept. A partial or interrupted sync
// therefore never destroys previously known items.
//
// The database lives in the configured state directory and is created on
// first use. Schema changes ship as new numbered files under migrations/;
// nothing ever rewrites or removes an applied migration.
package library
