package library

import "time"

// Collection is one favorites folder as last observed by a sync.
type Collection struct {
	ID         int64
	Title      string
	MediaCount int64
	// LastSyncedAt is nil for collections that were created by an older
	// schema and never re-synced since.
	LastSyncedAt *time.Time
}

// Item is one media entry inside a collection. Items are append-only:
// once stored they survive later syncs that no longer mention them.
type Item struct {
	CollectionID int64
	BVID         string
	Title        string
	OwnerName    string
}

// ReconcileResult summarizes one reconcile transaction.
type ReconcileResult struct {
	Inserted int64
	Known    int64
}
