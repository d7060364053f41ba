package app

import (
	"context"
	"fmt"
	"time"

	"bilifav/internal/bili"
	"bilifav/internal/library"
	"bilifav/internal/logging"
	"bilifav/internal/syncer"
)

// Sync reconciles remote favorite collections into the library store. A
// zero collectionID syncs every collection; otherwise only the named one.
func (a *App) Sync(ctx context.Context, collectionID int64) ([]*syncer.Result, error) {
	if err := a.acquireLock(); err != nil {
		return nil, err
	}
	if err := a.ensureSession(); err != nil {
		return nil, err
	}

	engine, err := syncer.NewEngine(a.client, a.store, a.logger)
	if err != nil {
		return nil, err
	}

	if collectionID == 0 {
		return engine.SyncAll(ctx)
	}

	collection, err := a.remoteCollection(ctx, engine, collectionID)
	if err != nil {
		return nil, err
	}
	result, err := engine.SyncCollection(ctx, *collection)
	if result == nil {
		return nil, err
	}
	return []*syncer.Result{result}, err
}

// remoteCollection finds one collection in the account's remote list.
func (a *App) remoteCollection(ctx context.Context, engine *syncer.Engine, id int64) (*bili.CollectionSummary, error) {
	collections, err := engine.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range collections {
		if collections[i].ID == id {
			return &collections[i], nil
		}
	}
	return nil, fmt.Errorf("collection %d is not among the account's %d favorite collections", id, len(collections))
}

// CollectionOverview pairs a stored collection with the number of items the
// library actually holds for it, which can trail the declared media count
// after a partial sync.
type CollectionOverview struct {
	library.Collection
	Stored int64
}

// Collections lists the library's known collections together with the time
// of the most recent sync.
func (a *App) Collections(ctx context.Context) ([]CollectionOverview, *time.Time, error) {
	collections, err := a.store.Collections(ctx)
	if err != nil {
		return nil, nil, err
	}
	overviews := make([]CollectionOverview, 0, len(collections))
	for _, collection := range collections {
		stored, err := a.store.CountItems(ctx, collection.ID)
		if err != nil {
			return nil, nil, err
		}
		overviews = append(overviews, CollectionOverview{Collection: collection, Stored: stored})
	}
	lastSync, err := a.store.LastSyncedAt(ctx)
	if err != nil {
		return nil, nil, err
	}
	return overviews, lastSync, nil
}

// RemoteCollections lists the account's favorite collections from the
// service, bypassing the store.
func (a *App) RemoteCollections(ctx context.Context) ([]bili.CollectionSummary, error) {
	if err := a.ensureSession(); err != nil {
		return nil, err
	}
	collections, err := a.client.Collections(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("remote collections listed", logging.Int("count", len(collections)))
	return collections, nil
}
