package testsupport

import (
	"context"
	"fmt"
	"testing"

	"bilifav/internal/config"
	"bilifav/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedCollection reconciles a collection with the given number of generated
// items into the store. Item n gets bvid "BV<id>n" and title "Video n".
func SeedCollection(t testing.TB, store *library.Store, id int64, title string, itemCount int) {
	t.Helper()

	items := make([]library.Item, 0, itemCount)
	for n := 1; n <= itemCount; n++ {
		items = append(items, library.Item{
			CollectionID: id,
			BVID:         fmt.Sprintf("BV%d%03d", id, n),
			Title:        fmt.Sprintf("Video %d", n),
		})
	}
	collection := library.Collection{ID: id, Title: title, MediaCount: int64(itemCount)}
	if _, err := store.Reconcile(context.Background(), collection, items); err != nil {
		t.Fatalf("seed collection %d: %v", id, err)
	}
}
