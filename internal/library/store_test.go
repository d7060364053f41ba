package library_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"bilifav/internal/library"
)

func openTestStore(t *testing.T) *library.Store {
	t.Helper()
	store, err := library.OpenPath(filepath.Join(t.TempDir(), "bilifav.db"))
	if err != nil {
		t.Fatalf("OpenPath returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestReconcileInsertsAndUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	collection := library.Collection{ID: 42, Title: "music", MediaCount: 3}
	items := []library.Item{
		{BVID: "BV1xx", Title: "first", OwnerName: "alice"},
		{BVID: "BV2yy", Title: "second", OwnerName: "bob"},
		{BVID: "BV3zz", Title: "third", OwnerName: "carol"},
	}

	result, err := store.Reconcile(ctx, collection, items)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Inserted != 3 || result.Known != 0 {
		t.Fatalf("unexpected first reconcile result: %+v", result)
	}

	got, err := store.CollectionByID(ctx, 42)
	if err != nil {
		t.Fatalf("CollectionByID returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected collection row")
	}
	if got.Title != "music" || got.MediaCount != 3 {
		t.Fatalf("unexpected collection: %+v", got)
	}
	if got.LastSyncedAt == nil {
		t.Fatal("expected last_synced_at to be set")
	}

	// Same payload again: idempotent, no duplicate rows.
	result, err = store.Reconcile(ctx, collection, items)
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if result.Inserted != 0 || result.Known != 3 {
		t.Fatalf("unexpected second reconcile result: %+v", result)
	}
	count, err := store.CountItems(ctx, 42)
	if err != nil {
		t.Fatalf("CountItems returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 items, got %d", count)
	}

	// Changed summary fields are applied on the next sync.
	collection.Title = "music (renamed)"
	collection.MediaCount = 5
	if _, err := store.Reconcile(ctx, collection, nil); err != nil {
		t.Fatalf("rename Reconcile returned error: %v", err)
	}
	got, err = store.CollectionByID(ctx, 42)
	if err != nil {
		t.Fatalf("CollectionByID returned error: %v", err)
	}
	if got.Title != "music (renamed)" || got.MediaCount != 5 {
		t.Fatalf("expected updated summary, got %+v", got)
	}
}

func TestReconcileKeepsItemsMissingFromLaterSync(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	collection := library.Collection{ID: 7, Title: "talks", MediaCount: 2}
	first := []library.Item{
		{BVID: "BVaaa", Title: "kept", OwnerName: "o1"},
		{BVID: "BVbbb", Title: "also kept", OwnerName: "o2"},
	}
	if _, err := store.Reconcile(ctx, collection, first); err != nil {
		t.Fatalf("first Reconcile returned error: %v", err)
	}

	// Second payload drops BVaaa and adds BVccc.
	second := []library.Item{
		{BVID: "BVbbb", Title: "also kept", OwnerName: "o2"},
		{BVID: "BVccc", Title: "new", OwnerName: "o3"},
	}
	result, err := store.Reconcile(ctx, collection, second)
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if result.Inserted != 1 || result.Known != 1 {
		t.Fatalf("unexpected reconcile result: %+v", result)
	}

	items, err := store.Items(ctx, 7)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items after partial re-sync, got %d", len(items))
	}
	has, err := store.HasItem(ctx, 7, "BVaaa")
	if err != nil {
		t.Fatalf("HasItem returned error: %v", err)
	}
	if !has {
		t.Fatal("item absent from later sync must survive")
	}
}

func TestCollectionByIDMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.CollectionByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("CollectionByID returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown collection, got %+v", got)
	}
}

func TestItemsInsertionOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	collection := library.Collection{ID: 1, Title: "ordered", MediaCount: 3}
	if _, err := store.Reconcile(ctx, collection, []library.Item{
		{BVID: "BV3", Title: "c"},
		{BVID: "BV1", Title: "a"},
	}); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if _, err := store.Reconcile(ctx, collection, []library.Item{
		{BVID: "BV2", Title: "b"},
	}); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	items, err := store.Items(ctx, 1)
	if err != nil {
		t.Fatalf("Items returned error: %v", err)
	}
	want := []string{"BV3", "BV1", "BV2"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, bvid := range want {
		if items[i].BVID != bvid {
			t.Fatalf("position %d: got %s want %s", i, items[i].BVID, bvid)
		}
	}
}

func TestTotals(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Reconcile(ctx, library.Collection{ID: 1, Title: "a"}, []library.Item{
		{BVID: "BV1", Title: "x"},
	}); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if _, err := store.Reconcile(ctx, library.Collection{ID: 2, Title: "b"}, []library.Item{
		{BVID: "BV1", Title: "x"},
		{BVID: "BV2", Title: "y"},
	}); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	collections, items, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("Totals returned error: %v", err)
	}
	if collections != 2 || items != 3 {
		t.Fatalf("unexpected totals: %d collections, %d items", collections, items)
	}
}

// TestMigrationAddsLastSyncedColumn seeds a database that stopped at the
// initial schema, then reopens it through the store to confirm the
// follow-up migration lands without touching existing rows.
func TestMigrationAddsLastSyncedColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	stmts := []string{
		"CREATE TABLE schema_migrations (version TEXT PRIMARY KEY)",
		"INSERT INTO schema_migrations (version) VALUES ('0001_create_library')",
		`CREATE TABLE collections (
            id INTEGER PRIMARY KEY,
            title TEXT NOT NULL,
            media_count INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE items (
            collection_id INTEGER NOT NULL,
            bvid TEXT NOT NULL,
            title TEXT NOT NULL,
            owner_name TEXT NOT NULL DEFAULT '',
            PRIMARY KEY (collection_id, bvid),
            FOREIGN KEY (collection_id) REFERENCES collections (id) ON DELETE CASCADE
        )`,
		"INSERT INTO collections (id, title, media_count) VALUES (11, 'legacy', 4)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed old schema: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	store, err := library.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath on old db returned error: %v", err)
	}
	defer store.Close()

	got, err := store.CollectionByID(context.Background(), 11)
	if err != nil {
		t.Fatalf("CollectionByID returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected legacy collection to survive migration")
	}
	if got.Title != "legacy" || got.MediaCount != 4 {
		t.Fatalf("legacy row mutated: %+v", got)
	}
	if got.LastSyncedAt != nil {
		t.Fatal("legacy row should have nil last_synced_at until the next sync")
	}
}
