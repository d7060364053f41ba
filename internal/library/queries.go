package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const collectionColumns = "id, title, media_count, last_synced_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (Collection, error) {
	var (
		c      Collection
		synced sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Title, &c.MediaCount, &synced); err != nil {
		return Collection{}, err
	}
	if synced.Valid && synced.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, synced.String)
		if err != nil {
			return Collection{}, fmt.Errorf("parse last_synced_at %q: %w", synced.String, err)
		}
		c.LastSyncedAt = &ts
	}
	return c, nil
}

// Collections returns every known collection ordered by identifier.
func (s *Store) Collections(ctx context.Context) ([]Collection, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+collectionColumns+` FROM collections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return collections, nil
}

// CollectionByID fetches one collection, or nil when it is unknown.
func (s *Store) CollectionByID(ctx context.Context, id int64) (*Collection, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &c, nil
}

// Items returns a collection's items in insertion order.
func (s *Store) Items(ctx context.Context, collectionID int64) ([]Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection_id, bvid, title, owner_name FROM items WHERE collection_id = ? ORDER BY rowid`,
		collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.CollectionID, &item.BVID, &item.Title, &item.OwnerName); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// CountItems reports how many items the store holds for a collection.
func (s *Store) CountItems(ctx context.Context, collectionID int64) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE collection_id = ?`, collectionID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// HasItem reports whether the store already knows one item.
func (s *Store) HasItem(ctx context.Context, collectionID int64, bvid string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int64
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM items WHERE collection_id = ? AND bvid = ?`,
		collectionID, bvid,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check item: %w", err)
	}
	return count > 0, nil
}

// LastSyncedAt reports the most recent sync time across all collections,
// or nil when nothing has been synced yet.
func (s *Store) LastSyncedAt(ctx context.Context) (*time.Time, error) {
	ctx = ensureContext(ctx)
	var latest sql.NullString
	row := s.db.QueryRowContext(ctx, `SELECT MAX(last_synced_at) FROM collections`)
	if err := row.Scan(&latest); err != nil {
		return nil, fmt.Errorf("query last sync: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, latest.String)
	if err != nil {
		return nil, fmt.Errorf("parse last sync %q: %w", latest.String, err)
	}
	return &ts, nil
}

// Totals reports the store-wide collection and item counts.
func (s *Store) Totals(ctx context.Context) (collections, items int64, err error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM collections`)
	if err := row.Scan(&collections); err != nil {
		return 0, 0, fmt.Errorf("count collections: %w", err)
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items`)
	if err := row.Scan(&items); err != nil {
		return 0, 0, fmt.Errorf("count all items: %w", err)
	}
	return collections, items, nil
}
