package library

import (
	"context"
	"fmt"
	"time"
)

// Reconcile applies one sync payload for a single collection inside one
// transaction: the collection summary row is upserted, then every item is
// inserted with insert-or-ignore semantics. Items already in the store are
// left untouched, and items missing from the payload are never deleted.
// On any failure the whole transaction rolls back.
func (s *Store) Reconcile(ctx context.Context, collection Collection, items []Item) (ReconcileResult, error) {
	ctx = ensureContext(ctx)
	var result ReconcileResult

	err := retryOnBusy(ctx, func() error {
		result = ReconcileResult{}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reconcile tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		syncedAt := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections (id, title, media_count, last_synced_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT (id) DO UPDATE SET
                 title = excluded.title,
                 media_count = excluded.media_count,
                 last_synced_at = excluded.last_synced_at`,
			collection.ID,
			collection.Title,
			collection.MediaCount,
			syncedAt,
		); err != nil {
			return fmt.Errorf("upsert collection %d: %w", collection.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO items (collection_id, bvid, title, owner_name)
             VALUES (?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare item insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			res, err := stmt.ExecContext(ctx, collection.ID, item.BVID, item.Title, item.OwnerName)
			if err != nil {
				return fmt.Errorf("insert item %s: %w", item.BVID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected for %s: %w", item.BVID, err)
			}
			if affected > 0 {
				result.Inserted++
			} else {
				result.Known++
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit reconcile: %w", err)
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	return result, nil
}
