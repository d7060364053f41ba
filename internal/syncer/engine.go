package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"bilifav/internal/bili"
	"bilifav/internal/library"
	"bilifav/internal/logging"
)

const (
	pageSize               = 20
	pageCap                = 50
	maxPageAttempts        = 3
	maxConsecutiveFailures = 5

	defaultPageDelayMin      = 100 * time.Millisecond
	defaultPageDelayMax      = 800 * time.Millisecond
	defaultRetryDelay        = time.Second
	defaultTimeoutRetryDelay = 2 * time.Second
)

// CollectionSource lists favorites collections and fetches their pages.
// *bili.Client satisfies it.
type CollectionSource interface {
	Collections(ctx context.Context) ([]bili.CollectionSummary, error)
	CollectionPage(ctx context.Context, mediaID int64, pn, ps int) (*bili.ResourcePage, error)
}

// Reconciler persists one collection's sync payload. *library.Store
// satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, collection library.Collection, items []library.Item) (library.ReconcileResult, error)
}

// Result reports one collection's sync.
type Result struct {
	Collection     bili.CollectionSummary
	Retrieved      int
	Pages          int
	FailedPages    []int
	Aborted        bool
	Classification Classification
	Inserted       int64
	Known          int64
	// Err records a reconcile failure. Page-level failures never set it;
	// they are listed in FailedPages.
	Err error
}

// Engine pages through favorites collections and reconciles the results
// into the local library.
type Engine struct {
	source CollectionSource
	store  Reconciler
	logger *slog.Logger

	pageDelayMin      time.Duration
	pageDelayMax      time.Duration
	retryDelay        time.Duration
	timeoutRetryDelay time.Duration
}

// Option overrides Engine pacing. Production code uses the defaults; tests
// shrink the delays.
type Option func(*Engine)

// WithPageDelayRange sets the bounds of the randomized delay applied before
// each page request and before each collection.
func WithPageDelayRange(min, max time.Duration) Option {
	return func(e *Engine) {
		e.pageDelayMin = min
		e.pageDelayMax = max
	}
}

// WithRetryDelays sets the backoff between page attempts and its longer
// timeout variant.
func WithRetryDelays(plain, timeout time.Duration) Option {
	return func(e *Engine) {
		e.retryDelay = plain
		e.timeoutRetryDelay = timeout
	}
}

func NewEngine(source CollectionSource, store Reconciler, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, errors.New("syncer: collection source is required")
	}
	if store == nil {
		return nil, errors.New("syncer: store is required")
	}
	engine := &Engine{
		source:            source,
		store:             store,
		logger:            logging.NewComponentLogger(logger, "sync"),
		pageDelayMin:      defaultPageDelayMin,
		pageDelayMax:      defaultPageDelayMax,
		retryDelay:        defaultRetryDelay,
		timeoutRetryDelay: defaultTimeoutRetryDelay,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// ListCollections returns the account's favorites collections.
func (e *Engine) ListCollections(ctx context.Context) ([]bili.CollectionSummary, error) {
	collections, err := e.source.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

// SyncAll lists every collection and syncs each in turn. A collection whose
// reconcile fails is recorded in its Result and the run continues; only
// cancellation stops the loop, returning the results gathered so far.
func (e *Engine) SyncAll(ctx context.Context) ([]*Result, error) {
	collections, err := e.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(collections))
	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := e.pause(ctx); err != nil {
			return results, err
		}
		result, err := e.SyncCollection(ctx, collection)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			e.logger.Error("collection sync failed",
				logging.Int64(logging.FieldCollectionID, collection.ID),
				logging.String("title", collection.Title),
				logging.Error(err))
			if result == nil {
				result = &Result{Collection: collection, Err: err}
			} else {
				result.Err = err
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncCollection pages through one collection, tolerating individual page
// failures, and reconciles whatever was retrieved into the library. Five
// consecutive page failures abort the paging early as an API health signal;
// the abort still persists the items collected up to that point. The
// returned error is non-nil only for cancellation (nothing is persisted) or
// a reconcile failure.
func (e *Engine) SyncCollection(ctx context.Context, collection bili.CollectionSummary) (*Result, error) {
	result := &Result{Collection: collection}
	items := make([]library.Item, 0, collection.MediaCount)
	consecutiveFailures := 0

	log := e.logger.With(logging.Int64(logging.FieldCollectionID, collection.ID))
	log.Info("syncing collection",
		logging.String("title", collection.Title),
		logging.Int("declared", collection.MediaCount))

	pn := 1
	for ; pn <= pageCap; pn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.pause(ctx); err != nil {
			return nil, err
		}

		page, err := e.fetchPage(ctx, collection.ID, pn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.FailedPages = append(result.FailedPages, pn)
			consecutiveFailures++
			log.Warn("skipping page after repeated failures",
				logging.Int(logging.FieldPage, pn),
				logging.Error(err))
			if consecutiveFailures >= maxConsecutiveFailures {
				result.Aborted = true
				log.Error("aborting sync, consecutive page failures suggest the API is unhealthy",
					logging.Int("failed_pages", len(result.FailedPages)))
				break
			}
			continue
		}

		consecutiveFailures = 0
		result.Pages++
		for _, media := range page.Medias {
			items = append(items, library.Item{
				CollectionID: collection.ID,
				BVID:         media.BVID,
				Title:        media.Title,
				OwnerName:    media.Upper.Name,
			})
		}
		log.Debug("page retrieved",
			logging.Int(logging.FieldPage, pn),
			logging.Int("items", len(page.Medias)))

		if !page.HasMore || len(page.Medias) < pageSize {
			break
		}
	}
	if pn > pageCap && !result.Aborted {
		log.Warn("stopping at the page cap before the service reported an end",
			logging.Int("page_cap", pageCap))
	}

	result.Retrieved = len(items)
	result.Classification = Classify(int64(collection.MediaCount), len(items))
	e.logOutcome(log, collection, result)

	// The reconcile transaction is detached from cancellation so an
	// interrupt arriving mid-commit cannot leave a half-written collection.
	stored, err := e.store.Reconcile(context.WithoutCancel(ctx), library.Collection{
		ID:         collection.ID,
		Title:      collection.Title,
		MediaCount: int64(collection.MediaCount),
	}, items)
	if err != nil {
		return result, fmt.Errorf("reconciling collection %d: %w", collection.ID, err)
	}
	result.Inserted = stored.Inserted
	result.Known = stored.Known
	log.Info("collection reconciled",
		logging.Int64("inserted", stored.Inserted),
		logging.Int64("known", stored.Known))
	return result, nil
}

func (e *Engine) logOutcome(log *slog.Logger, collection bili.CollectionSummary, result *Result) {
	retrieved := logging.Int("retrieved", result.Retrieved)
	declared := logging.Int("declared", collection.MediaCount)
	switch result.Classification {
	case ClassEmpty:
		log.Warn("no items retrieved", logging.Alert("empty_sync"), retrieved, declared)
	case ClassMajorityMissing:
		log.Warn("most declared items missing", logging.Alert("majority_missing"), retrieved, declared)
	case ClassPartial:
		log.Info("sync incomplete", retrieved, declared)
	default:
		log.Info("collection retrieved in full", retrieved, declared)
	}
}

// fetchPage requests one page, retrying up to maxPageAttempts with a fixed
// backoff. Timeouts wait longer between attempts than other failures.
func (e *Engine) fetchPage(ctx context.Context, collectionID int64, pn int) (*bili.ResourcePage, error) {
	var lastErr error
	for attempt := 1; attempt <= maxPageAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.source.CollectionPage(ctx, collectionID, pn, pageSize)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == maxPageAttempts {
			break
		}
		delay := e.retryDelay
		if isTimeout(err) {
			delay = e.timeoutRetryDelay
		}
		e.logger.Warn("retrying page",
			logging.Int64(logging.FieldCollectionID, collectionID),
			logging.Int(logging.FieldPage, pn),
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("page %d failed after %d attempts: %w", pn, maxPageAttempts, lastErr)
}

// pause sleeps a random interval inside the configured delay range so
// requests do not hit the service at a fixed cadence.
func (e *Engine) pause(ctx context.Context) error {
	lo, hi := e.pageDelayMin, e.pageDelayMax
	if hi <= lo {
		return sleepWithContext(ctx, lo)
	}
	jitter := time.Duration(rand.Int63n(int64(hi - lo)))
	return sleepWithContext(ctx, lo+jitter)
}
