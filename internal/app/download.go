package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"bilifav/internal/deps"
	"bilifav/internal/download"
	"bilifav/internal/fileutil"
	"bilifav/internal/logging"
	"bilifav/internal/media"
	"bilifav/internal/merge"
	"bilifav/internal/resolver"
)

// DownloadRequest describes one download run. Either CollectionID or BVIDs
// (or both) selects what to fetch.
type DownloadRequest struct {
	CollectionID int64
	BVIDs        []string
	Quality      string // tier name; empty uses the configured tier
	OutputDir    string // empty uses the configured download directory
	Overwrite    bool
	Pages        []int // nil downloads every part
	Progress     download.ProgressFunc
}

// DownloadReport aggregates the outcome of a download run.
type DownloadReport struct {
	Tier           media.Tier
	Privileged     bool
	FFmpeg         deps.Status
	AlreadyPresent int // finals found on disk by the pre-pass and skipped
	Items          []download.ItemResult
	Merge          merge.Stats
	MergeAbandoned int // queued merges left behind by a cancelled run
}

// Planned reports how many items entered the acquisition loop.
func (r *DownloadReport) Planned() int { return len(r.Items) }

// Counts aggregates page outcomes across all items.
func (r *DownloadReport) Counts() (succeeded, skipped, failed int) {
	for i := range r.Items {
		succeeded += r.Items[i].Succeeded()
		skipped += r.Items[i].Skipped()
		failed += r.Items[i].Failed()
	}
	return succeeded, skipped, failed
}

// Download acquires the requested items sequentially, handing separated
// streams to a background merge worker when FFmpeg is available. The report
// is returned alongside cancellation errors so partial runs stay visible.
func (a *App) Download(ctx context.Context, req DownloadRequest) (*DownloadReport, error) {
	if err := a.acquireLock(); err != nil {
		return nil, err
	}
	if err := a.ensureSession(); err != nil {
		return nil, err
	}
	if req.CollectionID == 0 && len(req.BVIDs) == 0 {
		return nil, errors.New("nothing to download: pass a collection id or video ids")
	}

	tierName := req.Quality
	if tierName == "" {
		tierName = a.cfg.Download.Quality
	}
	tier, err := media.ParseTier(tierName)
	if err != nil {
		return nil, err
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = a.cfg.Paths.DownloadDir
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("no download directory configured")
	}

	log := a.logger.With(logging.String("run_id", uuid.NewString()))

	// Nav resolves membership for the tier clamp; a stale credential
	// triggers the client's re-login here, before any files are touched.
	account, err := a.client.Nav(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}

	report := &DownloadReport{Tier: tier, Privileged: account.Privileged()}
	tasks, err := a.planTasks(ctx, req, tier, outputDir, report, log)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		log.Info("nothing to download, all items already on disk",
			logging.Int("existing", report.AlreadyPresent))
		return report, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	if space := deps.CheckDownloadSpace(outputDir, a.cfg.Download.MinFreeSpaceGiB); !space.Available {
		return nil, fmt.Errorf("insufficient space in %s: %s", outputDir, space.Detail)
	}

	report.FFmpeg = deps.CheckFFmpeg(a.cfg.FFmpegBinary())
	var merger *merge.Coordinator
	if report.FFmpeg.Available {
		merger, err = merge.NewCoordinator(report.FFmpeg.Command, a.cfg.FFmpegTimeout(), log)
		if err != nil {
			return nil, err
		}
		if err := merger.Start(ctx); err != nil {
			return nil, err
		}
	} else {
		log.Warn("FFmpeg unavailable, separated streams will be kept video-only",
			logging.String("detail", report.FFmpeg.Detail))
	}

	acquirer, err := a.newAcquirer(account.Privileged(), merger, req.Progress, log)
	if err != nil {
		if merger != nil {
			merger.Stop()
		}
		return nil, err
	}

	runErr := a.runTasks(ctx, acquirer, tasks, report, log)

	if merger != nil {
		merger.Stop()
		report.Merge = merger.Stats()
		report.MergeAbandoned = merger.Pending()
	}
	return report, runErr
}

// planTasks turns the request into acquisition tasks. Collection items whose
// final file already exists are skipped here, before any network traffic,
// unless the run overwrites.
func (a *App) planTasks(ctx context.Context, req DownloadRequest, tier media.Tier, outputDir string, report *DownloadReport, log *slog.Logger) ([]download.Task, error) {
	var tasks []download.Task

	if req.CollectionID != 0 {
		collection, err := a.store.CollectionByID(ctx, req.CollectionID)
		if err != nil {
			return nil, err
		}
		if collection == nil {
			return nil, fmt.Errorf("collection %d is not in the library; run \"bilifav sync\" first", req.CollectionID)
		}
		items, err := a.store.Items(ctx, req.CollectionID)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("collection %q has no synced items", collection.Title)
		}

		destDir := filepath.Join(outputDir, fileutil.SafeFileName(collection.Title))
		for _, item := range items {
			if !req.Overwrite {
				final := filepath.Join(destDir, download.FinalFileName(item.Title, item.BVID))
				if _, statErr := os.Stat(final); statErr == nil {
					report.AlreadyPresent++
					continue
				}
			}
			tasks = append(tasks, download.Task{
				BVID:      item.BVID,
				Title:     item.Title,
				DestDir:   destDir,
				Tier:      tier,
				Overwrite: req.Overwrite,
				Pages:     req.Pages,
			})
		}
		log.Info("collection download planned",
			logging.Int64(logging.FieldCollectionID, collection.ID),
			logging.String("title", collection.Title),
			logging.Int("queued", len(tasks)),
			logging.Int("existing", report.AlreadyPresent))
	}

	for _, bvid := range req.BVIDs {
		bvid = strings.TrimSpace(bvid)
		if bvid == "" {
			continue
		}
		tasks = append(tasks, download.Task{
			BVID:      bvid,
			DestDir:   outputDir,
			Tier:      tier,
			Overwrite: req.Overwrite,
			Pages:     req.Pages,
		})
	}
	return tasks, nil
}

func (a *App) newAcquirer(privileged bool, merger *merge.Coordinator, progress download.ProgressFunc, log *slog.Logger) (*download.Acquirer, error) {
	resolv, err := resolver.New(a.client, privileged, log)
	if err != nil {
		return nil, err
	}
	opts := []download.AcquirerOption{
		download.WithHeaderSource(a.client.DownloadHeaders),
	}
	if merger != nil {
		opts = append(opts, download.WithMergeQueue(merger))
	}
	if progress != nil {
		opts = append(opts, download.WithProgress(progress))
	}
	return download.NewAcquirer(resolv, download.NewDownloader(nil, log), log, opts...)
}

// runTasks acquires items one at a time. Item failures are recorded and the
// loop continues; only cancellation stops it.
func (a *App) runTasks(ctx context.Context, acquirer *download.Acquirer, tasks []download.Task, report *DownloadReport, log *slog.Logger) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := acquirer.AcquireItem(ctx, task)
		if result != nil {
			report.Items = append(report.Items, *result)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if result == nil {
				// Setup failures (unresolvable item, bad part selection)
				// still show up in the report as a failed item.
				report.Items = append(report.Items, download.ItemResult{
					BVID:  task.BVID,
					Title: task.Title,
					Pages: []download.PageResult{{Err: err}},
				})
			}
			log.Error("item failed",
				logging.String(logging.FieldBVID, task.BVID),
				logging.Error(err))
		}
	}
	return nil
}
