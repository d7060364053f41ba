package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bilifav/internal/fileutil"
	"bilifav/internal/logging"
	"bilifav/internal/media"
	"bilifav/internal/merge"
)

// Task describes one item acquisition, alive for a single run.
type Task struct {
	BVID      string
	Title     string
	DestDir   string
	Tier      media.Tier
	Overwrite bool
	// Pages restricts acquisition to the given part numbers. Empty selects
	// every part.
	Pages []int
}

// Outcome classifies how one page of a task ended.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeDownloaded
	OutcomeQueuedMerge
	OutcomeDegraded
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeQueuedMerge:
		return "queued for merge"
	case OutcomeDegraded:
		return "video only"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PageResult is the outcome of one page of a task.
type PageResult struct {
	Page    media.Page
	Outcome Outcome
	// Path is the final artifact location. For queued merges the file
	// appears there once the background stage completes.
	Path string
	Err  error
}

// ItemResult aggregates per-page outcomes for one task.
type ItemResult struct {
	BVID  string
	Title string
	Pages []PageResult
}

// Succeeded counts pages that produced, or will produce, an artifact.
func (r ItemResult) Succeeded() int {
	count := 0
	for _, page := range r.Pages {
		switch page.Outcome {
		case OutcomeDownloaded, OutcomeQueuedMerge, OutcomeDegraded:
			count++
		}
	}
	return count
}

// Failed counts pages that produced nothing.
func (r ItemResult) Failed() int {
	count := 0
	for _, page := range r.Pages {
		if page.Outcome == OutcomeFailed {
			count++
		}
	}
	return count
}

// Skipped counts pages left alone because the artifact already existed.
func (r ItemResult) Skipped() int {
	count := 0
	for _, page := range r.Pages {
		if page.Outcome == OutcomeSkipped {
			count++
		}
	}
	return count
}

// PageResolver negotiates pages and streams. *resolver.Resolver satisfies it.
type PageResolver interface {
	Pages(ctx context.Context, bvid string) ([]media.Page, error)
	Resolve(ctx context.Context, bvid string, cid int64, tier media.Tier) (media.StreamSet, error)
}

// Fetcher streams one URL to disk. *Downloader satisfies it.
type Fetcher interface {
	Download(ctx context.Context, url, dest string, headers http.Header, progress ProgressFunc) error
}

// MergeQueue hands finished stream pairs to the background remux stage.
// *merge.Coordinator satisfies it.
type MergeQueue interface {
	Enqueue(job merge.Job) error
}

// Acquirer orchestrates per-item acquisition.
type Acquirer struct {
	resolver PageResolver
	fetcher  Fetcher
	merger   MergeQueue
	headers  func() http.Header
	progress ProgressFunc
	logger   *slog.Logger
}

// AcquirerOption configures an Acquirer.
type AcquirerOption func(*Acquirer)

// WithMergeQueue enables audio downloads and merge handoff. Without a queue
// the acquirer never fetches separate audio and keeps video-only artifacts.
func WithMergeQueue(queue MergeQueue) AcquirerOption {
	return func(a *Acquirer) {
		a.merger = queue
	}
}

// WithHeaderSource sets the supplier of per-request download headers,
// typically bound to the API client's credential cookies.
func WithHeaderSource(headers func() http.Header) AcquirerOption {
	return func(a *Acquirer) {
		a.headers = headers
	}
}

// WithProgress attaches a byte-progress sink for the interactive display.
func WithProgress(progress ProgressFunc) AcquirerOption {
	return func(a *Acquirer) {
		a.progress = progress
	}
}

// NewAcquirer builds an Acquirer over a resolver and a fetcher.
func NewAcquirer(resolver PageResolver, fetcher Fetcher, logger *slog.Logger, opts ...AcquirerOption) (*Acquirer, error) {
	if resolver == nil {
		return nil, errors.New("acquirer: resolver is required")
	}
	if fetcher == nil {
		return nil, errors.New("acquirer: fetcher is required")
	}
	a := &Acquirer{
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logging.NewComponentLogger(logger, "acquire"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// FinalFileName returns the artifact name used for a part with the given
// title, shared with pre-download accounting so both sides agree.
func FinalFileName(title, bvid string) string {
	stem := fileutil.SafeFileName(title) + "_" + bvid
	return fileutil.ShortenFileName(stem + ".mp4")
}

// AcquireItem downloads every selected page of one item. Page failures are
// recorded and the remaining pages continue; only cancellation or a setup
// failure aborts the whole item.
func (a *Acquirer) AcquireItem(ctx context.Context, task Task) (*ItemResult, error) {
	if task.BVID == "" {
		return nil, errors.New("task has no media identifier")
	}
	pages, err := a.resolver.Pages(ctx, task.BVID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 1 && task.Title != "" {
		// Collection payloads carry the canonical item title; prefer it for
		// single-part items so the name matches pre-download accounting.
		pages[0].Title = task.Title
	}
	selected := filterPages(pages, task.Pages)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no parts of %s match selection %v", task.BVID, task.Pages)
	}
	if err := os.MkdirAll(task.DestDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	result := &ItemResult{BVID: task.BVID, Title: task.Title}
	if result.Title == "" {
		result.Title = selected[0].Title
	}
	for _, page := range selected {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pageResult := a.acquirePage(ctx, task, page)
		result.Pages = append(result.Pages, pageResult)
		if pageResult.Err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}
	}
	return result, nil
}

func filterPages(pages []media.Page, wanted []int) []media.Page {
	if len(wanted) == 0 {
		return pages
	}
	selected := make([]media.Page, 0, len(wanted))
	for _, page := range pages {
		if slices.Contains(wanted, page.Number) {
			selected = append(selected, page)
		}
	}
	return selected
}

func (a *Acquirer) acquirePage(ctx context.Context, task Task, page media.Page) PageResult {
	title := page.Title
	if title == "" {
		title = task.BVID
	}
	finalPath := filepath.Join(task.DestDir, FinalFileName(title, task.BVID))
	result := PageResult{Page: page, Path: finalPath}

	log := a.logger.With(
		logging.String(logging.FieldBVID, task.BVID),
		logging.String("part", title))

	if fileutil.FileExists(finalPath) {
		if !task.Overwrite {
			log.Info("file already present, skipping")
			result.Outcome = OutcomeSkipped
			return result
		}
		if err := os.Remove(finalPath); err != nil {
			log.Error("failed to remove existing file", logging.Error(err))
			result.Err = fmt.Errorf("remove existing file: %w", err)
			return result
		}
		log.Info("existing file removed for overwrite")
	}

	streams, err := a.resolver.Resolve(ctx, task.BVID, page.CID, task.Tier)
	if err != nil {
		result.Err = err
		if ctx.Err() == nil {
			log.Error("stream negotiation failed", logging.Error(err))
		}
		return result
	}

	base := strings.TrimSuffix(finalPath, filepath.Ext(finalPath))
	videoTemp := base + "_video.tmp"

	log.Info("downloading video",
		logging.String(logging.FieldQuality, streams.Quality.String()),
		logging.String("format", string(streams.Format)))
	if err := a.fetcher.Download(ctx, streams.VideoURL, videoTemp, a.requestHeaders(), a.phaseProgress(title, "video")); err != nil {
		result.Err = fmt.Errorf("video download: %w", err)
		if ctx.Err() == nil {
			log.Error("video download failed", logging.Error(err))
		}
		return result
	}

	if !streams.SeparateAudio() || a.merger == nil {
		if streams.SeparateAudio() {
			log.Warn("remuxer unavailable, keeping video-only artifact")
		}
		return a.finishVideoOnly(videoTemp, finalPath, OutcomeDownloaded, result, log)
	}

	audioTemp := base + "_audio.tmp"
	log.Info("downloading audio")
	if err := a.fetcher.Download(ctx, streams.AudioURL, audioTemp, a.requestHeaders(), a.phaseProgress(title, "audio")); err != nil {
		if ctx.Err() != nil {
			// A cancelled run never commits a degraded artifact.
			_ = fileutil.RemoveIfExists(videoTemp)
			result.Err = ctx.Err()
			return result
		}
		log.Warn("audio download failed, keeping video-only artifact", logging.Error(err))
		return a.finishVideoOnly(videoTemp, finalPath, OutcomeDegraded, result, log)
	}

	job := merge.Job{
		VideoPath:  videoTemp,
		AudioPath:  audioTemp,
		OutputPath: finalPath,
		Title:      title,
		BVID:       task.BVID,
	}
	if err := a.merger.Enqueue(job); err != nil {
		log.Warn("merge queue rejected job, keeping video-only artifact", logging.Error(err))
		_ = fileutil.RemoveIfExists(audioTemp)
		return a.finishVideoOnly(videoTemp, finalPath, OutcomeDegraded, result, log)
	}
	result.Outcome = OutcomeQueuedMerge
	log.Info("streams handed to merge stage")
	return result
}

func (a *Acquirer) finishVideoOnly(videoTemp, finalPath string, outcome Outcome, result PageResult, log *slog.Logger) PageResult {
	if err := fileutil.MoveFile(videoTemp, finalPath); err != nil {
		log.Error("failed to finalize video file", logging.Error(err))
		result.Err = fmt.Errorf("finalize video: %w", err)
		return result
	}
	result.Outcome = outcome
	log.Info("download complete", logging.String("path", finalPath))
	return result
}

func (a *Acquirer) requestHeaders() http.Header {
	if a.headers == nil {
		return nil
	}
	return a.headers()
}

func (a *Acquirer) phaseProgress(label, phase string) ProgressFunc {
	if a.progress == nil {
		return nil
	}
	return func(p Progress) {
		p.Label = label
		p.Phase = phase
		a.progress(p)
	}
}
