package merge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bilifav/internal/fileutil"
	"bilifav/internal/logging"
)

const (
	// queueCapacity bounds the backlog. Downloads are sequential, so the
	// queue only grows while a merge is slower than the next download.
	queueCapacity = 64

	// stopTimeout bounds how long Stop waits for the worker to finish.
	stopTimeout = 5 * time.Second
)

// Job is one queued merge: combine VideoPath and AudioPath into OutputPath.
type Job struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
	Title      string
	BVID       string
}

// Stats counts finished job outcomes.
type Stats struct {
	Merged   int
	Fallback int
}

// Coordinator owns the merge queue and its single background worker.
type Coordinator struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	jobs    chan Job
	done    chan struct{}
	stats   Stats
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Coordinator) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// NewCoordinator builds a coordinator invoking the given remuxer binary.
// Callers must only construct one when the binary is known to be available;
// without a remuxer the merge stage is disabled entirely.
func NewCoordinator(binary string, timeout time.Duration, logger *slog.Logger, opts ...Option) (*Coordinator, error) {
	if binary == "" {
		return nil, errors.New("merge: remuxer binary is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	c := &Coordinator{
		binary:  binary,
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "merge"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start launches the background worker. The context bounds every merge and
// stops the worker early when cancelled, abandoning any queued jobs.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return errors.New("merge: already running")
	}
	c.running = true
	c.jobs = make(chan Job, queueCapacity)
	c.done = make(chan struct{})
	go c.run(ctx)
	c.logger.Info("merge worker started", logging.String("binary", c.binary))
	return nil
}

// Enqueue adds a job to the queue. The job is only visible to the worker
// once Enqueue returns.
func (c *Coordinator) Enqueue(job Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return errors.New("merge: coordinator not running")
	}
	select {
	case c.jobs <- job:
	default:
		return errors.New("merge: queue full")
	}
	c.logger.Info("queued merge",
		logging.String(logging.FieldBVID, job.BVID),
		logging.String("title", job.Title),
		logging.Int("backlog", len(c.jobs)),
		logging.String(logging.FieldEventType, "merge_queued"))
	return nil
}

// Pending reports the queued job count, not counting one the worker may be
// processing.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.jobs == nil {
		return 0
	}
	return len(c.jobs)
}

// Stats returns a snapshot of finished job counts.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Stop closes the queue, lets the worker drain remaining jobs, and waits up
// to five seconds for it to exit. It reports whether the worker exited in
// time.
func (c *Coordinator) Stop() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return true
	}
	c.running = false
	close(c.jobs)
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return true
	case <-time.After(stopTimeout):
		c.logger.Warn("merge worker still busy at shutdown",
			logging.Alert("merge_stop_timeout"))
		return false
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-c.jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			c.process(ctx, job)
		}
	}
}

func (c *Coordinator) process(ctx context.Context, job Job) {
	log := c.logger.With(
		logging.String(logging.FieldBVID, job.BVID),
		logging.String("title", job.Title))
	log.Info("merging streams", logging.String(logging.FieldEventType, "merge_started"))

	jobCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{
		"-i", job.VideoPath,
		"-i", job.AudioPath,
		"-c", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-y",
		job.OutputPath,
	}
	err := c.exec.Run(jobCtx, c.binary, args)
	if err == nil {
		c.finish(job, true)
		log.Info("merge complete", logging.String(logging.FieldEventType, "merge_done"))
		c.cleanupTemps(job, false, log)
		return
	}

	log.Error("merge failed, keeping video-only artifact",
		logging.Error(err),
		logging.String(logging.FieldEventType, "merge_fallback"))
	spareVideo := false
	if fileutil.FileExists(job.VideoPath) {
		if moveErr := fileutil.MoveFile(job.VideoPath, job.OutputPath); moveErr != nil {
			// Leave the temp in place rather than destroy the only copy.
			log.Error("video fallback rename failed", logging.Error(moveErr))
			spareVideo = true
		}
	}
	c.finish(job, false)
	c.cleanupTemps(job, spareVideo, log)
}

// cleanupTemps removes whichever temp files still exist.
func (c *Coordinator) cleanupTemps(job Job, spareVideo bool, log *slog.Logger) {
	if !spareVideo {
		if err := fileutil.RemoveIfExists(job.VideoPath); err != nil {
			log.Warn("failed to remove video temp", logging.Error(err))
		}
	}
	if err := fileutil.RemoveIfExists(job.AudioPath); err != nil {
		log.Warn("failed to remove audio temp", logging.Error(err))
	}
}

func (c *Coordinator) finish(job Job, merged bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if merged {
		c.stats.Merged++
	} else {
		c.stats.Fallback++
	}
}
