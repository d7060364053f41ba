package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bilifav/internal/logging"
)

const (
	// chunkSize is the read/write unit. Cancellation is observed between
	// chunks, so it also bounds how long an interrupt can go unnoticed.
	chunkSize = 8 * 1024

	// fallbackTotalBytes stands in when the response declares no size. The
	// expected size feeds progress display only; completion is determined
	// by stream exhaustion.
	fallbackTotalBytes = 1 << 20
)

// Progress is one observation of a running transfer.
type Progress struct {
	Label    string
	Phase    string
	Received int64
	Total    int64
	// Percent is negative when the expected size is unknown.
	Percent float64
	Done    bool
}

// ProgressFunc receives transfer progress. Implementations own all display
// logic.
type ProgressFunc func(Progress)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Downloader streams media URLs into local files in small chunks.
type Downloader struct {
	client HTTPDoer
	logger *slog.Logger
}

// NewDownloader builds a Downloader. A nil client falls back to an
// http.Client without an overall timeout; transfers are bounded by the
// caller's context, since a whole-request timeout would abort long
// downloads mid-stream.
func NewDownloader(client HTTPDoer, logger *slog.Logger) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{
		client: client,
		logger: logging.NewComponentLogger(logger, "download"),
	}
}

// Download streams url into dest with the given request headers. On any
// failure, including cancellation, the partial file is removed; a dest file
// only survives when the stream was read to exhaustion.
func (d *Downloader) Download(ctx context.Context, url, dest string, headers http.Header, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("start transfer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transfer returned %s", resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	received, err := d.copyChunks(ctx, out, resp.Body, expectedSize(resp), progress)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(dest); removeErr != nil && !os.IsNotExist(removeErr) {
			d.logger.Warn("failed to remove partial file",
				logging.String("path", dest),
				logging.Error(removeErr))
		}
		return err
	}

	d.logger.Debug("transfer complete",
		logging.String("path", dest),
		logging.Int64("bytes", received))
	return nil
}

func (d *Downloader) copyChunks(ctx context.Context, out io.Writer, body io.Reader, expected int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, chunkSize)
	sampler := logging.NewProgressSampler(10)
	var received int64
	for {
		if err := ctx.Err(); err != nil {
			return received, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return received, fmt.Errorf("write chunk: %w", writeErr)
			}
			received += int64(n)
			percent := percentOf(received, expected)
			if progress != nil {
				progress(Progress{Received: received, Total: expected, Percent: percent})
			}
			if sampler.ShouldLog(percent, "") {
				d.logger.Debug("transfer progress",
					logging.Int64("received", received),
					logging.Int64("expected", expected))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return received, fmt.Errorf("read stream: %w", readErr)
		}
	}
	if progress != nil {
		progress(Progress{Received: received, Total: received, Percent: 100, Done: true})
	}
	return received, nil
}

// expectedSize reads the declared transfer size: Content-Length first, then
// the total behind the slash of a Content-Range, then the placeholder.
func expectedSize(resp *http.Response) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
		if idx := strings.LastIndex(contentRange, "/"); idx >= 0 {
			if total, err := strconv.ParseInt(contentRange[idx+1:], 10, 64); err == nil && total > 0 {
				return total
			}
		}
	}
	return fallbackTotalBytes
}

func percentOf(received, expected int64) float64 {
	if expected <= 0 {
		return -1
	}
	percent := float64(received) / float64(expected) * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}
