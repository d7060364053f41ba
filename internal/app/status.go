package app

import (
	"context"
	"time"

	"bilifav/internal/bili"
	"bilifav/internal/deps"
)

// StatusReport is a purely local snapshot: session presence, library totals,
// and tool availability. It deliberately makes no network calls so status
// works offline and never kicks off an interactive re-login.
type StatusReport struct {
	LoggedIn     bool
	Credential   bili.Credential // zero value when LoggedIn is false
	Collections  int64
	Items        int64
	LastSync     *time.Time
	FFmpeg       deps.Status
	Space        deps.Status
	DatabasePath string
}

// Status gathers the report.
func (a *App) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{DatabasePath: a.store.Path()}

	if cred, ok := a.sessions.Current(); ok {
		report.LoggedIn = true
		report.Credential = cred
	}

	collections, items, err := a.store.Totals(ctx)
	if err != nil {
		return nil, err
	}
	report.Collections = collections
	report.Items = items

	lastSync, err := a.store.LastSyncedAt(ctx)
	if err != nil {
		return nil, err
	}
	report.LastSync = lastSync

	report.FFmpeg = deps.CheckFFmpeg(a.cfg.FFmpegBinary())
	report.Space = deps.CheckDownloadSpace(a.cfg.Paths.DownloadDir, a.cfg.Download.MinFreeSpaceGiB)
	return report, nil
}
