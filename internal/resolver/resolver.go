package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilifav/internal/bili"
	"bilifav/internal/logging"
	"bilifav/internal/media"
)

// PlaybackSource is the remote surface the resolver needs. *bili.Client
// satisfies it.
type PlaybackSource interface {
	View(ctx context.Context, bvid string) (*bili.VideoDetail, error)
	PlayURL(ctx context.Context, bvid string, cid int64, qn, fnval int) (*bili.PlayInfo, error)
}

// Resolver negotiates playable streams for items.
type Resolver struct {
	source     PlaybackSource
	privileged bool
	logger     *slog.Logger
}

// New builds a Resolver. privileged unlocks quality tiers above the
// non-member maximum.
func New(source PlaybackSource, privileged bool, logger *slog.Logger) (*Resolver, error) {
	if source == nil {
		return nil, errors.New("resolver: playback source is required")
	}
	return &Resolver{
		source:     source,
		privileged: privileged,
		logger:     logging.NewComponentLogger(logger, "resolve"),
	}, nil
}

// Pages returns the playable parts of an item. Items without multiple parts
// yield one synthesized page carrying the item's title and primary stream
// identifier.
func (r *Resolver) Pages(ctx context.Context, bvid string) ([]media.Page, error) {
	detail, err := r.source.View(ctx, bvid)
	if err != nil {
		return nil, fmt.Errorf("fetching detail for %s: %w", bvid, err)
	}
	if len(detail.Pages) > 1 {
		pages := make([]media.Page, 0, len(detail.Pages))
		for _, part := range detail.Pages {
			pages = append(pages, media.Page{
				CID:      part.CID,
				Number:   part.Page,
				Title:    part.Part,
				Duration: part.Duration,
			})
		}
		return pages, nil
	}
	cid := detail.CID
	if cid == 0 && len(detail.Pages) == 1 {
		cid = detail.Pages[0].CID
	}
	return []media.Page{{
		CID:      cid,
		Number:   1,
		Title:    detail.Title,
		Duration: detail.Duration,
	}}, nil
}

// Resolve negotiates stream URLs for one page at the requested tier. The
// tier is clamped for accounts without membership. When the first, adaptive
// request is rejected with an application-level code, exactly one follow-up
// request for the legacy combined format is issued before giving up.
func (r *Resolver) Resolve(ctx context.Context, bvid string, cid int64, requested media.Tier) (media.StreamSet, error) {
	tier := requested.Clamp(r.privileged)
	if tier != requested {
		r.logger.Info("quality lowered to the account maximum",
			logging.String(logging.FieldBVID, bvid),
			logging.String("requested", requested.String()),
			logging.String(logging.FieldQuality, tier.String()))
	}

	info, err := r.source.PlayURL(ctx, bvid, cid, int(tier), tier.FormatValue())
	if err != nil {
		var apiErr *bili.APIError
		if !tier.UsesDASH() || !errors.As(err, &apiErr) {
			return media.StreamSet{}, fmt.Errorf("negotiating streams for %s: %w", bvid, err)
		}
		r.logger.Warn("adaptive format rejected, retrying combined format",
			logging.String(logging.FieldBVID, bvid),
			logging.Error(err))
		info, err = r.source.PlayURL(ctx, bvid, cid, int(tier), 0)
		if err != nil {
			return media.StreamSet{}, fmt.Errorf("combined format retry for %s: %w", bvid, err)
		}
	}

	set, err := media.Select(info, tier)
	if err != nil {
		return media.StreamSet{}, fmt.Errorf("selecting streams for %s: %w", bvid, err)
	}
	r.logger.Info("streams negotiated",
		logging.String(logging.FieldBVID, bvid),
		logging.String(logging.FieldQuality, set.Quality.String()),
		logging.String("format", string(set.Format)),
		logging.Bool("separate_audio", set.SeparateAudio()))
	return set, nil
}
