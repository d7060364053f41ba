package media

import (
	"errors"
	"sort"

	"bilifav/internal/bili"
)

// Format identifies the delivery mode of a resolved stream set.
type Format string

const (
	// FormatDASH carries separate video and audio URLs that must be merged.
	FormatDASH Format = "dash"
	// FormatCombined carries a single already-muxed URL.
	FormatCombined Format = "flv"
)

// Page is one playable part of an item. Single-part items are represented
// as one synthesized page carrying the item title.
type Page struct {
	CID      int64
	Number   int
	Title    string
	Duration int
}

// StreamSet holds the negotiated download URLs for one page.
type StreamSet struct {
	VideoURL string
	AudioURL string
	Quality  Tier
	Format   Format
}

// SeparateAudio reports whether the set requires an audio download and merge.
func (s StreamSet) SeparateAudio() bool {
	return s.AudioURL != ""
}

// ErrNoStreams indicates a playback response with no usable URLs at all.
var ErrNoStreams = errors.New("playback response contains no streams")

// Select picks concrete URLs out of a playback response for the requested
// tier. When the adaptive representation is present the video stream whose
// quality code equals the request wins, falling back to the highest
// available code; audio is always the highest-bandwidth stream. If either
// list comes back empty the response is treated as a combined stream, using
// the first segment URL.
func Select(info *bili.PlayInfo, requested Tier) (StreamSet, error) {
	if info == nil {
		return StreamSet{}, ErrNoStreams
	}
	if requested.UsesDASH() && info.Dash != nil {
		if set, ok := selectDash(info.Dash, requested); ok {
			return set, nil
		}
	}
	return selectCombined(info, requested)
}

func selectDash(dash *bili.DashInfo, requested Tier) (StreamSet, bool) {
	video := pickVideo(dash.Video, requested)
	audio := pickAudio(dash.Audio)
	if video == nil || audio == nil {
		return StreamSet{}, false
	}
	return StreamSet{
		VideoURL: video.BaseURL,
		AudioURL: audio.BaseURL,
		Quality:  Tier(video.ID),
		Format:   FormatDASH,
	}, true
}

func pickVideo(streams []bili.DashStream, requested Tier) *bili.DashStream {
	for i := range streams {
		if Tier(streams[i].ID) == requested {
			return &streams[i]
		}
	}
	if len(streams) == 0 {
		return nil
	}
	sorted := make([]bili.DashStream, len(streams))
	copy(sorted, streams)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	return &sorted[0]
}

func pickAudio(streams []bili.DashStream) *bili.DashStream {
	if len(streams) == 0 {
		return nil
	}
	best := &streams[0]
	for i := 1; i < len(streams); i++ {
		if streams[i].Bandwidth > best.Bandwidth {
			best = &streams[i]
		}
	}
	return best
}

func selectCombined(info *bili.PlayInfo, requested Tier) (StreamSet, error) {
	if len(info.Durl) == 0 || info.Durl[0].URL == "" {
		return StreamSet{}, ErrNoStreams
	}
	negotiated := requested
	if info.Quality > 0 {
		negotiated = Tier(info.Quality)
	}
	return StreamSet{
		VideoURL: info.Durl[0].URL,
		Quality:  negotiated,
		Format:   FormatCombined,
	}, nil
}
