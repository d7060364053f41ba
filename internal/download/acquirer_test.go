package download_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bilifav/internal/download"
	"bilifav/internal/logging"
	"bilifav/internal/media"
	"bilifav/internal/merge"
)

type fakeResolver struct {
	pages        []media.Page
	pagesErr     error
	streams      map[int64]media.StreamSet
	resolveErr   map[int64]error
	resolveCalls []int64
}

func (f *fakeResolver) Pages(ctx context.Context, bvid string) ([]media.Page, error) {
	if f.pagesErr != nil {
		return nil, f.pagesErr
	}
	pages := make([]media.Page, len(f.pages))
	copy(pages, f.pages)
	return pages, nil
}

func (f *fakeResolver) Resolve(ctx context.Context, bvid string, cid int64, tier media.Tier) (media.StreamSet, error) {
	f.resolveCalls = append(f.resolveCalls, cid)
	if err := f.resolveErr[cid]; err != nil {
		return media.StreamSet{}, err
	}
	return f.streams[cid], nil
}

type fetchCall struct {
	url  string
	dest string
}

// fakeFetcher simulates the chunked downloader: success writes the mapped
// content to dest, failure writes nothing (the real downloader removes its
// partial). cancelOn cancels the run's context when the given URL starts.
type fakeFetcher struct {
	calls    []fetchCall
	failFor  map[string]error
	content  map[string]string
	cancelOn string
	cancel   context.CancelFunc
}

func (f *fakeFetcher) Download(ctx context.Context, url, dest string, headers http.Header, progress download.ProgressFunc) error {
	f.calls = append(f.calls, fetchCall{url: url, dest: dest})
	if url == f.cancelOn && f.cancel != nil {
		f.cancel()
		return ctx.Err()
	}
	if err := f.failFor[url]; err != nil {
		return err
	}
	if progress != nil {
		progress(download.Progress{Received: 4, Total: 4, Percent: 100, Done: true})
	}
	content := f.content[url]
	if content == "" {
		content = "data"
	}
	return os.WriteFile(dest, []byte(content), 0o644)
}

type fakeQueue struct {
	jobs []merge.Job
	err  error
}

func (f *fakeQueue) Enqueue(job merge.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func singlePage(title string) []media.Page {
	return []media.Page{{CID: 100, Number: 1, Title: title}}
}

func combinedSet(url string) media.StreamSet {
	return media.StreamSet{VideoURL: url, Quality: media.Tier480P, Format: media.FormatCombined}
}

func dashSet(videoURL, audioURL string) media.StreamSet {
	return media.StreamSet{VideoURL: videoURL, AudioURL: audioURL, Quality: media.Tier1080P, Format: media.FormatDASH}
}

func newAcquirer(t *testing.T, resolver download.PageResolver, fetcher download.Fetcher, opts ...download.AcquirerOption) *download.Acquirer {
	t.Helper()
	a, err := download.NewAcquirer(resolver, fetcher, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewAcquirer: %v", err)
	}
	return a
}

func task(dir string) download.Task {
	return download.Task{
		BVID:    "BV1TEST",
		Title:   "My Video",
		DestDir: dir,
		Tier:    media.Tier1080P,
	}
}

func TestAcquireItemCombinedStreamBecomesFinalDirectly(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: combinedSet("http://cdn/video")},
	}
	fetcher := &fakeFetcher{content: map[string]string{"http://cdn/video": "video-bytes"}}
	a := newAcquirer(t, resolver, fetcher)

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if len(result.Pages) != 1 || result.Pages[0].Outcome != download.OutcomeDownloaded {
		t.Fatalf("result = %+v, want one downloaded page", result)
	}

	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	data, readErr := os.ReadFile(finalPath)
	if readErr != nil {
		t.Fatalf("read final: %v", readErr)
	}
	if string(data) != "video-bytes" {
		t.Errorf("final content = %q", data)
	}
	videoTemp := strings.TrimSuffix(finalPath, ".mp4") + "_video.tmp"
	if _, statErr := os.Stat(videoTemp); !os.IsNotExist(statErr) {
		t.Error("video temp should be gone after the rename")
	}
}

func TestAcquireItemSeparateAudioQueuesMerge(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{}
	queue := &fakeQueue{}
	a := newAcquirer(t, resolver, fetcher, download.WithMergeQueue(queue))

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if result.Pages[0].Outcome != download.OutcomeQueuedMerge {
		t.Fatalf("outcome = %v, want queued merge", result.Pages[0].Outcome)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("queued %d jobs, want 1", len(queue.jobs))
	}

	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	base := strings.TrimSuffix(finalPath, ".mp4")
	job := queue.jobs[0]
	if job.VideoPath != base+"_video.tmp" || job.AudioPath != base+"_audio.tmp" || job.OutputPath != finalPath {
		t.Errorf("job paths = %+v", job)
	}
	if job.BVID != "BV1TEST" {
		t.Errorf("job bvid = %q", job.BVID)
	}
	// The final file belongs to the merge stage; both temps must still exist.
	if _, statErr := os.Stat(finalPath); !os.IsNotExist(statErr) {
		t.Error("final file should not exist before the merge runs")
	}
	for _, temp := range []string{job.VideoPath, job.AudioPath} {
		if _, statErr := os.Stat(temp); statErr != nil {
			t.Errorf("temp %s missing: %v", temp, statErr)
		}
	}
}

func TestAcquireItemAudioFailureKeepsVideoOnly(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{
		content: map[string]string{"http://cdn/v": "video-bytes"},
		failFor: map[string]error{"http://cdn/a": errors.New("read stream: connection reset")},
	}
	queue := &fakeQueue{}
	a := newAcquirer(t, resolver, fetcher, download.WithMergeQueue(queue))

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if result.Pages[0].Outcome != download.OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", result.Pages[0].Outcome)
	}
	if len(queue.jobs) != 0 {
		t.Error("nothing should be queued when audio failed")
	}

	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	data, readErr := os.ReadFile(finalPath)
	if readErr != nil {
		t.Fatalf("read final: %v", readErr)
	}
	if string(data) != "video-bytes" {
		t.Errorf("final content = %q, want the video temp content", data)
	}
}

func TestAcquireItemVideoFailureMarksPageFailed(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: combinedSet("http://cdn/video")},
	}
	fetcher := &fakeFetcher{failFor: map[string]error{"http://cdn/video": errors.New("transfer returned 403 Forbidden")}}
	a := newAcquirer(t, resolver, fetcher)

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem should continue past page failures: %v", err)
	}
	if result.Failed() != 1 || result.Succeeded() != 0 {
		t.Fatalf("counts = %d failed / %d succeeded", result.Failed(), result.Succeeded())
	}
	if result.Pages[0].Err == nil {
		t.Error("failed page should carry its error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no files should remain, found %d", len(entries))
	}
}

func TestAcquireItemSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	if err := os.WriteFile(finalPath, []byte("already here"), 0o644); err != nil {
		t.Fatalf("seed final: %v", err)
	}

	resolver := &fakeResolver{pages: singlePage("My Video")}
	fetcher := &fakeFetcher{}
	a := newAcquirer(t, resolver, fetcher)

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if result.Pages[0].Outcome != download.OutcomeSkipped {
		t.Fatalf("outcome = %v, want skipped", result.Pages[0].Outcome)
	}
	if len(resolver.resolveCalls) != 0 {
		t.Error("skipped pages should not negotiate streams")
	}
	if len(fetcher.calls) != 0 {
		t.Error("skipped pages should not download")
	}
	if data, _ := os.ReadFile(finalPath); string(data) != "already here" {
		t.Errorf("existing file was modified: %q", data)
	}
}

func TestAcquireItemOverwriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	if err := os.WriteFile(finalPath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed final: %v", err)
	}

	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: combinedSet("http://cdn/video")},
	}
	fetcher := &fakeFetcher{content: map[string]string{"http://cdn/video": "fresh"}}
	a := newAcquirer(t, resolver, fetcher)

	tk := task(dir)
	tk.Overwrite = true
	result, err := a.AcquireItem(context.Background(), tk)
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if result.Pages[0].Outcome != download.OutcomeDownloaded {
		t.Fatalf("outcome = %v, want downloaded", result.Pages[0].Outcome)
	}
	if data, _ := os.ReadFile(finalPath); string(data) != "fresh" {
		t.Errorf("final content = %q, want %q", data, "fresh")
	}
}

func TestAcquireItemWithoutMergeQueueSkipsAudio(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{}
	a := newAcquirer(t, resolver, fetcher) // no merge queue

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("fetched %d URLs, want only the video", len(fetcher.calls))
	}
	if fetcher.calls[0].url != "http://cdn/v" {
		t.Errorf("fetched %q", fetcher.calls[0].url)
	}
	if result.Pages[0].Outcome != download.OutcomeDownloaded {
		t.Fatalf("outcome = %v, want downloaded", result.Pages[0].Outcome)
	}
}

func TestAcquireItemEnqueueFailureKeepsVideoOnly(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{content: map[string]string{"http://cdn/v": "video-bytes"}}
	queue := &fakeQueue{err: errors.New("merge: queue full")}
	a := newAcquirer(t, resolver, fetcher, download.WithMergeQueue(queue))

	result, err := a.AcquireItem(context.Background(), task(dir))
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if result.Pages[0].Outcome != download.OutcomeDegraded {
		t.Fatalf("outcome = %v, want degraded", result.Pages[0].Outcome)
	}

	finalPath := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	if data, readErr := os.ReadFile(finalPath); readErr != nil || string(data) != "video-bytes" {
		t.Errorf("final = %q (%v), want the video content", data, readErr)
	}
	audioTemp := strings.TrimSuffix(finalPath, ".mp4") + "_audio.tmp"
	if _, statErr := os.Stat(audioTemp); !os.IsNotExist(statErr) {
		t.Error("audio temp should be removed when the queue rejects the job")
	}
}

func TestAcquireItemMultiPartUsesPartTitles(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages: []media.Page{
			{CID: 101, Number: 1, Title: "Part One"},
			{CID: 102, Number: 2, Title: "Part Two"},
			{CID: 103, Number: 3, Title: "Part Three"},
		},
		streams: map[int64]media.StreamSet{
			101: combinedSet("http://cdn/p1"),
			103: combinedSet("http://cdn/p3"),
		},
	}
	fetcher := &fakeFetcher{}
	a := newAcquirer(t, resolver, fetcher)

	tk := task(dir)
	tk.Pages = []int{1, 3}
	result, err := a.AcquireItem(context.Background(), tk)
	if err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("acquired %d pages, want 2", len(result.Pages))
	}
	for _, want := range []string{"Part One", "Part Three"} {
		path := filepath.Join(dir, download.FinalFileName(want, "BV1TEST"))
		if _, statErr := os.Stat(path); statErr != nil {
			t.Errorf("missing artifact for %q: %v", want, statErr)
		}
	}
	if len(resolver.resolveCalls) != 2 || resolver.resolveCalls[0] != 101 || resolver.resolveCalls[1] != 103 {
		t.Errorf("resolved cids = %v, want [101 103]", resolver.resolveCalls)
	}
}

func TestAcquireItemNoMatchingParts(t *testing.T) {
	resolver := &fakeResolver{pages: singlePage("My Video")}
	a := newAcquirer(t, resolver, &fakeFetcher{})

	tk := task(t.TempDir())
	tk.Pages = []int{7}
	if _, err := a.AcquireItem(context.Background(), tk); err == nil {
		t.Fatal("AcquireItem should fail when the selection matches nothing")
	}
}

func TestAcquireItemSinglePagePrefersTaskTitle(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("Title From View"),
		streams: map[int64]media.StreamSet{100: combinedSet("http://cdn/video")},
	}
	fetcher := &fakeFetcher{}
	a := newAcquirer(t, resolver, fetcher)

	if _, err := a.AcquireItem(context.Background(), task(dir)); err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	want := filepath.Join(dir, download.FinalFileName("My Video", "BV1TEST"))
	if _, statErr := os.Stat(want); statErr != nil {
		t.Errorf("artifact should use the task title: %v", statErr)
	}
}

func TestAcquireItemCancelledDuringAudioRemovesVideoTemp(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{cancelOn: "http://cdn/a", cancel: cancel}
	queue := &fakeQueue{}
	a := newAcquirer(t, resolver, fetcher, download.WithMergeQueue(queue))

	result, err := a.AcquireItem(ctx, task(dir))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result == nil || len(result.Pages) != 1 {
		t.Fatalf("result = %+v", result)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cancellation should leave no files, found %d", len(entries))
	}
	if len(queue.jobs) != 0 {
		t.Error("nothing should be queued after cancellation")
	}
}

func TestAcquireItemStampsProgressLabels(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{
		pages:   singlePage("My Video"),
		streams: map[int64]media.StreamSet{100: dashSet("http://cdn/v", "http://cdn/a")},
	}
	fetcher := &fakeFetcher{}
	queue := &fakeQueue{}
	var phases []string
	a := newAcquirer(t, resolver, fetcher,
		download.WithMergeQueue(queue),
		download.WithProgress(func(p download.Progress) {
			if p.Label != "My Video" {
				t.Errorf("label = %q", p.Label)
			}
			phases = append(phases, p.Phase)
		}))

	if _, err := a.AcquireItem(context.Background(), task(dir)); err != nil {
		t.Fatalf("AcquireItem: %v", err)
	}
	if len(phases) != 2 || phases[0] != "video" || phases[1] != "audio" {
		t.Errorf("phases = %v, want [video audio]", phases)
	}
}
