// Package merge runs the background remux worker. Downloads enqueue jobs
// pairing a video temp file with an audio temp file; a single worker
// goroutine combines them into the final artifact with FFmpeg in
// stream-copy mode, falling back to promoting the video file alone when the
// merge fails. Jobs are processed strictly in enqueue order.
package merge
