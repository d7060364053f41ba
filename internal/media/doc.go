// Package media models quality tiers and stream payloads for the remote
// service and selects concrete stream URLs from playback responses.
//
// This package holds pure logic only: tier/code mapping, the non-member
// quality clamp, and the DASH stream selection rules (exact quality match
// with highest-available fallback for video, highest bandwidth for audio,
// combined-stream fallback when either list is empty). Network access and
// the DASH-to-legacy retry live in internal/resolver.
package media
