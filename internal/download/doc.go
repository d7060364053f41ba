// Package download streams negotiated media URLs to disk and orchestrates
// per-item acquisition: filename generation, overwrite policy, video/audio
// temp downloads, and handoff to the background merge stage.
package download
