// Package main hosts the bilifav CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into calls on
// the application facade: QR login, favorites sync, batch download, and
// status reporting. It centralizes configuration resolution and logger setup
// so subcommands can focus on flags and presentation.
package main
