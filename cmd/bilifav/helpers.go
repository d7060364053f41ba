package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bilifav/internal/bili"
)

// signalContext derives a command context that ends on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

// loginHint rewrites the missing-session error to name the command that
// fixes it.
func loginHint(err error) error {
	if errors.Is(err, bili.ErrNotLoggedIn) {
		return errors.New(`not logged in; run "bilifav login" first`)
	}
	return err
}
