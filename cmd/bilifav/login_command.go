package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bilifav/internal/app"
)

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in by scanning a QR code",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd)
			defer stop()

			stdout := cmd.OutOrStdout()
			return ctx.withApp(func(a *app.App) error {
				cred, account, err := a.Login(runCtx, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Logged in as %s (uid %d)\n", account.Name, account.Mid)
				if account.Privileged() {
					fmt.Fprintln(stdout, "Membership active; tiers above 1080P are available")
				}
				fmt.Fprintf(stdout, "Session issued %s\n", humanize.Time(cred.IssuedAt))
				return nil
			}, app.WithQRRenderer(qrRenderer(stdout)))
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the stored session and log in again")
	return cmd
}
