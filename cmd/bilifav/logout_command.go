package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bilifav/internal/app"
)

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withApp(func(a *app.App) error {
				had, err := a.Logout()
				if err != nil {
					return err
				}
				if had {
					fmt.Fprintln(stdout, "Credential removed")
				} else {
					fmt.Fprintln(stdout, "No stored credential")
				}
				return nil
			})
		},
	}
}
