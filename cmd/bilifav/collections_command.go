package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bilifav/internal/app"
)

func newCollectionsCommand(ctx *commandContext) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List favorite collections in the local library",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd)
			defer stop()

			stdout := cmd.OutOrStdout()
			err := ctx.withApp(func(a *app.App) error {
				if remote {
					return printRemoteCollections(runCtx, stdout, a)
				}

				overviews, lastSync, err := a.Collections(runCtx)
				if err != nil {
					return err
				}
				if len(overviews) == 0 {
					fmt.Fprintln(stdout, `Library is empty; run "bilifav sync" first`)
					return nil
				}
				rows := make([][]string, 0, len(overviews))
				for _, overview := range overviews {
					synced := "never"
					if overview.LastSyncedAt != nil {
						synced = humanize.Time(*overview.LastSyncedAt)
					}
					rows = append(rows, []string{
						strconv.FormatInt(overview.ID, 10),
						overview.Title,
						strconv.FormatInt(overview.Stored, 10),
						strconv.FormatInt(overview.MediaCount, 10),
						synced,
					})
				}
				fmt.Fprintln(stdout, renderTable([]string{"ID", "Title", "Stored", "Declared", "Synced"}, rows, 0, 2, 3))
				if lastSync != nil {
					fmt.Fprintf(stdout, "Last sync %s\n", humanize.Time(*lastSync))
				}
				return nil
			}, app.WithQRRenderer(qrRenderer(stdout)))
			return loginHint(err)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "List the account's collections from the service instead")
	return cmd
}

func printRemoteCollections(ctx context.Context, out io.Writer, a *app.App) error {
	summaries, err := a.RemoteCollections(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "The account has no favorite collections")
		return nil
	}
	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{
			strconv.FormatInt(summary.ID, 10),
			summary.Title,
			strconv.Itoa(summary.MediaCount),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Items"}, rows, 0, 2))
	return nil
}
