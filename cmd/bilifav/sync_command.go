package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bilifav/internal/app"
	"bilifav/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [collection-id]",
		Short: "Sync favorite collections into the local library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var collectionID int64
			if len(args) == 1 {
				id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid collection id %q", args[0])
				}
				collectionID = id
			}

			runCtx, stop := signalContext(cmd)
			defer stop()

			stdout := cmd.OutOrStdout()
			err := ctx.withApp(func(a *app.App) error {
				results, err := a.Sync(runCtx, collectionID)
				if len(results) > 0 {
					printSyncResults(stdout, results)
				}
				return err
			}, app.WithQRRenderer(qrRenderer(stdout)))
			return loginHint(err)
		},
	}
}

func printSyncResults(out io.Writer, results []*syncer.Result) {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		outcome := res.Classification.String()
		if res.Err != nil {
			outcome = "failed"
		}
		rows = append(rows, []string{
			strconv.FormatInt(res.Collection.ID, 10),
			res.Collection.Title,
			strconv.Itoa(res.Retrieved),
			strconv.FormatInt(res.Inserted, 10),
			strconv.FormatInt(res.Known, 10),
			outcome,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Retrieved", "New", "Known", "Result"}, rows, 0, 2, 3, 4))
	for _, res := range results {
		if len(res.FailedPages) > 0 {
			fmt.Fprintf(out, "warning: collection %d: %d page(s) failed to fetch\n",
				res.Collection.ID, len(res.FailedPages))
		}
	}
}
