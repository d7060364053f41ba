package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bilifav/internal/app"
	"bilifav/internal/download"
	"bilifav/internal/media"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var collectionID int64
	var quality string
	var outputDir string
	var overwrite bool
	var pagesSpec string

	cmd := &cobra.Command{
		Use:   "download [bvid ...]",
		Short: "Download a synced collection or individual videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, err := download.ParsePages(pagesSpec)
			if err != nil {
				return err
			}

			runCtx, stop := signalContext(cmd)
			defer stop()

			stdout := cmd.OutOrStdout()
			renderer := newProgressRenderer(stdout)
			req := app.DownloadRequest{
				CollectionID: collectionID,
				BVIDs:        args,
				Quality:      quality,
				OutputDir:    outputDir,
				Overwrite:    overwrite,
				Pages:        pages,
				Progress:     renderer.observe,
			}

			err = ctx.withApp(func(a *app.App) error {
				renderer.start()
				report, err := a.Download(runCtx, req)
				renderer.stop()
				if report != nil {
					printDownloadReport(stdout, report)
				}
				return err
			}, app.WithQRRenderer(qrRenderer(stdout)))
			return loginHint(err)
		},
	}

	cmd.Flags().Int64Var(&collectionID, "collection", 0, "Library collection id to download")
	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Quality tier: "+strings.Join(media.TierNames(), ", "))
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default: configured download dir)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace files that already exist on disk")
	cmd.Flags().StringVar(&pagesSpec, "pages", "", "Part selection for multi-part videos, e.g. 1,3-5")
	return cmd
}

func printDownloadReport(out io.Writer, report *app.DownloadReport) {
	membership := "standard account"
	if report.Privileged {
		membership = "membership active"
	}
	fmt.Fprintf(out, "Quality: %s (%s)\n", report.Tier.Clamp(report.Privileged), membership)
	if report.AlreadyPresent > 0 {
		fmt.Fprintf(out, "%d item(s) already on disk, skipped\n", report.AlreadyPresent)
	}
	if report.Planned() == 0 {
		fmt.Fprintln(out, "Nothing to download")
		return
	}
	if !report.FFmpeg.Available {
		fmt.Fprintf(out, "warning: %s; separated streams are kept video-only\n", report.FFmpeg.Detail)
	}

	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		rows = append(rows, []string{item.BVID, item.Title, partSummary(item)})
	}
	fmt.Fprintln(out, renderTable([]string{"BVID", "Title", "Result"}, rows))

	succeeded, skipped, failed := report.Counts()
	fmt.Fprintf(out, "Parts: %d fetched, %d skipped, %d failed\n", succeeded, skipped, failed)
	if report.Merge.Merged > 0 || report.Merge.Fallback > 0 {
		fmt.Fprintf(out, "Merged: %d", report.Merge.Merged)
		if report.Merge.Fallback > 0 {
			fmt.Fprintf(out, " (%d kept video-only)", report.Merge.Fallback)
		}
		fmt.Fprintln(out)
	}
	if report.MergeAbandoned > 0 {
		fmt.Fprintf(out, "%d merge(s) abandoned; temporary streams were left in place\n", report.MergeAbandoned)
	}
}

// partSummary compresses per-part outcomes into one table cell.
func partSummary(item download.ItemResult) string {
	if len(item.Pages) == 1 {
		page := item.Pages[0]
		if page.Outcome == download.OutcomeFailed && page.Err != nil {
			return "failed: " + page.Err.Error()
		}
		return page.Outcome.String()
	}
	parts := make([]string, 0, 3)
	if n := item.Succeeded(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d ok", n))
	}
	if n := item.Skipped(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", n))
	}
	if n := item.Failed(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if len(parts) == 0 {
		return "no parts"
	}
	return strings.Join(parts, ", ")
}
