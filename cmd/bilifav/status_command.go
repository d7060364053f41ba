package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"bilifav/internal/app"
	"bilifav/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, library, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			return ctx.withApp(func(a *app.App) error {
				report, err := a.Status(cmd.Context())
				if err != nil {
					return err
				}

				printer := statusPrinter{out: stdout, colorize: ctx.colorize(stdout)}

				printer.section("Session")
				if report.LoggedIn {
					detail := fmt.Sprintf("uid %s, issued %s",
						report.Credential.DedeUserID, humanize.Time(report.Credential.IssuedAt))
					printer.line("Credential", statusOK, detail)
				} else {
					printer.line("Credential", statusWarn, `not logged in; run "bilifav login"`)
				}
				printer.blank()

				printer.section("Library")
				printer.line("Database", statusInfo, report.DatabasePath)
				printer.line("Collections", statusInfo, strconv.FormatInt(report.Collections, 10))
				printer.line("Items", statusInfo, strconv.FormatInt(report.Items, 10))
				if report.LastSync != nil {
					printer.line("Last sync", statusOK, humanize.Time(*report.LastSync))
				} else {
					printer.line("Last sync", statusWarn, "never")
				}
				printer.blank()

				printer.section("Dependencies")
				printer.line("FFmpeg", dependencyKind(report.FFmpeg), dependencyDetail(report.FFmpeg))
				printer.line("Disk space", dependencyKind(report.Space), dependencyDetail(report.Space))
				printer.blank()

				printer.section("Configuration")
				path, exists := ctx.configLocation()
				if exists {
					printer.line("Config file", statusOK, path)
				} else {
					printer.line("Config file", statusInfo, path+" (absent, defaults in use)")
				}
				printer.line("Download dir", statusInfo, ctx.configValue().Paths.DownloadDir)
				return nil
			})
		},
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyDetail(status deps.Status) string {
	if status.Available && status.Command != "" {
		if status.Detail != "" {
			return fmt.Sprintf("%s (%s)", status.Command, status.Detail)
		}
		return status.Command
	}
	if status.Detail == "" {
		return "not available"
	}
	return status.Detail
}
