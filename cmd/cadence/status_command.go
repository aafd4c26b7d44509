package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				for _, line := range statusLines(status, shouldColorize(out)) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func statusLines(status *api.Status, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("Cadence", statusOK, "Running", colorize))
	} else {
		lines = append(lines, renderStatusLine("Cadence", statusError, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	if status.LockPath != "" {
		lines = append(lines, renderStatusLine("Lock", statusInfo, status.LockPath, colorize))
	}
	lines = append(lines, renderStatusLine("Thresholds", statusInfo,
		fmt.Sprintf("auto-link %d, review floor %d", status.AutoLinkThreshold, status.ReviewFloor), colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Sources", colorize)...)
	for _, source := range status.Sources {
		if source.Available {
			lines = append(lines, renderStatusLine(source.Name, statusOK, "Available", colorize))
		} else {
			lines = append(lines, renderStatusLine(source.Name, statusWarn, "not configured", colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Work", colorize)...)
	if status.OutstandingConflicts > 0 {
		lines = append(lines, renderStatusLine("Conflicts", statusWarn,
			fmt.Sprintf("%d outstanding", status.OutstandingConflicts), colorize))
	} else {
		lines = append(lines, renderStatusLine("Conflicts", statusOK, "None", colorize))
	}
	if len(status.ActiveJobs) == 0 {
		lines = append(lines, renderStatusLine("Imports", statusInfo, "Idle", colorize))
	}
	for _, job := range status.ActiveJobs {
		lines = append(lines, renderStatusLine("Import "+shortID(job.ID), statusInfo, jobSummary(job), colorize))
	}
	return lines
}

func jobSummary(job api.Job) string {
	parts := []string{job.State}
	if job.Owner != "" {
		parts = append(parts, "owner "+job.Owner)
	}
	parts = append(parts, fmt.Sprintf("chunks %d/%d", job.Progress.ChunksDone, job.Progress.ChunksTotal))
	parts = append(parts, fmt.Sprintf("imported %d", job.Progress.Imported))
	if job.Progress.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("skipped %d", job.Progress.Skipped))
	}
	if job.Progress.Errors > 0 {
		parts = append(parts, fmt.Sprintf("errors %d", job.Progress.Errors))
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
