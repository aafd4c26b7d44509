package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/api"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Stream calendar lessons into the catalog",
	}
	cmd.AddCommand(newImportStartCommand(ctx))
	cmd.AddCommand(newImportCancelCommand(ctx))
	cmd.AddCommand(newImportJobsCommand(ctx))
	return cmd
}

func newImportStartCommand(ctx *commandContext) *cobra.Command {
	var req api.ImportRequest

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an import and follow its progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				asJSON := ctx.jsonOutput()
				jobID, last, err := client.Import(cmd.Context(), req, func(ev api.ImportEvent) {
					if asJSON {
						_ = writeJSON(cmd, ev)
						return
					}
					if line := describeImportEvent(ev, colorize); line != "" {
						fmt.Fprintln(out, line)
					}
				})
				if err != nil {
					return err
				}
				if last == nil {
					return fmt.Errorf("import %s: stream closed before any event", jobID)
				}
				switch last.Type {
				case "complete":
					return nil
				case "cancelled":
					return fmt.Errorf("import %s cancelled", jobID)
				case "error":
					return fmt.Errorf("import %s failed: %s", jobID, last.Message)
				default:
					return fmt.Errorf("import %s: stream ended after %q", jobID, last.Type)
				}
			})
		},
	}
	cmd.Flags().StringVar(&req.Owner, "owner", "", "Owner label recorded on the job")
	cmd.Flags().StringVar(&req.OwnerEmail, "owner-email", "", "Calendar address of the teacher; attendees other than this are students")
	cmd.Flags().StringVar(&req.From, "from", "", "Range start (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&req.To, "to", "", "Range end, exclusive (YYYY-MM-DD or RFC3339)")
	_ = cmd.MarkFlagRequired("owner-email")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func describeImportEvent(ev api.ImportEvent, colorize bool) string {
	switch ev.Type {
	case "init":
		return fmt.Sprintf("Job %s started: %d chunks", ev.JobID, ev.Progress.ChunksTotal)
	case "chunk_start":
		if ev.Chunk == nil {
			return ""
		}
		return fmt.Sprintf("Chunk %d/%d: %s to %s", ev.Chunk.Index+1, ev.Progress.ChunksTotal, ev.Chunk.Start, ev.Chunk.End)
	case "event_imported":
		line := fmt.Sprintf("  + %s", ev.Title)
		if ev.StudentEmail != "" {
			line += " (" + ev.StudentEmail
			if ev.ShadowCreated {
				line += ", new shadow student"
			}
			line += ")"
		}
		return colorText(line, statusOK, colorize)
	case "event_skipped":
		line := fmt.Sprintf("  = %s: %s", ev.Title, ev.Reason)
		if ev.ConflictID != "" {
			line += " [conflict " + shortID(ev.ConflictID) + "]"
		}
		return colorText(line, statusWarn, colorize)
	case "event_error":
		return colorText(fmt.Sprintf("  ! %s: %s", ev.ItemID, ev.Message), statusError, colorize)
	case "complete":
		return colorText(fmt.Sprintf("Import complete: %s", progressSummary(ev.Progress)), statusOK, colorize)
	case "cancelled":
		return colorText(fmt.Sprintf("Import cancelled: %s", progressSummary(ev.Progress)), statusWarn, colorize)
	case "error":
		return colorText(fmt.Sprintf("Import failed: %s", ev.Message), statusError, colorize)
	default:
		return ""
	}
}

func progressSummary(p api.Progress) string {
	return fmt.Sprintf("%d imported, %d skipped, %d errors", p.Imported, p.Skipped, p.Errors)
}

func newImportCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *apiClient) error {
				err := client.CancelImport(cmd.Context(), id)
				cancelled := err == nil
				if err != nil && !errors.Is(err, errJobNotRunning) {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.CancelResponse{Cancelled: cancelled})
				}
				if cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s is not running\n", id)
				}
				return nil
			})
		},
	}
}

func newImportJobsCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List running and recent import jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				jobs, err := client.Jobs(cmd.Context(), owner, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs.Active) == 0 && len(jobs.History) == 0 {
					fmt.Fprintln(out, "No import jobs")
					return nil
				}
				all := append(append([]api.Job{}, jobs.Active...), jobs.History...)
				writeJobsTable(out, all)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only show jobs for this owner")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of finished jobs to list")
	return cmd
}

func writeJobsTable(out io.Writer, jobs []api.Job) {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ID,
			job.Owner,
			job.State,
			fmt.Sprintf("%s to %s", job.From, job.To),
			fmt.Sprintf("%d/%d", job.Progress.ChunksDone, job.Progress.ChunksTotal),
			fmt.Sprintf("%d", job.Progress.Imported),
			fmt.Sprintf("%d", job.Progress.Skipped),
			fmt.Sprintf("%d", job.Progress.Errors),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Owner", "State", "Range", "Chunks", "Imported", "Skipped", "Errors"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
}
