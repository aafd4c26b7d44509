package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/api"
)

type scopeFlags struct {
	source string
	scope  string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "source", api.SourceDrive, "External source (drive or tracks)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "Drive folder id (defaults to google.drive_folder_id) or track search queries separated by semicolons")
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var flags scopeFlags
	var exclude []string
	var showAll bool

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Dry-run reconciliation of an external source against the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				report, err := client.Preview(cmd.Context(), api.PreviewRequest{
					Source:  flags.source,
					Scope:   flags.scope,
					Exclude: exclude,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, reportSummary(*report))
				results := report.Results
				if !showAll {
					results = reviewableResults(results)
				}
				if len(results) == 0 {
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"External ID", "Label", "Outcome", "Best", "Score", "Runner-up"},
					resultRows(results, colorize),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "External ids to leave out of the preview")
	cmd.Flags().BoolVar(&showAll, "all", false, "List duplicates and skipped items too")
	return cmd
}

func newCommitCommand(ctx *commandContext) *cobra.Command {
	var flags scopeFlags
	var action string
	var overrides []string
	var ids []string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Apply a reconciliation action to an external source",
		Long: "Apply one of the reconciliation actions:\n" +
			"  sync                 link auto-linkable items, create songs for unmatched ones\n" +
			"  accept-selected      link the items given with --override id=songID\n" +
			"  accept-high-scores   link every item at or above the auto-link threshold\n" +
			"  skip                 write nothing",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseOverrides(overrides)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiClient) error {
				report, err := client.Commit(cmd.Context(), api.CommitRequest{
					Source: flags.source,
					Scope:  flags.scope,
					Action: api.ActionSpec{Type: action, Overrides: parsed, IDs: ids},
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, reportSummary(report.Report))
				fmt.Fprintf(out, "Action %s: %d links inserted, %d songs created\n", report.Action, report.Inserted, report.Created)
				if len(report.Errors) > 0 {
					rows := make([][]string, 0, len(report.Errors))
					for _, itemErr := range report.Errors {
						rows = append(rows, []string{itemErr.ExternalID, itemErr.Message})
					}
					fmt.Fprintln(out, renderTable([]string{"External ID", "Error"}, rows, nil))
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&action, "action", "sync", "Action: sync, accept-selected, accept-high-scores, skip")
	cmd.Flags().StringArrayVar(&overrides, "override", nil, "Explicit link as externalID=songID (repeatable)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "External ids for the skip action")
	return cmd
}

func parseOverrides(values []string) (map[string]int64, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(values))
	for _, value := range values {
		key, raw, ok := strings.Cut(value, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q: expected externalID=songID", value)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid override %q: song id must be a positive integer", value)
		}
		out[key] = id
	}
	return out, nil
}

func reportSummary(report api.Report) string {
	return fmt.Sprintf("%d items: %d matched, %d to review, %d unmatched, %d duplicates, %d skipped",
		report.Total, report.Matched, report.ReviewQueue, report.Unmatched, report.Duplicates, report.Skipped)
}

func reviewableResults(results []api.MatchResult) []api.MatchResult {
	out := make([]api.MatchResult, 0, len(results))
	for _, result := range results {
		if result.Outcome == "duplicate" || result.Outcome == "skipped" {
			continue
		}
		out = append(out, result)
	}
	return out
}

func resultRows(results []api.MatchResult, colorize bool) [][]string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		best, score, runnerUp := "-", "-", "-"
		if result.Best != nil {
			best = describeMatch(*result.Best)
			score = strconv.Itoa(result.Best.Score)
		}
		if result.RunnerUp != nil {
			runnerUp = fmt.Sprintf("%s (%d)", describeMatch(*result.RunnerUp), result.RunnerUp.Score)
		}
		outcome := colorText(result.Outcome, outcomeKind(result.Outcome), colorize)
		if result.Reason != "" {
			outcome += " (" + result.Reason + ")"
		}
		rows = append(rows, []string{
			result.ExternalID,
			truncate(result.RawLabel, 40),
			outcome,
			best,
			score,
			runnerUp,
		})
	}
	return rows
}

func describeMatch(match api.ScoredMatch) string {
	label := fmt.Sprintf("#%d %s", match.ID, match.Title)
	if match.Artist != "" {
		label += " / " + match.Artist
	}
	return truncate(label, 40)
}
