package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newConflictsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and resolve lesson sync conflicts",
	}
	cmd.AddCommand(newConflictsListCommand(ctx))
	cmd.AddCommand(newConflictsResolveCommand(ctx))
	return cmd
}

func newConflictsListCommand(ctx *commandContext) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outstanding conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				list, err := client.Conflicts(cmd.Context(), owner)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No outstanding conflicts")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, c := range list {
					rows = append(rows, []string{
						c.ID,
						c.EntityKind + " " + strconv.FormatInt(c.EntityID, 10),
						strings.Join(c.Fields, ", "),
						truncate(c.Local.Title, 30),
						truncate(c.Remote.Title, 30),
						c.DetectedAt,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Entity", "Fields", "Local", "Remote", "Detected"},
					rows, nil,
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only show conflicts for this owner")
	return cmd
}

func newConflictsResolveCommand(ctx *commandContext) *cobra.Command {
	var use string
	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Resolve a conflict by keeping the local or remote side",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolution, err := resolutionFromFlag(use)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiClient) error {
				resolved, err := client.Resolve(cmd.Context(), strings.TrimSpace(args[0]), resolution)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resolved)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conflict %s resolved (%s)\n", resolved.ID, resolved.Resolution)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&use, "use", "", "Winning side: local or remote")
	_ = cmd.MarkFlagRequired("use")
	return cmd
}

func resolutionFromFlag(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "local", "use_local":
		return "use_local", nil
	case "remote", "use_remote":
		return "use_remote", nil
	default:
		return "", fmt.Errorf("invalid --use %q: expected local or remote", value)
	}
}
