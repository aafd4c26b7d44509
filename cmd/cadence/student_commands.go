package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cadence/internal/api"
)

func newStudentsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Manage student identities",
	}
	cmd.AddCommand(newStudentsClaimCommand(ctx))
	return cmd
}

func newStudentsClaimCommand(ctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "claim <email>",
		Short: "Convert a shadow student created by an import into a real account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				student, err := client.ClaimStudent(cmd.Context(), api.ClaimRequest{
					Email:       strings.TrimSpace(args[0]),
					DisplayName: strings.TrimSpace(name),
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, student)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Claimed %s as student %d (%s)\n", student.Email, student.ID, student.DisplayName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the claimed account")
	return cmd
}
