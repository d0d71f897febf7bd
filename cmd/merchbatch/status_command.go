package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"merchbatch/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and run status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonLines(status, colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, processorLine(status.Job.Processor, colorize))
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Run", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range runLines(status.Job, time.Now(), colorize) {
				fmt.Fprintln(stdout, line)
			}

			if len(status.Job.Errors) == 0 {
				return nil
			}
			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Errors", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable([]string{"Product", "Title", "Error"}, errorRows(status.Job.Errors), []columnAlignment{alignRight, alignLeft, alignLeft})
			fmt.Fprintln(stdout, table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}
