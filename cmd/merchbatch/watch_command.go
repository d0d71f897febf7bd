package main

import (
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"merchbatch/internal/ipc"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var exitWhenDone bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard for the active run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stdinIsTTY() {
				return errors.New("watch requires an interactive terminal (TTY); use `merchbatch status` instead")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				model := newWatchModel(client, interval, exitWhenDone)
				program := tea.NewProgram(model,
					tea.WithContext(cmd.Context()),
					tea.WithInput(cmd.InOrStdin()),
					tea.WithOutput(cmd.OutOrStdout()),
				)
				_, err := program.Run()
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Status refresh interval")
	cmd.Flags().BoolVar(&exitWhenDone, "exit", false, "Exit once the run finishes")
	return cmd
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
