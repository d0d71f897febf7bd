package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"merchbatch/internal/ipc"
)

func newRunCommands(ctx *commandContext) []*cobra.Command {
	var file string
	var delay float64
	var mode string

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a run over the staged item list",
		Long: "Start a run over the staged item list. With --file the list is parsed\n" +
			"and staged first; otherwise the list staged by a previous upload is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return ctx.withClient(func(client *ipc.Client) error {
				if strings.TrimSpace(file) != "" {
					path, err := filepath.Abs(file)
					if err != nil {
						return fmt.Errorf("resolve item list path: %w", err)
					}
					staged, err := client.Stage(path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Staged %s from %s\n", pluralize(staged.Count, "item"), staged.Source)
				}

				req := ipc.StartRequest{Mode: mode}
				if cmd.Flags().Changed("delay") {
					req.DelaySeconds = &delay
				}
				resp, err := client.Start(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s (run %s)\n", resp.Message, shortRunID(resp.RunID))
				return nil
			})
		},
	}
	startCmd.Flags().StringVarP(&file, "file", "f", "", "Item list to stage before starting (csv, yaml, json)")
	startCmd.Flags().Float64Var(&delay, "delay", 0, "Seconds to wait between items (default from config)")
	startCmd.Flags().StringVar(&mode, "mode", "", "Run mode: live or stub (default from config)")

	pauseCmd := newControlCommand(ctx, "pause", "Pause the active run before its next item", (*ipc.Client).Pause)
	resumeCmd := newControlCommand(ctx, "resume", "Resume a paused run", (*ipc.Client).Resume)
	stopCmd := newControlCommand(ctx, "stop", "Stop the active run before its next item", (*ipc.Client).Stop)

	return []*cobra.Command{startCmd, pauseCmd, resumeCmd, stopCmd}
}

func newControlCommand(ctx *commandContext, use, short string, fn func(*ipc.Client) (*ipc.ControlResponse, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := fn(client)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newMapImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "map-image ORIGINAL UPLOADED",
		Short: "Use UPLOADED in place of the item list's ORIGINAL image path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploaded, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve uploaded path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubmitImageMapping(args[0], uploaded)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mapped %s -> %s\n", resp.OriginalPath, resp.UploadedPath)
				return nil
			})
		},
	}
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test ntfy notification through the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
