package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"merchbatch/internal/config"
	"merchbatch/internal/daemonrun"
)

func execute(t *testing.T, run runFunc, args ...string) error {
	t.Helper()
	cmd := newRootCommand(run)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCommandPassesOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[paths]\nstate_dir = \"" + filepath.Join(filepath.Dir(path), "state") + "\"\n[job]\ndefault_mode = \"stub\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var gotCfg *config.Config
	var gotOpts daemonrun.Options
	err := execute(t, func(_ context.Context, cfg *config.Config, opts daemonrun.Options) error {
		gotCfg = cfg
		gotOpts = opts
		return nil
	}, "--config", path, "--log-level", "debug", "--dev")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotCfg == nil || gotCfg.Job.DefaultMode != "stub" {
		t.Fatalf("expected loaded config, got %+v", gotCfg)
	}
	if gotOpts.LogLevel != "debug" || !gotOpts.Development {
		t.Fatalf("unexpected options: %+v", gotOpts)
	}
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[job]\ndefault_mode = \"turbo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	called := false
	err := execute(t, func(context.Context, *config.Config, daemonrun.Options) error {
		called = true
		return nil
	}, "--config", path)
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
	if called {
		t.Fatal("daemon should not run with an invalid config")
	}
}

func TestRootCommandRejectsArguments(t *testing.T) {
	err := execute(t, func(context.Context, *config.Config, daemonrun.Options) error { return nil }, "extra")
	if err == nil {
		t.Fatal("expected positional arguments to be rejected")
	}
}
