package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"merchbatch/internal/testsupport"
)

func TestConfigInitShowAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("secret-token"))
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)

	out, _, err = runCLI(t, []string{"config", "show"}, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[processor]")
	requireContains(t, out, "<redacted>")
	if strings.Contains(out, "secret-token") {
		t.Fatal("config show must not print the api token")
	}

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestItemsPreview(t *testing.T) {
	dir := t.TempDir()
	path := testsupport.WriteCSV(t, dir, "products.csv",
		[]string{"title", "image_path", "price", "color"},
		[]string{"Shirt", "designs/shirt.png", "19.99", "black"},
		[]string{"", "designs/mug.png", "9.99", "white"},
		[]string{"Hat", "designs/hat.png", "14.99", "red"},
	)

	out, _, err := runCLI(t, []string{"items", "preview", path}, "")
	if err != nil {
		t.Fatalf("items preview: %v", err)
	}
	requireContains(t, out, "Shirt")
	requireContains(t, out, "Item 2")
	requireContains(t, out, "color=black, price=19.99")
	requireContains(t, out, "3 items ready")

	out, _, err = runCLI(t, []string{"items", "preview", "--limit", "1", path}, "")
	if err != nil {
		t.Fatalf("items preview --limit: %v", err)
	}
	requireContains(t, out, "Showing 1 of 3 items")
	if strings.Contains(out, "Hat") {
		t.Fatal("expected limited preview to omit later rows")
	}

	if _, _, err := runCLI(t, []string{"items", "preview", filepath.Join(dir, "book.xlsx")}, ""); err == nil {
		t.Fatal("expected unsupported format to fail")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	want := []string{"start", "pause", "resume", "stop", "status", "watch", "logs", "map-image", "items", "config", "daemon", "test-notify"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Fatalf("expected %q command to be registered: %v", name, err)
		}
	}
	daemonCmd, _, _ := root.Find([]string{"daemon", "start"})
	if daemonCmd == nil || daemonCmd.Name() != "start" || daemonCmd.Parent().Name() != "daemon" {
		t.Fatal("expected daemon start subcommand")
	}
}
