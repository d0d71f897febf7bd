package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

// AcceptingProcessor answers every request with success.
const AcceptingProcessor = "#!/bin/sh\nwhile IFS= read -r line; do echo '{\"ok\":true}'; done\n"

// WriteCSV writes an item list with the given header and rows and returns its path.
func WriteCSV(t testing.TB, dir, name string, header []string, rows ...[]string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	return path
}

// WriteProducts writes a title,image_path CSV with one row per title.
func WriteProducts(t testing.TB, dir string, titles ...string) string {
	t.Helper()

	rows := make([][]string, 0, len(titles))
	for _, title := range titles {
		rows = append(rows, []string{title, "designs/" + title + ".png"})
	}
	return WriteCSV(t, dir, "products.csv", []string{"title", "image_path"}, rows...)
}
