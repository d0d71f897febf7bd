package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"merchbatch/internal/items"
	"merchbatch/internal/services"
)

var allowedImageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

// uploadKind selects the destination directory and extension rules.
type uploadKind int

const (
	uploadSpreadsheet uploadKind = iota
	uploadImage
)

func (k uploadKind) allowed(filename string) bool {
	switch k {
	case uploadSpreadsheet:
		return items.IsSupported(filename)
	case uploadImage:
		_, ok := allowedImageExtensions[strings.ToLower(filepath.Ext(filename))]
		return ok
	}
	return false
}

func (k uploadKind) allowedList() string {
	if k == uploadSpreadsheet {
		return strings.Join(items.SupportedExtensions, ", ")
	}
	return ".png, .jpg, .jpeg, .gif"
}

func (d *Daemon) uploadDir(kind uploadKind) string {
	if kind == uploadImage {
		return d.cfg.ImagesDir()
	}
	return d.cfg.SpreadsheetDir()
}

// saveUpload stores an uploaded file under the configured upload directory and
// returns its absolute path.
func (d *Daemon) saveUpload(kind uploadKind, filename string, src io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return "", services.Wrap(services.ErrInput, "daemon", "upload", "no file selected", nil)
	}
	if !kind.allowed(name) {
		return "", services.Wrap(services.ErrInput, "daemon", "upload",
			fmt.Sprintf("file type not allowed; upload one of: %s", kind.allowedList()), nil)
	}

	dir := d.uploadDir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrInternal, "daemon", "upload", "create upload directory", err)
	}
	target := filepath.Join(dir, uuid.NewString()[:8]+"_"+name)
	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrInternal, "daemon", "upload", "create upload file", err)
	}
	if _, err := io.Copy(file, src); err != nil {
		file.Close()
		_ = os.Remove(target)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", services.Wrap(services.ErrInput, "daemon", "upload", "file exceeds the upload size limit", err)
		}
		return "", services.Wrap(services.ErrInternal, "daemon", "upload", "write upload file", err)
	}
	if err := file.Close(); err != nil {
		return "", services.Wrap(services.ErrInternal, "daemon", "upload", "close upload file", err)
	}
	return target, nil
}

// sanitizeFilename keeps the base name and replaces anything outside a
// conservative character set.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, name)
	return strings.TrimLeft(cleaned, "._")
}
