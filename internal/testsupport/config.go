package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"merchbatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Job.DefaultDelaySeconds = 0
	cfgVal.Job.PollIntervalMillis = 10
	cfgVal.Job.StubDurationSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutAPI disables the HTTP API listener.
func WithoutAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// WithMode sets the default run mode.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Job.DefaultMode = mode
	}
}

// WithProcessorScript writes body as an executable shell script and
// configures it as the automation command.
func WithProcessorScript(body string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "automation")
		if err := os.WriteFile(target, []byte(body), 0o755); err != nil {
			b.t.Fatalf("write processor script: %v", err)
		}
		b.cfg.Processor.Command = target
		b.cfg.Processor.ShutdownGraceSeconds = 5
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WithStubDuration sets how long stub-mode runs wait before completing.
func WithStubDuration(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Job.StubDurationSeconds = seconds
	}
}
