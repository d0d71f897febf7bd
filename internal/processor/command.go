package processor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"merchbatch/internal/config"
	"merchbatch/internal/deps"
	"merchbatch/internal/items"
	"merchbatch/internal/logging"
	"merchbatch/internal/services"
)

const (
	commandName      = "automation"
	stderrTailLimit  = 4096
	maxResponseBytes = 1 << 20

	unsolicitedResponseWait = 100 * time.Millisecond
)

// Command drives an external automation process that reads one JSON request
// per line on stdin and answers with one JSON response per line on stdout.
type Command struct {
	Path          string
	Args          []string
	ItemTimeout   time.Duration
	ShutdownGrace time.Duration
	Logger        *slog.Logger
}

// NewCommand builds a Command from the [processor] configuration section.
func NewCommand(cfg *config.Config, logger *slog.Logger) *Command {
	return &Command{
		Path:          cfg.Processor.Command,
		Args:          append([]string(nil), cfg.Processor.Args...),
		ItemTimeout:   cfg.ItemTimeout(),
		ShutdownGrace: cfg.ShutdownGrace(),
		Logger:        logging.NewComponentLogger(logger, "processor"),
	}
}

type request struct {
	Index      int               `json:"index"`
	Title      string            `json:"title"`
	ImagePath  string            `json:"image_path"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type response struct {
	Index int    `json:"index,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HealthCheck verifies the automation binary can be resolved.
func (c *Command) HealthCheck(context.Context) Health {
	status := deps.Check(deps.Requirement{Name: commandName, Command: c.Path})
	if !status.Available {
		return Unhealthy(commandName, status.Detail)
	}
	return Healthy(commandName)
}

// Open starts the automation process.
func (c *Command) Open(ctx context.Context) (Session, error) {
	path := strings.TrimSpace(c.Path)
	if path == "" {
		return nil, resourceError("open", "processor.command is not configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, resourceError("open", "context done before start", err)
	}

	cmd := exec.Command(path, c.Args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, resourceError("open", "stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, resourceError("open", "stdout pipe", err)
	}
	stderr := &tailBuffer{limit: stderrTailLimit}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, resourceError("open", fmt.Sprintf("start %s", path), err)
	}

	logger := c.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Debug("automation process started",
		logging.String(logging.FieldEventType, "processor_started"),
		logging.Int("pid", cmd.Process.Pid),
		logging.String("command", path),
	)

	session := &commandSession{
		cmd:       cmd,
		stdin:     stdin,
		encoder:   json.NewEncoder(stdin),
		responses: make(chan response),
		readDone:  make(chan struct{}),
		stderr:    stderr,
		timeout:   c.ItemTimeout,
		grace:     c.ShutdownGrace,
		logger:    logger,
	}
	go session.readLoop(stdout)
	return session, nil
}

type commandSession struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	encoder   *json.Encoder
	responses chan response
	readDone  chan struct{}
	readErr   error
	stderr    *tailBuffer
	timeout   time.Duration
	grace     time.Duration
	logger    *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *commandSession) readLoop(stdout io.Reader) {
	defer close(s.readDone)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResponseBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			s.logger.Debug("ignoring non-json processor output", logging.String("line", string(line)))
			continue
		}
		select {
		case s.responses <- resp:
		case <-time.After(unsolicitedResponseWait):
			s.logger.Debug("dropping unsolicited processor response", logging.Int("index", resp.Index))
		}
	}
	s.readErr = scanner.Err()
}

// Process sends item to the automation process and waits for its answer.
func (s *commandSession) Process(ctx context.Context, item items.Item) error {
	path := item.ResolvedPath
	if path == "" {
		path = item.ResourcePath
	}
	req := request{Index: item.Index, Title: item.Label(), ImagePath: path, Attributes: item.Attributes}
	if err := s.encoder.Encode(req); err != nil {
		return itemError(item, "send request", err)
	}

	var timeout <-chan time.Time
	if s.timeout > 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case resp := <-s.responses:
			if resp.Index != 0 && resp.Index != item.Index {
				s.logger.Debug("discarding late processor response",
					logging.Int("index", resp.Index),
					logging.ItemIndex(item.Index),
				)
				continue
			}
			if resp.OK {
				return nil
			}
			message := strings.TrimSpace(resp.Error)
			if message == "" {
				message = "processor reported failure"
			}
			return itemError(item, message, nil)
		case <-s.readDone:
			detail := "automation process exited"
			if tail := s.stderr.String(); tail != "" {
				detail += ": " + tail
			}
			return itemError(item, detail, s.readErr)
		case <-timeout:
			return itemError(item, fmt.Sprintf("timed out after %s", s.timeout), context.DeadlineExceeded)
		case <-ctx.Done():
			return itemError(item, "cancelled", ctx.Err())
		}
	}
}

// Close ends the automation process, killing it after the grace period.
func (s *commandSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		waitCh := make(chan error, 1)
		go func() { waitCh <- s.cmd.Wait() }()

		var grace <-chan time.Time
		if s.grace > 0 {
			timer := time.NewTimer(s.grace)
			defer timer.Stop()
			grace = timer.C
		}

		select {
		case err := <-waitCh:
			if err != nil {
				s.closeErr = resourceError("close", s.exitDetail("automation process exited with error"), err)
			}
		case <-grace:
			_ = s.cmd.Process.Kill()
			<-waitCh
			s.closeErr = resourceError("close", fmt.Sprintf("automation process did not exit within %s", s.grace), nil)
		}
		s.logger.Debug("automation process stopped",
			logging.String(logging.FieldEventType, "processor_stopped"),
			logging.Bool("clean", s.closeErr == nil),
		)
	})
	return s.closeErr
}

func (s *commandSession) exitDetail(prefix string) string {
	if tail := s.stderr.String(); tail != "" {
		return prefix + ": " + tail
	}
	return prefix
}

func resourceError(operation, message string, err error) error {
	return services.Wrap(services.ErrResource, "processor", operation, message, err)
}

func itemError(item items.Item, message string, err error) error {
	if errors.Is(err, context.Canceled) {
		message = "cancelled"
	}
	return services.Wrap(services.ErrItem, "processor", fmt.Sprintf("item %d", item.Index), message, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
