package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"merchbatch/internal/api"
	"merchbatch/internal/daemon"
	"merchbatch/internal/logging"
	"merchbatch/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Stage(req StageRequest, resp *StageResponse) error {
	staged, err := s.daemon.StageFile(req.Path)
	if err != nil {
		return err
	}
	resp.Source = staged.Source
	resp.Count = staged.Count
	resp.ImagePaths = staged.ImagePaths
	return nil
}

func (s *service) Start(req StartRequest, resp *StartResponse) error {
	runReq := daemon.RunRequest{Mode: req.Mode}
	if req.DelaySeconds != nil {
		delay := time.Duration(*req.DelaySeconds * float64(time.Second))
		runReq.Delay = &delay
	}
	runID, err := s.daemon.StartRun(s.ctx, runReq)
	if err != nil {
		return err
	}
	resp.RunID = runID
	resp.Message = "Upload started"
	s.log().Info("run started via IPC",
		logging.String(logging.FieldEventType, "ipc_run_start"),
		logging.RunID(runID))
	return nil
}

func (s *service) Pause(_ ControlRequest, resp *ControlResponse) error {
	return s.control("pause", s.daemon.PauseRun, "Upload paused", resp)
}

func (s *service) Resume(_ ControlRequest, resp *ControlResponse) error {
	return s.control("resume", s.daemon.ResumeRun, "Upload resumed", resp)
}

func (s *service) Stop(_ ControlRequest, resp *ControlResponse) error {
	return s.control("stop", s.daemon.StopRun, "Upload stopped", resp)
}

func (s *service) control(action string, fn func() error, message string, resp *ControlResponse) error {
	if err := fn(); err != nil {
		s.log().Debug("control request rejected", logging.String("action", action), logging.Error(err))
		return err
	}
	resp.Message = message
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.LogPath = status.LogPath
	resp.Job = api.FromSnapshot(status.Job)
	resp.Job.ImageMappings = status.ImageMappings
	resp.Job.Processor = api.FromHealth(status.Processor)
	resp.StagedItems = status.StagedItems
	resp.StagedSource = status.StagedSource
	if len(status.Dependencies) > 0 {
		resp.Dependencies = make([]DependencyStatus, 0, len(status.Dependencies))
		for _, dep := range status.Dependencies {
			resp.Dependencies = append(resp.Dependencies, DependencyStatus{
				Name:        dep.Name,
				Command:     dep.Command,
				Description: dep.Description,
				Optional:    dep.Optional,
				Available:   dep.Available,
				Detail:      dep.Detail,
			})
		}
	}
	return nil
}

func (s *service) SubmitImageMapping(req ImageMappingRequest, resp *ImageMappingResponse) error {
	if err := s.daemon.SubmitImageMapping(req.OriginalPath, req.UploadedPath); err != nil {
		return err
	}
	resp.Success = true
	resp.OriginalPath = req.OriginalPath
	resp.UploadedPath = req.UploadedPath
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

const maxLogTailWait = 5 * time.Second

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	path := s.daemon.LogPath()
	if path == "" {
		return errors.New("daemon log path not configured")
	}
	wait := min(time.Duration(max(req.WaitMillis, 0))*time.Millisecond, maxLogTailWait)
	result, err := logs.Tail(s.ctx, path, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
