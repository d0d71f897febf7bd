package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"merchbatch/internal/api"
	"merchbatch/internal/config"
	"merchbatch/internal/job"
	"merchbatch/internal/logging"
	"merchbatch/internal/services"
)

const requestIDHeader = "X-Request-ID"

type apiServer struct {
	bind      string
	token     string
	maxUpload int64
	logger    *slog.Logger
	daemon    *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:      bind,
		token:     cfg.Paths.APIToken,
		maxUpload: cfg.MaxUploadBytes(),
		logger:    logger,
		daemon:    d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withRequestID(authMiddleware(s.token, h)))
	}
	handle("GET /api/status", s.handleStatus)
	handle("POST /api/items", s.handleItems)
	handle("POST /api/start", s.handleStart)
	handle("POST /api/pause", s.handleControl("pause", s.daemon.PauseRun, "Upload paused"))
	handle("POST /api/resume", s.handleControl("resume", s.daemon.ResumeRun, "Upload resumed"))
	handle("POST /api/stop", s.handleControl("stop", s.daemon.StopRun, "Upload stopped"))
	handle("POST /api/images", s.handleImages)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound address once the server is listening.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.FromSnapshot(status.Job)
	payload.ImageMappings = status.ImageMappings
	payload.Processor = api.FromHealth(status.Processor)
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	var path string
	if isMultipart(r) {
		saved, err := s.receiveUpload(w, r, "file", uploadSpreadsheet)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		path = saved
	} else {
		var req api.ItemsRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		path = req.Path
	}

	staged, err := s.daemon.StageFile(path)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemsResponse{
		Success:    true,
		Message:    "Item list processed successfully",
		Count:      staged.Count,
		ImagePaths: staged.ImagePaths,
	})
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	runReq := RunRequest{Mode: req.Mode}
	if req.DelaySeconds != nil {
		delay := time.Duration(*req.DelaySeconds * float64(time.Second))
		runReq.Delay = &delay
	}
	runID, err := s.daemon.StartRun(r.Context(), runReq)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.StartResponse{Success: true, Message: "Upload started", RunID: runID})
}

func (s *apiServer) handleControl(action string, fn func() error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.log().Debug("control request accepted", logging.String("action", action))
		s.writeJSON(w, http.StatusAccepted, api.ControlResponse{Success: true, Message: message})
	}
}

func (s *apiServer) handleImages(w http.ResponseWriter, r *http.Request) {
	var req api.ImageMappingRequest
	multipart := isMultipart(r)
	if multipart {
		if err := s.parseMultipart(w, r); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		req.OriginalPath = r.FormValue("original_path")
	} else if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if strings.TrimSpace(req.OriginalPath) == "" {
		s.writeServiceError(w, r, services.Wrap(services.ErrInput, "daemon", "images", "missing original path", nil))
		return
	}
	if multipart {
		saved, err := s.receiveUpload(w, r, "image", uploadImage)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		req.UploadedPath = saved
	}
	if strings.TrimSpace(req.UploadedPath) == "" {
		s.writeServiceError(w, r, services.Wrap(services.ErrInput, "daemon", "images", "missing uploaded path", nil))
		return
	}
	if err := s.daemon.SubmitImageMapping(req.OriginalPath, req.UploadedPath); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ImageMappingResponse{
		Success:      true,
		OriginalPath: req.OriginalPath,
		UploadedPath: req.UploadedPath,
	})
}

// parseMultipart applies the upload size limit and parses the form once so
// text fields can be checked before any file is written.
func (s *apiServer) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return services.Wrap(services.ErrInput, "daemon", "upload", "file exceeds the upload size limit", err)
		}
		return services.Wrap(services.ErrInput, "daemon", "upload", "malformed multipart body", err)
	}
	return nil
}

func (s *apiServer) receiveUpload(w http.ResponseWriter, r *http.Request, field string, kind uploadKind) (string, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "daemon", "upload", fmt.Sprintf("no %s part", field), err)
	}
	defer file.Close()
	return s.daemon.saveUpload(kind, header.Filename, file)
}

// multipartMemory is how much of a multipart body is held in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrInput, "daemon", "decode request", "invalid JSON body", err)
	}
	return nil
}

func statusForError(err error) int {
	if errors.Is(err, job.ErrInvalidOptions) {
		return http.StatusBadRequest
	}
	switch services.Kind(err) {
	case services.KindInput:
		return http.StatusBadRequest
	case services.KindValidation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	details := services.Details(err)
	logger := logging.WithContext(r.Context(), s.log())
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: details.Message, Kind: string(details.Kind)})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
