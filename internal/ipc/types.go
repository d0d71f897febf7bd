package ipc

import "merchbatch/internal/api"

// StageRequest parses an item list on the daemon host and stages it.
type StageRequest struct {
	Path string `json:"path"`
}

// StageResponse summarizes the staged item list.
type StageResponse struct {
	Source     string   `json:"source"`
	Count      int      `json:"count"`
	ImagePaths []string `json:"image_paths"`
}

// StartRequest launches a run over the staged list. Nil or blank fields fall
// back to the daemon configuration.
type StartRequest struct {
	DelaySeconds *float64 `json:"delay_seconds,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// StartResponse reports the accepted run.
type StartResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// ControlRequest carries no arguments; the method selects pause, resume or stop.
type ControlRequest struct{}

// ControlResponse acknowledges a control request.
type ControlResponse struct {
	Message string `json:"message"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse combines daemon and run status.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockPath     string             `json:"lock_path"`
	LogPath      string             `json:"log_path"`
	Job          api.StatusResponse `json:"job"`
	StagedItems  int                `json:"staged_items"`
	StagedSource string             `json:"staged_source"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ImageMappingRequest maps an original resource path to a replacement file.
type ImageMappingRequest = api.ImageMappingRequest

// ImageMappingResponse acknowledges a recorded mapping.
type ImageMappingResponse = api.ImageMappingResponse

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// LogTailRequest asks for daemon log lines. A negative Offset returns the
// last Limit lines.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
