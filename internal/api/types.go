package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ProductRef identifies which item an error entry belongs to. A zero Index
// with a non-empty Label marks a run-level entry.
type ProductRef struct {
	Index int
	Label string
}

// MarshalJSON encodes item references as numbers and run-level labels as strings.
func (p ProductRef) MarshalJSON() ([]byte, error) {
	if p.Label != "" {
		return json.Marshal(p.Label)
	}
	return []byte(strconv.Itoa(p.Index)), nil
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (p *ProductRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*p = ProductRef{Label: label}
		return nil
	}
	index, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("product reference: %w", err)
	}
	*p = ProductRef{Index: index}
	return nil
}

// ErrorEntry is one row of the run's error log.
type ErrorEntry struct {
	Product ProductRef `json:"product"`
	Title   string     `json:"title"`
	Error   string     `json:"error"`
}

// ProcessorHealth mirrors readiness reporting for the item processor.
type ProcessorHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse is the observable run status.
type StatusResponse struct {
	RunID          string           `json:"run_id,omitempty"`
	Mode           string           `json:"mode,omitempty"`
	Total          int              `json:"total"`
	Current        int              `json:"current"`
	Success        int              `json:"success"`
	Failed         int              `json:"failed"`
	Status         string           `json:"status"`
	Errors         []ErrorEntry     `json:"errors"`
	CurrentProduct string           `json:"current_product"`
	Progress       float64          `json:"progress"`
	StartedAt      string           `json:"started_at,omitempty"`
	FinishedAt     string           `json:"finished_at,omitempty"`
	ImageMappings  int              `json:"image_mappings"`
	Processor      *ProcessorHealth `json:"processor,omitempty"`
}

// StartRequest carries run options. Zero values fall back to configuration.
type StartRequest struct {
	DelaySeconds *float64 `json:"delay_seconds,omitempty"`
	Mode         string   `json:"mode,omitempty"`
}

// StartResponse acknowledges an accepted Start.
type StartResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// ItemsRequest stages an item list that already exists on the daemon host.
type ItemsRequest struct {
	Path string `json:"path"`
}

// ItemsResponse reports a staged item list. ImagePaths lists the resource
// paths the operator may want to upload replacements for.
type ItemsResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Count      int      `json:"count"`
	ImagePaths []string `json:"image_paths"`
}

// ImageMappingRequest maps an original resource path to an uploaded file.
type ImageMappingRequest struct {
	OriginalPath string `json:"original_path"`
	UploadedPath string `json:"uploaded_path"`
}

// ImageMappingResponse acknowledges a recorded mapping.
type ImageMappingResponse struct {
	Success      bool   `json:"success"`
	OriginalPath string `json:"original_path"`
	UploadedPath string `json:"uploaded_path"`
}

// ControlResponse acknowledges pause, resume and stop requests.
type ControlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
