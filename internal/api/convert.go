package api

import (
	"time"

	"merchbatch/internal/jobstatus"
	"merchbatch/internal/processor"
)

const (
	productGlobal = "global"
	productNote   = "note"
)

// FromSnapshot converts a controller snapshot into its API representation.
func FromSnapshot(snap jobstatus.Snapshot) StatusResponse {
	resp := StatusResponse{
		RunID:          snap.RunID,
		Mode:           snap.Mode,
		Total:          snap.Total,
		Current:        snap.Current,
		Success:        snap.Success,
		Failed:         snap.Failed,
		Status:         string(snap.State),
		Errors:         FromErrorRecords(snap.Errors),
		CurrentProduct: snap.CurrentItem,
		Progress:       snap.Progress(),
	}
	if resp.Status == "" {
		resp.Status = string(jobstatus.StateIdle)
	}
	if !snap.StartedAt.IsZero() {
		resp.StartedAt = snap.StartedAt.UTC().Format(dateTimeFormat)
	}
	if !snap.FinishedAt.IsZero() {
		resp.FinishedAt = snap.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return resp
}

// FromErrorRecords converts the error log. The result is never nil so the
// JSON form is always an array.
func FromErrorRecords(records []jobstatus.ErrorRecord) []ErrorEntry {
	out := make([]ErrorEntry, 0, len(records))
	for _, rec := range records {
		entry := ErrorEntry{Title: rec.Title, Error: rec.Message}
		switch rec.Scope {
		case jobstatus.ScopeGlobal:
			entry.Product = ProductRef{Label: productGlobal}
		case jobstatus.ScopeNote:
			entry.Product = ProductRef{Label: productNote}
		default:
			entry.Product = ProductRef{Index: rec.Index}
		}
		out = append(out, entry)
	}
	return out
}

// FromHealth converts processor readiness.
func FromHealth(h processor.Health) *ProcessorHealth {
	return &ProcessorHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail}
}

// ToSnapshot converts an API status back into the typed snapshot.
func ToSnapshot(resp StatusResponse) jobstatus.Snapshot {
	state, ok := jobstatus.ParseState(resp.Status)
	if !ok {
		state = jobstatus.StateIdle
	}
	snap := jobstatus.Snapshot{
		RunID:       resp.RunID,
		Mode:        resp.Mode,
		Total:       resp.Total,
		Current:     resp.Current,
		Success:     resp.Success,
		Failed:      resp.Failed,
		State:       state,
		CurrentItem: resp.CurrentProduct,
		StartedAt:   parseTime(resp.StartedAt),
		FinishedAt:  parseTime(resp.FinishedAt),
	}
	for _, entry := range resp.Errors {
		rec := jobstatus.ErrorRecord{Title: entry.Title, Message: entry.Error}
		switch entry.Product.Label {
		case productGlobal:
			rec.Scope = jobstatus.ScopeGlobal
		case productNote:
			rec.Scope = jobstatus.ScopeNote
		default:
			rec.Scope = jobstatus.ScopeItem
			rec.Index = entry.Product.Index
		}
		snap.Errors = append(snap.Errors, rec)
	}
	return snap
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
