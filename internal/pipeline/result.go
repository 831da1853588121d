package pipeline

import (
	"sheetsplit/internal/table"
)

// Status is the outcome class of a request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailure Status = "failure"
)

// Request names the controller operation that produced a result.
type Request string

const (
	RequestLoad       Request = "load"
	RequestProcess    Request = "process"
	RequestSave       Request = "save"
	RequestSaveCounts Request = "save_counts"
)

// User-facing messages.
const (
	MsgLoaded         = "File loaded successfully"
	MsgLoadFailed     = "Failed to load the file"
	MsgLoadFirst      = "Please load a file first"
	MsgProcessed      = "Data processed successfully"
	MsgNoDataToSave   = "No data to save"
	MsgSaved          = "File saved successfully"
	MsgSaveFailed     = "Failed to save the file"
	MsgNoCountsToSave = "No counts to save"
	MsgCountsSaved    = "Counts saved successfully"
	MsgCountsHeader   = "Element counts:"
)

// Result is the single response to a controller request.
type Result struct {
	Request Request       `json:"request"`
	Status  Status        `json:"status"`
	Message string        `json:"message"`
	Stage   Stage         `json:"stage"`
	Path    string        `json:"path,omitempty"`
	Rows    [][]string    `json:"rows,omitempty"`
	Counts  []table.Entry `json:"counts,omitempty"`
	Summary string        `json:"summary,omitempty"`

	// Err is the underlying error for warnings and failures.
	Err error `json:"-"`
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
