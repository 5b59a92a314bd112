package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// RunID uniquely identifies one acquisition run.
type RunID string

// NewRunID returns a random run identifier.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Status is the lifecycle state of a run.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// AcquisitionPath records which path produced (or failed to produce) the artifact.
type AcquisitionPath string

const (
	PathNone     AcquisitionPath = ""
	PathDirect   AcquisitionPath = "direct"
	PathFallback AcquisitionPath = "fallback"
)

// Request is the input of one run.
type Request struct {
	Source  string `json:"source_url"`
	Browser string `json:"browser,omitempty"`
	OutRoot string `json:"out_root,omitempty"`
}

// Run is the record of one acquisition run.
// This also matches the JSON payload returned by the run endpoints.
type Run struct {
	ID        RunID           `json:"id"`
	Source    string          `json:"source_url"`
	Browser   string          `json:"browser,omitempty"`
	OutRoot   string          `json:"out_root"`
	Status    Status          `json:"status"`
	Path      AcquisitionPath `json:"path,omitempty"`
	Stage     Stage           `json:"stage,omitempty"`
	BaseName  string          `json:"base_name,omitempty"`
	TargetDir string          `json:"target_dir,omitempty"`
	Artifact  string          `json:"artifact,omitempty"`
	Error     string          `json:"error,omitempty"`
	Segments  int             `json:"segments"`
	Bytes     int64           `json:"bytes"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Playlist is the normalized playlist of a fallback run (not exposed in the JSON record).
	Playlist string `json:"-"`
}

// Active reports whether the run has not finished yet.
func (r Run) Active() bool {
	return r.Status == StatusQueued || r.Status == StatusRunning
}
