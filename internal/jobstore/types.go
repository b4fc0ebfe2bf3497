package jobstore

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("job store disabled")

// Config configures the job store.
//
// Driver values:
//   - "file": single JSON document, fully rewritten on every mutation
//   - "sqlite": SQLite database file (optional build tag)
//
// An empty driver defaults to "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Status is a job's delivery status. A job stays Pending until an attempt is
// made; Fired and Failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusFired   Status = "fired"
	StatusFailed  Status = "failed"
)

// Job is one per-group delivery record.
//
// Only strictly-future jobs are ever persisted: an already-due job is
// attempted synchronously at submission and never written.
type Job struct {
	ID             string `json:"id"`
	GroupName      string `json:"group_name"`
	MessageText    string `json:"message_text"`
	MeetingLink    string `json:"meeting_link,omitempty"`
	AttachmentPath string `json:"attachment_path,omitempty"`
	FireAtMS       int64  `json:"fire_at_ms"`
	Status         Status `json:"status"`

	// ResolvedChatID is filled in lazily at fire time. It is never persisted:
	// the session's group list can change, so the name must be re-resolved on
	// every attempt.
	ResolvedChatID string `json:"-"`
}

func (j Job) FireAt() time.Time { return time.UnixMilli(j.FireAtMS) }

// Due reports whether the job's fire time has passed at now.
func (j Job) Due(now time.Time) bool { return j.FireAtMS <= now.UnixMilli() }
