package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"groupcast/internal/delivery"
	"groupcast/internal/jobstore"
	"groupcast/pkg/logx"
)

// ErrInvalidRequest rejects a submission before any side effect: empty group
// list, or a schedule time that is present but does not parse.
var ErrInvalidRequest = errors.New("invalid request")

// Config controls the scheduler service.
type Config struct {
	// SweepEvery is the interval of the due-job safety sweep that catches
	// timers lost to wall-clock jumps. Zero means 1m.
	SweepEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepEvery <= 0 {
		c.SweepEvery = time.Minute
	}
	return c
}

// Request is one inbound broadcast submission, before fan-out.
type Request struct {
	GroupNames     []string
	MessageText    string
	MeetingLink    string
	AttachmentPath string
	// ScheduleTime is the raw user-supplied time string. Blank means "now".
	ScheduleTime string
}

// GroupResult reports one group's immediate-delivery outcome.
type GroupResult struct {
	JobID     string
	GroupName string
	Err       error
}

// Result reports what Submit did with a request.
type Result struct {
	// Scheduled is true when the jobs were persisted and armed for a future
	// fire time; false when delivery was attempted synchronously.
	Scheduled bool
	FireAt    time.Time
	Groups    []GroupResult
}

// JobInfo is one pending job in a Snapshot.
type JobInfo struct {
	ID        string    `json:"id"`
	GroupName string    `json:"group_name"`
	FireAt    time.Time `json:"fire_at"`
	Armed     bool      `json:"armed"`
}

// Snapshot is a point-in-time view of the pending set.
type Snapshot struct {
	Pending []JobInfo `json:"pending"`
	Armed   int       `json:"armed"`
}

// Service turns submissions into per-group delivery jobs, owns all job
// timers, and is the sole writer to the job store.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	started bool

	store jobstore.Store
	exec  *delivery.Executor
	log   logx.Logger

	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc

	// tmu guards the timer and in-flight maps and the stopping flag. No two
	// timers are ever armed for the same job id; ids are UUIDs and never
	// reused.
	tmu      sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]struct{}
	stopping bool

	deliverWG sync.WaitGroup

	now func() time.Time
	loc *time.Location
}
