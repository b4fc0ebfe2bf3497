package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"groupcast/internal/jobstore"
	"groupcast/pkg/logx"
)

// Submit validates one request, fans it out into per-group jobs, and either
// delivers immediately or persists and arms timers.
//
// Exactly one job is created per group name, all carrying identical
// message/link/attachment fields. Immediate jobs are never persisted, even
// when delivery fails: a failed immediate send is reported in the result,
// not retried. Deferred jobs are written to the store before their timer is
// armed, so a crash between the two still recovers the job on restart.
func (s *Service) Submit(ctx context.Context, req Request) (Result, error) {
	names := make([]string, 0, len(req.GroupNames))
	for _, n := range req.GroupNames {
		if strings.TrimSpace(n) == "" {
			continue
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return Result{}, fmt.Errorf("%w: empty group list", ErrInvalidRequest)
	}

	now := s.now()
	fireAt, err := s.parseScheduleTime(req.ScheduleTime, now)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	jobs := make([]jobstore.Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, jobstore.Job{
			ID:             uuid.NewString(),
			GroupName:      name,
			MessageText:    req.MessageText,
			MeetingLink:    req.MeetingLink,
			AttachmentPath: req.AttachmentPath,
			FireAtMS:       fireAt.UnixMilli(),
			Status:         jobstore.StatusPending,
		})
	}

	delay := fireAt.Sub(now)
	if delay <= 0 {
		return s.submitImmediate(ctx, jobs, fireAt)
	}
	return s.submitDeferred(ctx, jobs, fireAt, delay)
}

func (s *Service) submitImmediate(ctx context.Context, jobs []jobstore.Job, fireAt time.Time) (Result, error) {
	res := Result{Scheduled: false, FireAt: fireAt, Groups: make([]GroupResult, len(jobs))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := range jobs {
		i := i
		g.Go(func() error {
			j := jobs[i]
			err := s.exec.Execute(gctx, &j)
			mu.Lock()
			res.Groups[i] = GroupResult{JobID: j.ID, GroupName: j.GroupName, Err: err}
			mu.Unlock()
			// Per-group failures are reported, not propagated: one bad
			// group must not cancel the other sends.
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

func (s *Service) submitDeferred(ctx context.Context, jobs []jobstore.Job, fireAt time.Time, delay time.Duration) (Result, error) {
	s.mu.Lock()
	err := s.store.AppendAll(ctx, jobs)
	s.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("persist jobs: %w", err)
	}

	res := Result{Scheduled: true, FireAt: fireAt, Groups: make([]GroupResult, len(jobs))}
	for i, j := range jobs {
		s.arm(j, delay)
		res.Groups[i] = GroupResult{JobID: j.ID, GroupName: j.GroupName}
	}
	s.log.Info("jobs scheduled",
		logx.Int("count", len(jobs)),
		logx.Time("fire_at", fireAt),
		logx.Duration("delay", delay))
	return res, nil
}

// scheduleTime formats accepted from the form field. The front end submits
// the raw value of an <input type=datetime-local>, which has no zone; those
// are interpreted in the server's local zone.
var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func (s *Service) parseScheduleTime(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now, nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable schedule time %q", raw)
}
