package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"groupcast/internal/delivery"
	"groupcast/internal/jobstore"
	"groupcast/pkg/logx"
)

func New(cfg Config, store jobstore.Store, exec *delivery.Executor, log logx.Logger) *Service {
	return &Service{
		cfg:      cfg.withDefaults(),
		store:    store,
		exec:     exec,
		log:      log,
		timers:   map[string]*time.Timer{},
		inflight: map[string]struct{}{},
		now:      time.Now,
		loc:      time.Local,
	}
}

// Start loads persisted jobs and re-arms them: jobs whose fire time already
// passed are attempted immediately, future jobs get a timer for the
// remaining delay. This gives every persisted job at least one delivery
// attempt across a restart.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))

	s.tmu.Lock()
	s.stopping = false
	s.tmu.Unlock()

	s.c = cron.New()
	spec := fmt.Sprintf("@every %s", s.cfg.SweepEvery.String())
	if _, err := s.c.AddFunc(spec, s.sweep); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("register sweep: %w", err)
	}
	s.mu.Unlock()

	jobs := s.store.Load(ctx)
	now := s.now()
	recovered, due := 0, 0
	for _, j := range jobs {
		if j.Status != jobstore.StatusPending {
			// Terminal rows can only appear via external edits; drop them.
			_ = s.store.RemoveByID(ctx, j.ID)
			continue
		}
		if j.Due(now) {
			due++
			s.fireAsync(j)
			continue
		}
		recovered++
		s.arm(j, j.FireAt().Sub(now))
	}

	s.c.Start()
	s.log.Info("scheduler started",
		logx.Int("rearmed", recovered),
		logx.Int("overdue", due),
		logx.Duration("sweep_every", s.cfg.SweepEvery))
	return nil
}

// Stop halts the sweep, stops all armed timers (their jobs stay persisted
// for the next start), and waits for in-flight deliveries.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	c := s.c
	s.c = nil
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	s.tmu.Lock()
	s.stopping = true
	for id, t := range s.timers {
		_ = t.Stop()
		delete(s.timers, id)
	}
	s.tmu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.deliverWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop cancelled with deliveries in flight", logx.Err(ctx.Err()))
	}
}

// sweep re-checks the store for due jobs whose timer never fired (clock
// jumps, suspended hosts). Armed and in-flight jobs are skipped, so the
// no-two-timers-per-id guarantee holds.
func (s *Service) sweep() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	ctx := s.runCtx
	s.mu.Unlock()

	now := s.now()
	for _, j := range s.store.Load(ctx) {
		if !j.Due(now) || j.Status != jobstore.StatusPending {
			continue
		}
		s.tmu.Lock()
		_, armed := s.timers[j.ID]
		_, running := s.inflight[j.ID]
		s.tmu.Unlock()
		if armed || running {
			continue
		}
		s.log.Warn("sweep found due job without timer", logx.String("job", j.ID), logx.Time("fire_at", j.FireAt()))
		s.fireAsync(j)
	}
}

// arm schedules one deferred job. Callers hold no locks.
func (s *Service) arm(j jobstore.Job, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	s.tmu.Lock()
	if _, ok := s.timers[j.ID]; ok {
		s.tmu.Unlock()
		return
	}
	s.timers[j.ID] = time.AfterFunc(delay, func() { s.fire(j) })
	s.tmu.Unlock()

	s.log.Debug("job armed",
		logx.String("job", j.ID),
		logx.String("group", j.GroupName),
		logx.Time("fire_at", j.FireAt()))
}

func (s *Service) fireAsync(j jobstore.Job) {
	s.tmu.Lock()
	if s.stopping {
		s.tmu.Unlock()
		return
	}
	if _, ok := s.inflight[j.ID]; ok {
		s.tmu.Unlock()
		return
	}
	s.inflight[j.ID] = struct{}{}
	// The WaitGroup increment stays under tmu: once Stop has set stopping,
	// no new delivery can start behind its Wait.
	s.deliverWG.Add(1)
	s.tmu.Unlock()

	go func() {
		defer s.deliverWG.Done()
		s.deliver(j)
	}()
}

// fire runs in the timer goroutine at (or after) the job's fire time. A
// callback that lost the race with Stop is dropped; its job stays persisted
// for the next start.
func (s *Service) fire(j jobstore.Job) {
	s.tmu.Lock()
	delete(s.timers, j.ID)
	if s.stopping {
		s.tmu.Unlock()
		return
	}
	if _, ok := s.inflight[j.ID]; ok {
		s.tmu.Unlock()
		return
	}
	s.inflight[j.ID] = struct{}{}
	s.deliverWG.Add(1)
	s.tmu.Unlock()

	defer s.deliverWG.Done()
	s.deliver(j)
}

// deliver attempts the job and then removes it from the store whether it
// fired or failed, so a restart never re-fires a completed job. A crash in
// the window between attempt and removal yields one duplicate attempt after
// restart; that is a documented limitation, not a bug to paper over.
func (s *Service) deliver(j jobstore.Job) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	// The executor marks the job Fired or Failed and logs the cause. Failed
	// deferred jobs are dropped, not retried; the submitter must resubmit.
	_ = s.exec.Execute(ctx, &j)

	if rmErr := s.store.RemoveByID(ctx, j.ID); rmErr != nil {
		s.log.Error("failed to remove completed job", logx.String("job", j.ID), logx.Err(rmErr))
	}

	s.tmu.Lock()
	delete(s.inflight, j.ID)
	s.tmu.Unlock()
}
