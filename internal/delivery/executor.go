package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"groupcast/internal/jobstore"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

var (
	// ErrSessionNotReady means the session was not Ready at fire time. The
	// job is not queued for reconnection; the caller must resubmit.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrGroupNotFound means no live group matched the job's name exactly.
	ErrGroupNotFound = errors.New("group not found")
)

// Config controls the executor.
type Config struct {
	// RatePerSec caps sends against the session. Delivery is rate sensitive;
	// the default is deliberately low.
	RatePerSec int
	// Timeout bounds one job's resolve-and-send sequence. Zero means 45s.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	return c
}

// Executor performs one job's send against the current session state.
// It owns no timers and no persistence; the scheduler drives it.
type Executor struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sess session.Session
	log  logx.Logger
}

func New(cfg Config, sess session.Session, log logx.Logger) *Executor {
	cfg = cfg.withDefaults()
	return &Executor{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		sess:    sess,
		log:     log,
	}
}

// Apply swaps the rate limit and timeout at runtime.
func (e *Executor) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	e.mu.Unlock()
}

// Execute attempts j once and sets its terminal status: Fired on success,
// Failed on any error. No retry is scheduled here.
//
// Send order is fixed: attachment (with the message text as caption) first,
// then the meeting link as a separate message, then a bare text message only
// when neither attachment nor link is present.
func (e *Executor) Execute(ctx context.Context, j *jobstore.Job) error {
	// Snapshot mutable dependencies to avoid races with Apply().
	e.mu.Lock()
	lim := e.limiter
	timeout := e.cfg.Timeout
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.execute(ctx, j, lim)
	if err != nil {
		j.Status = jobstore.StatusFailed
		e.log.Warn("delivery failed",
			logx.String("job", j.ID),
			logx.String("group", j.GroupName),
			logx.Err(err))
		return err
	}
	j.Status = jobstore.StatusFired
	e.log.Info("delivery fired",
		logx.String("job", j.ID),
		logx.String("group", j.GroupName),
		logx.String("chat_id", j.ResolvedChatID))
	return nil
}

func (e *Executor) execute(ctx context.Context, j *jobstore.Job, lim *rate.Limiter) error {
	if e.sess.State() != session.StateReady {
		return ErrSessionNotReady
	}

	chatID, err := e.resolve(ctx, j.GroupName)
	if err != nil {
		return err
	}
	j.ResolvedChatID = chatID

	sent := false
	if j.AttachmentPath != "" {
		if err := e.send(ctx, lim, chatID, session.Payload{Text: j.MessageText, AttachmentPath: j.AttachmentPath}); err != nil {
			return fmt.Errorf("send attachment: %w", err)
		}
		sent = true
	}
	if j.MeetingLink != "" {
		if err := e.send(ctx, lim, chatID, session.Payload{Text: "Join Meeting: " + j.MeetingLink}); err != nil {
			return fmt.Errorf("send link: %w", err)
		}
		sent = true
	}
	if !sent && j.MessageText != "" {
		if err := e.send(ctx, lim, chatID, session.Payload{Text: j.MessageText}); err != nil {
			return fmt.Errorf("send text: %w", err)
		}
	}
	return nil
}

// resolve matches the stored group name against the live list. Matching is
// exact and case sensitive; a renamed or unjoined group fails the job rather
// than delivering to a best match.
func (e *Executor) resolve(ctx context.Context, name string) (string, error) {
	groups, err := e.sess.ListGroups(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotReady) {
			return "", ErrSessionNotReady
		}
		return "", fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == name {
			return g.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrGroupNotFound, name)
}

func (e *Executor) send(ctx context.Context, lim *rate.Limiter, chatID string, p session.Payload) error {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	return e.sess.SendToChat(ctx, chatID, p)
}
