package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"groupcast/pkg/logx"
)

// ErrNotReady is returned by session operations that require a connected,
// authenticated session.
var ErrNotReady = errors.New("session not ready")

// State is the connection state of the messaging session.
//
// Transitions: Disconnected -> AwaitingScan -> Ready.
// Ready -> Disconnected can happen at any time (external cause).
type State int

const (
	StateDisconnected State = iota
	StateAwaitingScan
	StateReady
)

func (s State) String() string {
	switch s {
	case StateAwaitingScan:
		return "awaiting-scan"
	case StateReady:
		return "ready"
	default:
		return "disconnected"
	}
}

// Group is one live chat group as reported by the session.
// Names are not guaranteed unique or stable across reconnects; treat the
// pair as ephemeral and re-list before every use.
type Group struct {
	Name string
	ID   string
}

// Payload is what a single send carries. Text doubles as the attachment
// caption when AttachmentPath is set.
type Payload struct {
	Text           string
	AttachmentPath string
}

// Session is the boundary to the single browser-automation-driven messaging
// session. Exactly one session exists per process; nothing else mutates its
// connection state.
type Session interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	State() State
	// QR returns the current scan payload. ok is false unless the session is
	// awaiting a scan.
	QR() (qr string, ok bool)

	// ListGroups returns the current group list. It fails (or returns empty)
	// unless the session is Ready. The call may block on the underlying
	// automation layer; pass a bounded context.
	ListGroups(ctx context.Context) ([]Group, error)

	// SendToChat delivers one payload to a chat id obtained from ListGroups.
	// Fails if the session is not Ready or the chat id is stale.
	SendToChat(ctx context.Context, chatID string, p Payload) error

	// OnStateChange registers a listener for state transitions. Listeners are
	// invoked sequentially from the session's own goroutine and must return
	// quickly.
	OnStateChange(fn func(State))
}

// Config selects and configures the session driver.
type Config struct {
	// Driver values:
	//   - "demo": simulated session for front-end development and tests
	// An empty driver is an error: the process is useless without a session.
	Driver string

	Demo DemoConfig
}

type DemoConfig struct {
	// ScanDelay is how long the simulated session stays in AwaitingScan
	// before flipping to Ready. Zero means it waits for nobody and goes
	// Ready after one second.
	ScanDelay time.Duration
	// Groups the simulated session reports once Ready.
	Groups []Group
}

// Open initializes the configured session driver.
func Open(cfg Config, log logx.Logger) (Session, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "demo":
		return newDemo(cfg.Demo, log), nil
	default:
		return nil, errors.New("unknown session driver: " + cfg.Driver)
	}
}

// hub fans state transitions out to listeners. Drivers embed it.
type hub struct {
	mu        sync.Mutex
	state     State
	listeners []func(State)
}

func (h *hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *hub) OnStateChange(fn func(State)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func (h *hub) setState(s State) {
	h.mu.Lock()
	if h.state == s {
		h.mu.Unlock()
		return
	}
	h.state = s
	ls := make([]func(State), len(h.listeners))
	copy(ls, h.listeners)
	h.mu.Unlock()
	for _, fn := range ls {
		fn(s)
	}
}
