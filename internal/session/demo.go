package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"groupcast/pkg/logx"
)

// demo simulates the external messaging session: it walks
// Disconnected -> AwaitingScan -> Ready on a timer and accepts sends to a
// fixed group list. It exists so the HTTP surface and the front end can be
// exercised without a live browser-automation process.
type demo struct {
	hub

	cfg DemoConfig
	log logx.Logger

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	runWG     sync.WaitGroup

	qrMu sync.Mutex
	qr   string
}

func newDemo(cfg DemoConfig, log logx.Logger) *demo {
	if len(cfg.Groups) == 0 {
		cfg.Groups = []Group{
			{Name: "Demo Group", ID: "demo-group@g.us"},
			{Name: "Announcements", ID: "announcements@g.us"},
		}
	}
	if cfg.ScanDelay <= 0 {
		cfg.ScanDelay = time.Second
	}
	return &demo{cfg: cfg, log: log.With(logx.String("session", "demo"))}
}

func (d *demo) Start(ctx context.Context) error {
	d.runMu.Lock()
	if d.running {
		d.runMu.Unlock()
		return nil
	}
	d.running = true
	rctx, cancel := context.WithCancel(ctx)
	d.runCancel = cancel
	d.runWG.Add(1)
	d.runMu.Unlock()

	go func() {
		defer d.runWG.Done()

		d.qrMu.Lock()
		d.qr = fmt.Sprintf("groupcast-demo-scan:%d", time.Now().UnixNano())
		d.qrMu.Unlock()
		d.setState(StateAwaitingScan)
		d.log.Info("scan code generated")

		t := time.NewTimer(d.cfg.ScanDelay)
		defer t.Stop()
		select {
		case <-rctx.Done():
			d.setState(StateDisconnected)
			return
		case <-t.C:
		}

		d.setState(StateReady)
		d.log.Info("session ready", logx.Int("groups", len(d.cfg.Groups)))

		<-rctx.Done()
		d.setState(StateDisconnected)
	}()
	return nil
}

func (d *demo) Stop(ctx context.Context) error {
	d.runMu.Lock()
	cancel := d.runCancel
	d.runCancel = nil
	wasRunning := d.running
	d.running = false
	d.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.runWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *demo) QR() (string, bool) {
	if d.State() != StateAwaitingScan {
		return "", false
	}
	d.qrMu.Lock()
	defer d.qrMu.Unlock()
	if d.qr == "" {
		return "", false
	}
	return d.qr, true
}

func (d *demo) ListGroups(ctx context.Context) ([]Group, error) {
	if d.State() != StateReady {
		return nil, ErrNotReady
	}
	out := make([]Group, len(d.cfg.Groups))
	copy(out, d.cfg.Groups)
	return out, nil
}

func (d *demo) SendToChat(ctx context.Context, chatID string, p Payload) error {
	if d.State() != StateReady {
		return ErrNotReady
	}
	known := false
	for _, g := range d.cfg.Groups {
		if g.ID == chatID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("stale chat id %q", chatID)
	}
	if p.AttachmentPath != "" {
		if _, err := os.Stat(p.AttachmentPath); err != nil {
			return fmt.Errorf("attachment unreadable: %w", err)
		}
	}
	d.log.Info("demo send",
		logx.String("chat_id", chatID),
		logx.Bool("attachment", p.AttachmentPath != ""),
		logx.Int("text_len", len(p.Text)))
	return nil
}
