package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"groupcast/internal/scheduler"
	"groupcast/internal/session"
	"groupcast/pkg/logx"
)

// Config controls the HTTP server.
type Config struct {
	// Addr defaults to ":3000".
	Addr string
	// StaticDir, when non-empty, is served at "/" (the bundled front end).
	StaticDir string
	// UploadDir is where attachments land; it is also served at /uploads/.
	UploadDir string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":3000"
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		c.UploadDir = "./uploads"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	return c
}

// Server is the HTTP boundary: it translates external requests into calls
// on the scheduler and the session, nothing more.
type Server struct {
	cfg   Config
	sched *scheduler.Service
	sess  session.Session
	log   logx.Logger

	srv *http.Server
}

func New(cfg Config, sched *scheduler.Service, sess session.Session, log logx.Logger) *Server {
	return &Server{cfg: cfg.withDefaults(), sched: sched, sess: sess, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /qr", s.handleQR)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /groups", s.handleGroups)
	mux.HandleFunc("GET /jobs", s.handleJobs)
	mux.HandleFunc("POST /send-message", s.handleSendMessage)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir))))
	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

// Start begins serving and returns once the listener is bound, so callers
// can fail fast on an occupied port.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.Err(err))
		}
	}()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
