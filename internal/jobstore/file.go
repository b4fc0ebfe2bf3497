package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"groupcast/pkg/logx"
)

// fileStore keeps the whole pending-job set in one JSON document.
//
// Every mutation is a read-modify-write of the full set, committed with a
// tmp-file + rename so readers never observe a partial write. There is no
// incremental log; the set is expected to stay small (pending deferred jobs
// only, completed jobs are removed on fire).
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("store.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) []Job {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *fileStore) AppendAll(ctx context.Context, jobs []Job) error {
	_ = ctx
	if len(jobs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.loadLocked()
	cur = append(cur, jobs...)
	return s.writeLocked(cur)
}

func (s *fileStore) RemoveByID(ctx context.Context, id string) error {
	_ = ctx
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.loadLocked()
	out := cur[:0]
	removed := false
	for _, j := range cur {
		if j.ID == id {
			removed = true
			continue
		}
		out = append(out, j)
	}
	if !removed {
		return nil
	}
	return s.writeLocked(out)
}

func (s *fileStore) loadLocked() []Job {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("job file unreadable, treating as empty", logx.String("path", s.path), logx.Err(err))
		}
		return nil
	}
	var jobs []Job
	if err := json.Unmarshal(b, &jobs); err != nil {
		s.log.Warn("job file corrupt, treating as empty", logx.String("path", s.path), logx.Err(err))
		return nil
	}
	return jobs
}

func (s *fileStore) writeLocked(jobs []Job) error {
	if jobs == nil {
		jobs = []Job{}
	}
	b, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
