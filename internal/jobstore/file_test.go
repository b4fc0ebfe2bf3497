package jobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"groupcast/pkg/logx"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	s, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func testJob(id, group string, fireAt time.Time) Job {
	return Job{
		ID:          id,
		GroupName:   group,
		MessageText: "hello",
		FireAtMS:    fireAt.UnixMilli(),
		Status:      StatusPending,
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	if jobs := s.Load(context.Background()); len(jobs) != 0 {
		t.Fatalf("expected empty set, got %d jobs", len(jobs))
	}
}

func TestFileStoreAppendLoadRemove(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	fireAt := time.Now().Add(time.Hour)

	j1 := testJob("a", "Team A", fireAt)
	j2 := testJob("b", "Team B", fireAt)
	j2.MeetingLink = "https://meet.example/xyz"
	if err := s.AppendAll(ctx, []Job{j1, j2}); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}

	jobs := s.Load(ctx)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != "a" || jobs[1].ID != "b" {
		t.Fatalf("unexpected order: %q, %q", jobs[0].ID, jobs[1].ID)
	}
	if jobs[1].MeetingLink != j2.MeetingLink {
		t.Fatalf("meeting link lost: %+v", jobs[1])
	}
	if jobs[0].FireAtMS != fireAt.UnixMilli() {
		t.Fatalf("fire time mangled: got %d want %d", jobs[0].FireAtMS, fireAt.UnixMilli())
	}

	if err := s.RemoveByID(ctx, "a"); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	jobs = s.Load(ctx)
	if len(jobs) != 1 || jobs[0].ID != "b" {
		t.Fatalf("expected only job b, got %+v", jobs)
	}
}

func TestFileStoreRemoveUnknownIsNoop(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.AppendAll(ctx, []Job{testJob("a", "Team A", time.Now().Add(time.Hour))}); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}
	if err := s.RemoveByID(ctx, "missing"); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if jobs := s.Load(ctx); len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
}

func TestFileStoreCorruptFileTreatedAsEmpty(t *testing.T) {
	t.Parallel()
	s, path := newTestStore(t)
	ctx := context.Background()
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if jobs := s.Load(ctx); len(jobs) != 0 {
		t.Fatalf("corrupt file should load empty, got %d jobs", len(jobs))
	}

	// Writes after corruption start from the empty set.
	if err := s.AppendAll(ctx, []Job{testJob("a", "Team A", time.Now().Add(time.Hour))}); err != nil {
		t.Fatalf("AppendAll: %v", err)
	}
	jobs := s.Load(ctx)
	if len(jobs) != 1 || jobs[0].ID != "a" {
		t.Fatalf("expected fresh single-job set, got %+v", jobs)
	}
}

func TestFileStoreAppendNothing(t *testing.T) {
	t.Parallel()
	s, path := newTestStore(t)
	if err := s.AppendAll(context.Background(), nil); err != nil {
		t.Fatalf("AppendAll(nil): %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty append should not create the file, stat err = %v", err)
	}
}

func TestJobDue(t *testing.T) {
	t.Parallel()
	now := time.Now()
	cases := []struct {
		name   string
		fireAt time.Time
		due    bool
	}{
		{"past", now.Add(-time.Minute), true},
		{"exact", now, true},
		{"future", now.Add(time.Minute), false},
	}
	for _, tc := range cases {
		j := Job{FireAtMS: tc.fireAt.UnixMilli()}
		if got := j.Due(now); got != tc.due {
			t.Fatalf("%s: Due = %v, want %v", tc.name, got, tc.due)
		}
	}
}
