//go:build sqlite
// +build sqlite

package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"groupcast/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) []Job {
	if s == nil || s.db == nil {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_name, message_text, meeting_link, attachment_path, fire_at_ms, status
		 FROM jobs ORDER BY fire_at_ms, id`)
	if err != nil {
		s.log.Warn("job table unreadable, treating as empty", logx.Err(err))
		return nil
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		var link, attach sql.NullString
		var status string
		if err := rows.Scan(&j.ID, &j.GroupName, &j.MessageText, &link, &attach, &j.FireAtMS, &status); err != nil {
			s.log.Warn("job row unreadable, skipping", logx.Err(err))
			continue
		}
		j.MeetingLink = link.String
		j.AttachmentPath = attach.String
		j.Status = Status(status)
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("job scan interrupted", logx.Err(err))
	}
	return out
}

func (s *sqliteStore) AppendAll(ctx context.Context, jobs []Job) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if len(jobs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO jobs(id, group_name, message_text, meeting_link, attachment_path, fire_at_ms, status)
			 VALUES(?,?,?,?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET status=excluded.status, fire_at_ms=excluded.fire_at_ms`,
			j.ID, j.GroupName, j.MessageText, nullStr(j.MeetingLink), nullStr(j.AttachmentPath), j.FireAtMS, string(j.Status),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) RemoveByID(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if id == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
