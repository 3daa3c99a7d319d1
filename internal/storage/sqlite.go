// Package storage persists the user directory and the lecture catalog in a
// sqlite database file.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if necessary) the sqlite database at cfg.Path and runs
// the embedded migrations.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
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

func (s *sqliteStore) AddUserIfAbsent(ctx context.Context, u User) (bool, error) {
	if u.DateAdded.IsZero() {
		u.DateAdded = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, first_name, date_added)
		 VALUES(?,?,?,?)
		 ON CONFLICT(user_id) DO NOTHING`,
		u.ID, u.Username, u.FirstName, u.DateAdded.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, first_name, date_added FROM users ORDER BY date_added`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u  User
			at string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &at); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			u.DateAdded = t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *sqliteStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (s *sqliteStore) UpsertCommand(ctx context.Context, c LectureCommand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lecture_commands(command, link, description)
		 VALUES(?,?,?)
		 ON CONFLICT(command) DO UPDATE SET link=excluded.link, description=excluded.description`,
		c.Command, c.Link, c.Description,
	)
	return err
}

func (s *sqliteStore) GetCommand(ctx context.Context, name string) (LectureCommand, error) {
	var c LectureCommand
	err := s.db.QueryRowContext(ctx,
		`SELECT command, link, description FROM lecture_commands WHERE command = ?`, name,
	).Scan(&c.Command, &c.Link, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return LectureCommand{}, ErrNotFound
	}
	if err != nil {
		return LectureCommand{}, err
	}
	return c, nil
}

func (s *sqliteStore) DeleteCommand(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lecture_commands WHERE command = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) ListCommands(ctx context.Context) ([]LectureCommand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT command, link, description FROM lecture_commands ORDER BY command`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []LectureCommand
	for rows.Next() {
		var c LectureCommand
		if err := rows.Scan(&c.Command, &c.Link, &c.Description); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

func (s *sqliteStore) CountCommands(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lecture_commands`).Scan(&n)
	return n, err
}

func (s *sqliteStore) Version(ctx context.Context) (string, error) {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}
