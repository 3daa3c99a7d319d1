package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no row matches the key.
var ErrNotFound = errors.New("record not found")

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// User is one entry of the user directory. Rows are created on first /start
// and never mutated or deleted afterwards.
type User struct {
	ID        int64
	Username  string
	FirstName string
	DateAdded time.Time
}

// LectureCommand is an admin-defined dynamic command mapping a letters-only
// name (stored without the leading slash) to a join link and description.
type LectureCommand struct {
	Command     string
	Link        string
	Description string
}

// Store is the persistence API for the user directory and lecture catalog.
type Store interface {
	// AddUserIfAbsent inserts the user unless the ID already exists.
	// It reports whether a new row was created.
	AddUserIfAbsent(ctx context.Context, u User) (bool, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int64, error)

	// UpsertCommand creates the command or overwrites its link/description.
	UpsertCommand(ctx context.Context, c LectureCommand) error
	// GetCommand returns ErrNotFound when the name is not in the catalog.
	GetCommand(ctx context.Context, name string) (LectureCommand, error)
	// DeleteCommand reports whether the command existed.
	DeleteCommand(ctx context.Context, name string) (bool, error)
	ListCommands(ctx context.Context) ([]LectureCommand, error)
	CountCommands(ctx context.Context) (int64, error)

	// Version reports the underlying sqlite library version (for /stats).
	Version(ctx context.Context) (string, error)
	Close() error
}
