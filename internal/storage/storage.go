// Package storage persists users and their resume subscriptions.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a row with a taken id.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUntilRequired is returned when writing an active resume without an end date.
	ErrUntilRequired = errors.New("active resume without until")
)

// Store is the single source of truth for users and resumes. Every call is
// atomic at the row level; nothing is cached between calls.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, id int64) (*User, error)
	// UpdateUser replaces every mutable field of the user.
	UpdateUser(ctx context.Context, user *User) error

	GetResume(ctx context.Context, id string) (*Resume, error)
	CreateResume(ctx context.Context, resume *Resume) error
	// UpdateResume replaces the whole row.
	UpdateResume(ctx context.Context, resume *Resume) error
	UpsertResume(ctx context.Context, resume *Resume) error

	ListActiveResumes(ctx context.Context, filter ActiveFilter) ([]*Resume, error)

	Ping(ctx context.Context) error
	Close() error
}
