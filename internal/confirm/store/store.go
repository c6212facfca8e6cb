package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Drivers (memory, sqlite)
// implement it. Pending commands are deliberately absent: they never
// outlive the process and live only in the service registry.
type Store interface {
	Enrollments() Enrollments

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is still reachable.
	Ping(ctx context.Context) error
}

type Enrollments interface {
	// GetEnrollment returns the active enrollment for a user or ErrNotFound.
	GetEnrollment(ctx context.Context, userID string) (domain.Enrollment, error)

	// PutEnrollment inserts or replaces the user's enrollment.
	PutEnrollment(ctx context.Context, e domain.Enrollment) error

	// DeleteEnrollment removes the user's enrollment. Deleting a user who is
	// not enrolled is not an error.
	DeleteEnrollment(ctx context.Context, userID string) error
}
