// Package memory is the default, process-local enrollment driver. A restart
// forgets every enrollment.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
)

type Store struct {
	mu          sync.RWMutex
	enrollments map[string]domain.Enrollment
}

func NewStore() *Store {
	return &Store{enrollments: make(map[string]domain.Enrollment)}
}

func (s *Store) Enrollments() store.Enrollments { return &enrollmentsRepo{s: s} }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type enrollmentsRepo struct {
	s *Store
}

func (r *enrollmentsRepo) GetEnrollment(ctx context.Context, userID string) (domain.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.enrollments[userID]
	if !ok {
		return domain.Enrollment{}, store.ErrNotFound
	}
	return e, nil
}

func (r *enrollmentsRepo) PutEnrollment(ctx context.Context, e domain.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.enrollments[e.UserID] = e
	return nil
}

func (r *enrollmentsRepo) DeleteEnrollment(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.enrollments, userID)
	return nil
}
