package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/internal/confirm/store/drivers/memory"
	"github.com/aussiebroadwan/confirm/pkg/idx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingNotifier keeps every artifact it is handed, or fails with err.
type recordingNotifier struct {
	mu        sync.Mutex
	artifacts []domain.EnrollmentArtifact
	err       error
}

func (n *recordingNotifier) NotifyEnrollment(ctx context.Context, a domain.EnrollmentArtifact) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.artifacts = append(n.artifacts, a)
	return nil
}

func (n *recordingNotifier) last(t *testing.T) domain.EnrollmentArtifact {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.artifacts) == 0 {
		t.Fatal("no enrollment artifact was delivered")
	}
	return n.artifacts[len(n.artifacts)-1]
}

var errSMTPDown = errors.New("smtp relay unavailable")

type fixture struct {
	clock       *fakeClock
	dir         *directory.Memory
	notifier    *recordingNotifier
	metrics     *metrics.Metrics
	registry    *Registry
	enrollments *EnrollmentService
	dispatcher  *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	dir := directory.NewMemory()
	for _, u := range []domain.User{
		{ID: "u-alice", Name: "Alice", MentionName: "alice"},
		{ID: "u-bob", Name: "Bob", MentionName: "bob"},
		{ID: "u-carol", Name: "Carol", MentionName: "carol"},
		{ID: "u-admin", Name: "Admin", MentionName: "admin"},
	} {
		dir.AddUser(u)
	}
	dir.AddUserToGroup("u-admin", "confirmation_admin")

	logger := slogx.Nop()
	m := metrics.New()
	notifier := &recordingNotifier{}

	registry := NewRegistry(dir, logger, m)
	registry.Now = clock.Now

	enrollments := &EnrollmentService{
		Store:            memory.NewStore().Enrollments(),
		Notifier:         notifier,
		Directory:        dir,
		Logger:           logger,
		Metrics:          m,
		Issuer:           "confirm-test",
		Secure:           true,
		PrivilegedGroups: []string{"confirmation_admin"},
		Now:              clock.Now,
	}

	dispatcher := &Dispatcher{
		Registry:           registry,
		Enrollments:        enrollments,
		Logger:             logger,
		Metrics:            m,
		DefaultTwoFactor:   domain.TwoFactorBlock,
		DefaultExpireAfter: domain.DefaultExpireAfter,
		Now:                clock.Now,
	}

	t.Cleanup(registry.Reset)

	return &fixture{
		clock:       clock,
		dir:         dir,
		notifier:    notifier,
		metrics:     m,
		registry:    registry,
		enrollments: enrollments,
		dispatcher:  dispatcher,
	}
}

// counter is an invocation body that records how often it ran.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Run(ctx context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func invocation(sender string, run func(context.Context) error) domain.Invocation {
	return domain.Invocation{
		ID:       idx.New(),
		SenderID: sender,
		Route:    "deploy",
		Run:      run,
	}
}

// metricValue sums every series of the named metric family.
func metricValue(t *testing.T, f *fixture, name string) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)

	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return sum
}
