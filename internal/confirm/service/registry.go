package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/pkg/cryptox"
)

// Registry holds commands awaiting confirmation, keyed by code. Each entry
// carries its own one-shot expiry timer. A code leaves the registry exactly
// once: consumed by a qualifying confirmer, or expired by its timer, a lazy
// lookup, or a sweep.
type Registry struct {
	Directory directory.Directory // resolves RestrictTo; may be nil when no route restricts
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
	NewCode   func() (string, error)

	mu      sync.RWMutex
	entries map[string]*pendingEntry
}

type pendingEntry struct {
	cmd   domain.PendingCommand
	timer *time.Timer
}

func NewRegistry(dir directory.Directory, logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		Directory: dir,
		Logger:    logger,
		Metrics:   m,
		Now:       time.Now,
		NewCode:   cryptox.NewConfirmationCode,
		entries:   make(map[string]*pendingEntry),
	}
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Issue stores inv under a fresh code and starts its expiry timer. spec must
// already be resolved so ExpireAfter is positive.
func (r *Registry) Issue(inv domain.Invocation, spec domain.RouteSpec, requiresTwoFactor bool) (string, error) {
	newCode := r.NewCode
	if newCode == nil {
		newCode = cryptox.NewConfirmationCode
	}
	code, err := newCode()
	if err != nil {
		return "", fmt.Errorf("generate confirmation code: %w", err)
	}

	ttl := spec.ExpireAfter
	if ttl <= 0 {
		ttl = domain.DefaultExpireAfter
	}

	e := &pendingEntry{
		cmd: domain.PendingCommand{
			Code:              code,
			Invocation:        inv,
			AllowSelf:         spec.AllowSelf,
			RestrictTo:        append([]string(nil), spec.RestrictTo...),
			RequiresTwoFactor: requiresTwoFactor,
			CreatedAt:         r.now(),
			ExpireAfter:       ttl,
			State:             domain.PendingStatePending,
		},
	}

	r.mu.Lock()
	if r.entries == nil {
		r.entries = make(map[string]*pendingEntry)
	}
	if old, ok := r.entries[code]; ok {
		// A live code was drawn again; the newer command takes it over.
		old.timer.Stop()
		r.Metrics.PendingRemoved(false)
		r.Logger.Warn("confirmation code collision, replacing pending command",
			"code", code, "replaced", old.cmd.Invocation.ID.String())
	}
	r.entries[code] = e
	e.timer = time.AfterFunc(ttl, func() { r.expire(code, e) })
	r.mu.Unlock()

	r.Metrics.PendingAdded()
	return code, nil
}

// expire removes e if it is still the entry stored under code. A timer that
// fires after its entry was consumed or replaced does nothing.
func (r *Registry) expire(code string, e *pendingEntry) {
	r.mu.Lock()
	cur, ok := r.entries[code]
	if !ok || cur != e {
		r.mu.Unlock()
		return
	}
	delete(r.entries, code)
	e.cmd.State = domain.PendingStateExpired
	r.mu.Unlock()

	r.Metrics.PendingRemoved(true)
	r.Logger.Debug("confirmation code expired", "code", code)
}

// lookup returns the live entry for code together with a snapshot of its
// command, expiring it first if its deadline passed before the timer fired.
func (r *Registry) lookup(code string) (*pendingEntry, domain.PendingCommand, bool) {
	r.mu.RLock()
	e, ok := r.entries[code]
	var cmd domain.PendingCommand
	if ok {
		cmd = e.cmd
	}
	r.mu.RUnlock()
	if !ok {
		return nil, domain.PendingCommand{}, false
	}
	if cmd.ExpiredAt(r.now()) {
		e.timer.Stop()
		r.expire(code, e)
		return nil, domain.PendingCommand{}, false
	}
	return e, cmd, true
}

// Find returns a copy of the pending command for code. Unknown, consumed and
// expired codes all report false.
func (r *Registry) Find(code string) (domain.PendingCommand, bool) {
	_, cmd, ok := r.lookup(code)
	return cmd, ok
}

// Consume takes the command out of the registry on behalf of confirmerID.
// The self and group constraints are checked against the entry as found; a
// failed constraint leaves it pending so another confirmer can still use the
// code. Of any number of concurrent callers at most one receives ConsumeOK.
// An error is returned only when group membership cannot be resolved.
func (r *Registry) Consume(ctx context.Context, code, confirmerID string) (domain.ConsumeResult, error) {
	e, snapshot, ok := r.lookup(code)
	if !ok {
		return domain.ConsumeResult{Status: domain.ConsumeNotFound}, nil
	}

	if res, ok, err := r.checkConstraints(ctx, snapshot, confirmerID); err != nil || !ok {
		return res, err
	}

	r.mu.Lock()
	cur, ok := r.entries[code]
	if !ok || cur != e || e.cmd.ExpiredAt(r.now()) {
		r.mu.Unlock()
		return domain.ConsumeResult{Status: domain.ConsumeNotFound}, nil
	}
	delete(r.entries, code)
	e.timer.Stop()
	e.cmd.State = domain.PendingStateConsumed
	inv := e.cmd.Invocation
	r.mu.Unlock()

	r.Metrics.PendingRemoved(false)
	return domain.ConsumeResult{Status: domain.ConsumeOK, Invocation: inv}, nil
}

func (r *Registry) checkConstraints(ctx context.Context, cmd domain.PendingCommand, confirmerID string) (domain.ConsumeResult, bool, error) {
	if !cmd.AllowSelf && confirmerID == cmd.Invocation.SenderID {
		return domain.ConsumeResult{Status: domain.ConsumeSelfDisallowed}, false, nil
	}
	if len(cmd.RestrictTo) == 0 {
		return domain.ConsumeResult{}, true, nil
	}
	if r.Directory == nil {
		return domain.ConsumeResult{}, false, ErrNoDirectory
	}
	member, err := directory.InAnyGroup(ctx, r.Directory, confirmerID, cmd.RestrictTo)
	if err != nil {
		return domain.ConsumeResult{}, false, fmt.Errorf("resolve group membership: %w", err)
	}
	if !member {
		return domain.ConsumeResult{
			Status: domain.ConsumeGroupRestricted,
			Groups: append([]string(nil), cmd.RestrictTo...),
		}, false, nil
	}
	return domain.ConsumeResult{}, true, nil
}

// Sweep expires every entry whose deadline is at or before now and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*pendingEntry
	for code, e := range r.entries {
		if e.cmd.ExpiredAt(now) {
			delete(r.entries, code)
			e.timer.Stop()
			e.cmd.State = domain.PendingStateExpired
			expired = append(expired, e)
		}
	}
	r.mu.Unlock()

	for range expired {
		r.Metrics.PendingRemoved(true)
	}
	return len(expired)
}

// Reset drops every pending command and stops their timers.
func (r *Registry) Reset() {
	r.mu.Lock()
	for _, e := range r.entries {
		e.timer.Stop()
	}
	r.entries = make(map[string]*pendingEntry)
	r.mu.Unlock()

	r.Metrics.ResetPending()
}

// Len is the number of pending commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
