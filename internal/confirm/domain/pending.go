package domain

import (
	"context"
	"time"

	"github.com/aussiebroadwan/confirm/pkg/idx"
)

// PendingState is the lifecycle state of a pending command. Consumed and
// Expired are terminal.
type PendingState int

const (
	PendingStatePending PendingState = iota
	PendingStateConsumed
	PendingStateExpired
)

// Invocation is a captured, not-yet-executed command. Run is called at most
// once, by whoever consumes the confirmation code.
type Invocation struct {
	ID       idx.ID // correlation id for logs
	SenderID string // identity that sent the original command
	Route    string // name of the matched route
	Run      func(ctx context.Context) error
}

// PendingCommand is an invocation awaiting confirmation. The constraint
// fields are a snapshot of the RouteSpec taken when the code was issued.
type PendingCommand struct {
	Code              string
	Invocation        Invocation
	AllowSelf         bool
	RestrictTo        []string
	RequiresTwoFactor bool
	CreatedAt         time.Time
	ExpireAfter       time.Duration
	State             PendingState
}

// ExpiresAt is the instant the code stops being confirmable.
func (p PendingCommand) ExpiresAt() time.Time {
	return p.CreatedAt.Add(p.ExpireAfter)
}

// ExpiredAt reports whether the code is past its TTL at now.
func (p PendingCommand) ExpiredAt(now time.Time) bool {
	return !now.Before(p.ExpiresAt())
}

// Challenge is what the sender of a guarded command is told.
type Challenge struct {
	Decision    Decision
	Code        string // empty unless Decision is a challenge
	ExpireAfter time.Duration
}
