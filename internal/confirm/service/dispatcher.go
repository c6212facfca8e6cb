package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
)

// Dispatcher sits between the command router and guarded handlers. Guard
// decides whether an invocation runs now or waits behind a code, and
// AttemptConfirm drives a code through to execution.
type Dispatcher struct {
	Registry           *Registry
	Enrollments        *EnrollmentService
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	DefaultTwoFactor   domain.TwoFactorMode
	DefaultExpireAfter time.Duration
	Now                func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Guard evaluates spec for inv's sender. On DecisionPassthrough the caller
// runs the invocation itself; on either challenge the invocation is held
// under the returned code; on DecisionRefuse2FARequired nothing is issued.
func (d *Dispatcher) Guard(ctx context.Context, inv domain.Invocation, spec domain.RouteSpec) (domain.Challenge, error) {
	if !spec.Required {
		d.Metrics.Challenge(domain.DecisionPassthrough.String())
		return domain.Challenge{Decision: domain.DecisionPassthrough}, nil
	}

	resolved, err := spec.Resolve(d.DefaultTwoFactor, d.DefaultExpireAfter)
	if err != nil {
		return domain.Challenge{}, err
	}

	enrolled := false
	if resolved.TwoFactor != domain.TwoFactorBlock {
		enrolled, err = d.Enrollments.IsEnrolled(ctx, inv.SenderID)
		if err != nil {
			return domain.Challenge{}, err
		}
	}

	decision, err := Evaluate(resolved, enrolled)
	if err != nil {
		return domain.Challenge{}, err
	}
	d.Metrics.Challenge(decision.String())

	switch decision {
	case domain.DecisionPassthrough, domain.DecisionRefuse2FARequired:
		return domain.Challenge{Decision: decision}, nil
	}

	code, err := d.Registry.Issue(inv, resolved, decision == domain.DecisionChallenge2FA)
	if err != nil {
		return domain.Challenge{}, err
	}

	d.Logger.Info("confirmation required",
		"route", inv.Route,
		"user_id", inv.SenderID,
		"invocation_id", inv.ID.String(),
		"decision", decision.String(),
		"expire_after", resolved.ExpireAfter,
	)
	return domain.Challenge{Decision: decision, Code: code, ExpireAfter: resolved.ExpireAfter}, nil
}

// AttemptConfirm tries to confirm code as confirmerID. otp is empty when the
// confirmer did not supply one. Every failure, including an error or panic
// from the held invocation, is reported as an Outcome.
func (d *Dispatcher) AttemptConfirm(ctx context.Context, code, confirmerID, otp string) domain.Outcome {
	out := d.attempt(ctx, code, confirmerID, otp)
	out.Code = code
	d.Metrics.Attempt(out.Status.String())
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, code, confirmerID, otp string) domain.Outcome {
	cmd, ok := d.Registry.Find(code)
	if !ok {
		return domain.Outcome{Status: domain.OutcomeInvalidCode}
	}

	// A sender barred from confirming their own command is told so before
	// anything is asked of their second factor.
	if !cmd.AllowSelf && confirmerID == cmd.Invocation.SenderID {
		return domain.Outcome{Status: domain.OutcomeSelfDisallowed}
	}

	if cmd.RequiresTwoFactor {
		if otp == "" {
			return domain.Outcome{Status: domain.OutcomeTwoFactorRequired}
		}
		enrolled, err := d.Enrollments.IsEnrolled(ctx, confirmerID)
		if err != nil {
			return d.unavailable(code, err)
		}
		if !enrolled {
			return domain.Outcome{Status: domain.OutcomeNotEnrolled}
		}
		valid, err := d.Enrollments.Verify(ctx, confirmerID, otp, d.now())
		if err != nil {
			return d.unavailable(code, err)
		}
		if !valid {
			d.Logger.Info("incorrect one-time password", "user_id", confirmerID, "code", code)
			return domain.Outcome{Status: domain.OutcomeIncorrectOTP}
		}
	}

	res, err := d.Registry.Consume(ctx, code, confirmerID)
	if err != nil {
		return d.unavailable(code, err)
	}

	switch res.Status {
	case domain.ConsumeNotFound:
		return domain.Outcome{Status: domain.OutcomeInvalidCode}
	case domain.ConsumeSelfDisallowed:
		return domain.Outcome{Status: domain.OutcomeSelfDisallowed}
	case domain.ConsumeGroupRestricted:
		return domain.Outcome{Status: domain.OutcomeGroupRestricted, Groups: res.Groups}
	}

	d.Logger.Info("command confirmed",
		"route", res.Invocation.Route,
		"code", code,
		"user_id", confirmerID,
		"sender_id", res.Invocation.SenderID,
		"invocation_id", res.Invocation.ID.String(),
	)

	if err := run(ctx, res.Invocation); err != nil {
		return d.failed(code, err)
	}
	return domain.Outcome{Status: domain.OutcomeConfirmed}
}

func (d *Dispatcher) failed(code string, err error) domain.Outcome {
	d.Logger.Error("confirmation failed", "code", code, "err", err)
	return domain.Outcome{Status: domain.OutcomeFailed, Err: err}
}

// unavailable reports a collaborator error hit before Consume took the entry,
// so the code can be retried.
func (d *Dispatcher) unavailable(code string, err error) domain.Outcome {
	d.Logger.Error("confirmation check failed", "code", code, "err", err)
	return domain.Outcome{Status: domain.OutcomeUnavailable, Err: err}
}

func run(ctx context.Context, inv domain.Invocation) (err error) {
	if inv.Run == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("confirmed command %s panicked: %v", inv.Route, r)
		}
	}()
	return inv.Run(ctx)
}
