package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/notify"
	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
)

var (
	confirmPattern = regexp.MustCompile(`(?i)^confirm\s+([a-f0-9]{6})(?:\s+(\S+))?$`)
	enrollPattern  = regexp.MustCompile(`(?i)^confirm\s+2fa\s+enroll\s+(\S+)$`)
	removePattern  = regexp.MustCompile(`(?i)^confirm\s+2fa\s+remove(?:\s+@?(\S+))?$`)
)

func (r *Robot) registerBuiltins() {
	r.routes = append(r.routes,
		Route{Name: "confirm", Pattern: confirmPattern, Handler: r.handleConfirm},
		Route{Name: "confirm-2fa-enroll", Pattern: enrollPattern, Handler: r.handleEnroll},
		Route{Name: "confirm-2fa-remove", Pattern: removePattern, Handler: r.handleRemove},
	)
}

func (r *Robot) handleConfirm(ctx context.Context, res *Response) error {
	code := strings.ToLower(res.Match(1))
	otp := res.Match(2)

	out := r.Dispatcher.AttemptConfirm(ctx, code, res.Message.UserID, otp)
	switch out.Status {
	case domain.OutcomeConfirmed:
		// The released command has already answered for itself.
	case domain.OutcomeInvalidCode:
		res.Reply(msgInvalidCode(code))
	case domain.OutcomeSelfDisallowed:
		res.Reply(msgOtherUserRequired(code))
	case domain.OutcomeGroupRestricted:
		res.Reply(msgUserInGroupRequired(code, out.Groups))
	case domain.OutcomeTwoFactorRequired:
		res.Reply(msgOTPRequired(code))
	case domain.OutcomeNotEnrolled:
		res.Reply(msgNotEnrolled(code))
	case domain.OutcomeIncorrectOTP:
		res.Reply(msgIncorrectOTP(code))
	case domain.OutcomeUnavailable:
		res.Reply(msgNotConfirmed(code))
	default:
		res.Reply(msgCommandFailed(code))
	}
	return nil
}

func (r *Robot) handleEnroll(ctx context.Context, res *Response) error {
	address := res.Match(1)

	artifact, err := r.Enrollments.Enroll(ctx, res.Message.UserID, address)
	switch {
	case err == nil:
		res.Reply(msgEnrolled(artifact.Address))
	case errors.Is(err, service.ErrInvalidAddress):
		res.Reply(msgInvalidAddress(address))
	case errors.Is(err, service.ErrAlreadyEnrolled):
		res.Reply(msgAlreadyEnrolled)
	case errors.Is(err, notify.ErrDelivery):
		res.Reply(msgDeliveryFailed(address, err))
	default:
		slogx.FromContext(ctx).Error("failed to enroll", "user_id", res.Message.UserID, "err", err)
		res.Reply(msgInternalError)
	}
	return nil
}

func (r *Robot) handleRemove(ctx context.Context, res *Response) error {
	target := res.Match(1)
	actor := res.Message.UserID

	var (
		name string
		err  error
	)
	if target == "" {
		err = r.Enrollments.RemoveSelf(ctx, actor)
	} else {
		var u domain.User
		u, err = r.Enrollments.RemoveOther(ctx, actor, target)
		name = u.Name
		if name == "" {
			name = target
		}
	}

	switch {
	case err == nil && target == "":
		res.Reply(msgRemovedSelf)
	case err == nil:
		res.Reply(msgRemovedOther(name))
	case errors.Is(err, service.ErrNotPrivileged):
		res.Reply(msgNotPrivileged)
	case errors.Is(err, service.ErrNoSuchUser):
		res.Reply(msgNoSuchUser(target))
	default:
		slogx.FromContext(ctx).Error("failed to remove enrollment", "user_id", actor, "err", err)
		res.Reply(msgInternalError)
	}
	return nil
}
