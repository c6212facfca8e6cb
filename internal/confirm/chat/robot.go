// Package chat is a small text-command router. Routes may carry a
// confirmation requirement, in which case the matched handler is held
// behind a confirmation code until another "confirm" message releases it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/pkg/idx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
)

var ErrNoRoute = errors.New("chat: no route matched")

// HandlerFunc answers a matched message.
type HandlerFunc func(ctx context.Context, res *Response) error

// Route binds a pattern to a handler. A nil Confirmation means the handler
// always runs immediately.
type Route struct {
	Name         string
	Pattern      *regexp.Regexp
	Handler      HandlerFunc
	Confirmation *domain.RouteSpec
}

// Robot dispatches messages to the first matching route.
type Robot struct {
	Dispatcher  *service.Dispatcher
	Enrollments *service.EnrollmentService
	Logger      *slog.Logger

	mu     sync.RWMutex
	routes []Route
}

// NewRobot returns a robot with the built-in confirmation commands
// registered.
func NewRobot(d *service.Dispatcher, e *service.EnrollmentService, logger *slog.Logger) *Robot {
	r := &Robot{
		Dispatcher:  d,
		Enrollments: e,
		Logger:      logger,
	}
	r.registerBuiltins()
	return r
}

// Register adds a route. A confirmation spec is resolved against the
// installation defaults here so a bad twofactor value fails at startup
// instead of on first use.
func (r *Robot) Register(rt Route) error {
	if rt.Pattern == nil || rt.Handler == nil {
		return fmt.Errorf("chat: route %q needs a pattern and a handler", rt.Name)
	}
	if rt.Name == "" {
		rt.Name = rt.Pattern.String()
	}
	if rt.Confirmation != nil {
		resolved, err := rt.Confirmation.Resolve(r.Dispatcher.DefaultTwoFactor, r.Dispatcher.DefaultExpireAfter)
		if err != nil {
			return fmt.Errorf("chat: route %q: %w", rt.Name, err)
		}
		rt.Confirmation = &resolved
	}

	r.mu.Lock()
	r.routes = append(r.routes, rt)
	r.mu.Unlock()
	return nil
}

// Routes returns the registered routes in match order.
func (r *Robot) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Route(nil), r.routes...)
}

// Receive handles msg, sending any replies to rep. It returns ErrNoRoute if
// nothing matched. Handler errors have already been reported to the user
// when they are returned.
func (r *Robot) Receive(ctx context.Context, msg Message, rep Replier) error {
	msg.Text = strings.TrimSpace(msg.Text)
	ctx = WithReplier(slogx.Ensure(ctx, r.Logger), rep)

	rt, matches, ok := r.match(msg.Text)
	if !ok {
		return ErrNoRoute
	}

	ctx = slogx.With(ctx, "route", rt.Name)
	log := slogx.FromContext(ctx)
	log.Debug("route matched", "user_id", msg.UserID)

	if rt.Confirmation == nil {
		return r.run(ctx, rt, msg, matches, rep)
	}

	inv := domain.Invocation{
		ID:       idx.New(),
		SenderID: msg.UserID,
		Route:    rt.Name,
		Run: func(runCtx context.Context) error {
			// Replies from a confirmed command go wherever the confirmation
			// was sent from.
			return r.run(runCtx, rt, msg, matches, replierFromContext(runCtx, rep))
		},
	}

	ch, err := r.Dispatcher.Guard(ctx, inv, *rt.Confirmation)
	if err != nil {
		log.Error("failed to guard command", "err", err)
		rep.Reply(msgInternalError)
		return err
	}

	switch ch.Decision {
	case domain.DecisionPassthrough:
		return inv.Run(ctx)
	case domain.DecisionRefuse2FARequired:
		rep.Reply(msgRequiresTwoFactor)
	case domain.DecisionChallenge2FA:
		rep.Reply(msgTwoFactorRequest(ch.Code, ch.ExpireAfter))
	default:
		rep.Reply(msgRequest(ch.Code, ch.ExpireAfter))
	}
	return nil
}

func (r *Robot) match(text string) (Route, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.routes {
		if m := rt.Pattern.FindStringSubmatch(text); m != nil {
			return rt, m, true
		}
	}
	return Route{}, nil, false
}

func (r *Robot) run(ctx context.Context, rt Route, msg Message, matches []string, rep Replier) error {
	res := &Response{Message: msg, Matches: matches, replier: rep}
	if err := rt.Handler(ctx, res); err != nil {
		slogx.FromContext(ctx).Error("command failed", "route", rt.Name, "err", err)
		return err
	}
	return nil
}
