package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultExpireAfter is the time-to-live of a confirmation code when neither
// the route nor the installation overrides it.
const DefaultExpireAfter = 60 * time.Second

// TwoFactorMode is the second-factor policy declared by a route.
type TwoFactorMode string

const (
	TwoFactorBlock   TwoFactorMode = "block"   // never ask for an OTP
	TwoFactorAllow   TwoFactorMode = "allow"   // ask for an OTP when the sender is enrolled
	TwoFactorRequire TwoFactorMode = "require" // refuse senders who are not enrolled
)

// TwoFactorModeError reports a twofactor value outside block/allow/require.
type TwoFactorModeError struct {
	Value string
}

func (e *TwoFactorModeError) Error() string {
	return fmt.Sprintf("%q is not a valid value for the confirmation twofactor option", e.Value)
}

// ParseTwoFactorMode parses a configured twofactor value. Matching is
// case-insensitive; anything unknown is a configuration error.
func ParseTwoFactorMode(s string) (TwoFactorMode, error) {
	mode := TwoFactorMode(strings.ToLower(strings.TrimSpace(s)))
	if err := mode.Validate(); err != nil {
		return "", &TwoFactorModeError{Value: s}
	}
	return mode, nil
}

// Validate reports whether m is one of the enumerated modes.
func (m TwoFactorMode) Validate() error {
	switch m {
	case TwoFactorBlock, TwoFactorAllow, TwoFactorRequire:
		return nil
	default:
		return &TwoFactorModeError{Value: string(m)}
	}
}

// RouteSpec is the confirmation requirement attached to a routable command at
// registration time.
type RouteSpec struct {
	Required    bool          // false lets the command through unconfirmed
	AllowSelf   bool          // sender may confirm their own command
	RestrictTo  []string      // if non-empty, confirmer must be in one of these groups
	ExpireAfter time.Duration // code TTL; zero means installation default
	TwoFactor   TwoFactorMode // empty means installation default
}

// NewRouteSpec returns a spec requiring confirmation with the documented
// defaults: self-confirmation allowed, no group restriction, default TTL and
// the installation's twofactor mode.
func NewRouteSpec() RouteSpec {
	return RouteSpec{
		Required:  true,
		AllowSelf: true,
	}
}

// Resolve fills the zero-valued fields from installation defaults and
// validates the result.
func (s RouteSpec) Resolve(defaultMode TwoFactorMode, defaultTTL time.Duration) (RouteSpec, error) {
	if s.TwoFactor == "" {
		s.TwoFactor = defaultMode
	}
	if err := s.TwoFactor.Validate(); err != nil {
		return RouteSpec{}, err
	}
	if s.ExpireAfter <= 0 {
		s.ExpireAfter = defaultTTL
	}
	if s.ExpireAfter <= 0 {
		s.ExpireAfter = DefaultExpireAfter
	}
	if len(s.RestrictTo) > 0 {
		s.RestrictTo = append([]string(nil), s.RestrictTo...)
	}
	return s, nil
}

// Decision is the policy verdict for a single invocation of a route.
type Decision int

const (
	DecisionPassthrough Decision = iota
	DecisionChallenge1FA
	DecisionChallenge2FA
	DecisionRefuse2FARequired
)

func (d Decision) String() string {
	switch d {
	case DecisionPassthrough:
		return "passthrough"
	case DecisionChallenge1FA:
		return "challenge_1fa"
	case DecisionChallenge2FA:
		return "challenge_2fa"
	case DecisionRefuse2FARequired:
		return "refuse_2fa_required"
	default:
		return "unknown"
	}
}
