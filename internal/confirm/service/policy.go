package service

import "github.com/aussiebroadwan/confirm/internal/confirm/domain"

// Evaluate decides how one invocation of a guarded route is handled, given
// whether the sender currently has a TOTP enrollment. spec.TwoFactor must be
// set (see RouteSpec.Resolve); an unknown value is returned as a
// *domain.TwoFactorModeError before any decision is made.
func Evaluate(spec domain.RouteSpec, enrolled bool) (domain.Decision, error) {
	if !spec.Required {
		return domain.DecisionPassthrough, nil
	}
	if err := spec.TwoFactor.Validate(); err != nil {
		return 0, err
	}

	switch {
	case enrolled && spec.TwoFactor != domain.TwoFactorBlock:
		return domain.DecisionChallenge2FA, nil
	case !enrolled && spec.TwoFactor == domain.TwoFactorRequire:
		return domain.DecisionRefuse2FARequired, nil
	default:
		return domain.DecisionChallenge1FA, nil
	}
}
