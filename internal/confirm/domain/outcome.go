package domain

// ConsumeStatus is the result of trying to take a pending command out of the
// registry.
type ConsumeStatus int

const (
	ConsumeOK ConsumeStatus = iota
	ConsumeNotFound
	ConsumeSelfDisallowed
	ConsumeGroupRestricted
)

// ConsumeResult carries the invocation on success, or the groups that would
// have qualified on a group restriction.
type ConsumeResult struct {
	Status     ConsumeStatus
	Invocation Invocation
	Groups     []string
}

// OutcomeStatus names every way a confirmation attempt can end.
type OutcomeStatus int

const (
	OutcomeConfirmed OutcomeStatus = iota
	OutcomeInvalidCode
	OutcomeTwoFactorRequired
	OutcomeNotEnrolled
	OutcomeIncorrectOTP
	OutcomeSelfDisallowed
	OutcomeGroupRestricted
	OutcomeFailed      // the code was consumed but the invocation errored or panicked
	OutcomeUnavailable // a collaborator failed before the code was consumed; it is still pending
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeInvalidCode:
		return "invalid_code"
	case OutcomeTwoFactorRequired:
		return "twofactor_required"
	case OutcomeNotEnrolled:
		return "not_enrolled"
	case OutcomeIncorrectOTP:
		return "incorrect_otp"
	case OutcomeSelfDisallowed:
		return "self_disallowed"
	case OutcomeGroupRestricted:
		return "group_restricted"
	case OutcomeFailed:
		return "failed"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Outcome is the user-facing result of a confirmation attempt.
type Outcome struct {
	Status OutcomeStatus
	Code   string
	Groups []string // set for OutcomeGroupRestricted
	Err    error    // set for OutcomeFailed and OutcomeUnavailable
}
