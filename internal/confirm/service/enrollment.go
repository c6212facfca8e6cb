package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/directory"
	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/internal/confirm/notify"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20 // 160-bit secret, the RFC 4226 recommendation

	defaultNotifyTimeout = 30 * time.Second
)

// EnrollmentService manages per-user TOTP secrets. Operations for one user
// are serialized; different users never wait on each other.
type EnrollmentService struct {
	Store            store.Enrollments
	Notifier         notify.Notifier
	Directory        directory.Directory
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
	Issuer           string
	Secure           bool     // forbid re-enrollment and unprivileged self-removal
	PrivilegedGroups []string // groups allowed to remove enrollments
	NotifyTimeout    time.Duration
	Now              func() time.Time

	locks keyedMutex
}

func (s *EnrollmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IsEnrolled reports whether userID has an active secret.
func (s *EnrollmentService) IsEnrolled(ctx context.Context, userID string) (bool, error) {
	_, err := s.Store.GetEnrollment(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to get enrollment: %w", err)
	}
}

// Enroll generates a new secret for userID and delivers it to address. The
// store is written only after delivery succeeds, so a failed send leaves any
// previous enrollment in place.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, address string) (domain.EnrollmentArtifact, error) {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		s.Metrics.Enrollment("invalid_address")
		return domain.EnrollmentArtifact{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	if s.Secure {
		enrolled, err := s.IsEnrolled(ctx, userID)
		if err != nil {
			return domain.EnrollmentArtifact{}, err
		}
		if enrolled {
			s.Metrics.Enrollment("already_enrolled")
			return domain.EnrollmentArtifact{}, ErrAlreadyEnrolled
		}
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: addr.Address,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.EnrollmentArtifact{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	artifact := domain.EnrollmentArtifact{
		UserID:  userID,
		Address: addr.Address,
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  key.Issuer(),
		Account: key.AccountName(),
	}

	timeout := s.NotifyTimeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	notifyCtx, cancel := context.WithTimeout(ctx, timeout)
	err = s.Notifier.NotifyEnrollment(notifyCtx, artifact)
	cancel()
	if err != nil {
		s.Metrics.Enrollment("delivery_failed")
		s.Logger.Warn("enrollment delivery failed", "user_id", userID, "err", err)
		return domain.EnrollmentArtifact{}, err
	}

	err = s.Store.PutEnrollment(ctx, domain.Enrollment{
		UserID:    userID,
		Secret:    artifact.Secret,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.EnrollmentArtifact{}, fmt.Errorf("failed to store enrollment: %w", err)
	}

	s.Metrics.Enrollment("enrolled")
	s.Logger.Info("two-factor enrollment created", "user_id", userID)
	return artifact, nil
}

// Verify checks code against userID's secret at instant at, accepting the
// adjacent time steps as well. A user without an enrollment never verifies.
func (s *EnrollmentService) Verify(ctx context.Context, userID, code string, at time.Time) (bool, error) {
	e, err := s.Store.GetEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get enrollment: %w", err)
	}

	ok, err := totp.ValidateCustom(code, e.Secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP code: %w", err)
	}
	return ok, nil
}

// Remove deletes userID's enrollment. Removing a user who is not enrolled
// is not an error.
func (s *EnrollmentService) Remove(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.Store.DeleteEnrollment(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", err)
	}
	s.Metrics.Enrollment("removed")
	s.Logger.Info("two-factor enrollment removed", "user_id", userID)
	return nil
}

// RemoveSelf removes the actor's own enrollment. In secure mode only a
// privileged user may do this.
func (s *EnrollmentService) RemoveSelf(ctx context.Context, actorID string) error {
	if s.Secure {
		if err := s.requirePrivilege(ctx, actorID); err != nil {
			return err
		}
	}
	return s.Remove(ctx, actorID)
}

// RemoveOther removes the enrollment of the user matching query. It always
// requires privilege, and the privilege check comes before the lookup.
func (s *EnrollmentService) RemoveOther(ctx context.Context, actorID, query string) (domain.User, error) {
	if err := s.requirePrivilege(ctx, actorID); err != nil {
		return domain.User{}, err
	}
	if s.Directory == nil {
		return domain.User{}, ErrNoDirectory
	}

	target, err := s.Directory.FindUser(ctx, query)
	if errors.Is(err, directory.ErrUserNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", ErrNoSuchUser, query)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.Remove(ctx, target.ID); err != nil {
		return domain.User{}, err
	}
	return target, nil
}

func (s *EnrollmentService) requirePrivilege(ctx context.Context, actorID string) error {
	if s.Directory == nil || len(s.PrivilegedGroups) == 0 {
		return ErrNotPrivileged
	}
	ok, err := directory.InAnyGroup(ctx, s.Directory, actorID, s.PrivilegedGroups)
	if err != nil {
		return fmt.Errorf("failed to resolve privilege: %w", err)
	}
	if !ok {
		return ErrNotPrivileged
	}
	return nil
}
