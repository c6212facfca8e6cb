// Package notify delivers new TOTP secrets to users out-of-band.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
)

var ErrDelivery = errors.New("notify: delivery failed")

// Notifier delivers an enrollment artifact. A nil error means the user can
// now configure their authenticator; anything else means they cannot.
type Notifier interface {
	NotifyEnrollment(ctx context.Context, a domain.EnrollmentArtifact) error
}

// Writer prints artifacts to an io.Writer instead of sending mail. It is
// meant for development installs without an SMTP relay.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) NotifyEnrollment(ctx context.Context, a domain.EnrollmentArtifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintf(w.out, "two-factor enrollment for %s <%s>\n  secret: %s\n  url: %s\n",
		a.UserID, a.Address, a.Secret, a.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	return nil
}
