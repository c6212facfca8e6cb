package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/domain"
	"github.com/pquerna/otp"
)

const qrSize = 256

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // empty disables AUTH
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP mails the secret as text together with a PNG QR code of the
// provisioning URL.
type SMTP struct {
	cfg  SMTPConfig
	send sendFunc
	now  func() time.Time
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// NotifyEnrollment sends the message. net/smtp has no context support, so
// the send runs on its own goroutine and an expired ctx abandons it.
func (s *SMTP) NotifyEnrollment(ctx context.Context, a domain.EnrollmentArtifact) error {
	msg, err := s.buildMessage(a)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	done := make(chan error, 1)
	go func() {
		done <- s.send(addr, auth, s.cfg.From, []string{a.Address}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrDelivery, ctx.Err())
	}
}

func (s *SMTP) buildMessage(a domain.EnrollmentArtifact) ([]byte, error) {
	qr, err := renderQR(a.URL)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", a.Address)
	fmt.Fprintf(&buf, "Subject: Your %s two-factor confirmation secret\r\n", a.Issuer)
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mw.Boundary())

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(text)
	fmt.Fprintf(qp, "You are now enrolled in two-factor confirmation as %s.\r\n\r\n", a.Account)
	fmt.Fprintf(qp, "Add this secret to your authenticator app:\r\n\r\n    %s\r\n\r\n", a.Secret)
	fmt.Fprintf(qp, "Or scan the attached QR code.\r\n")
	if err := qp.Close(); err != nil {
		return nil, err
	}

	img, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"image/png"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {`attachment; filename="totp.png"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := img.Write([]byte(wrapBase64(qr))); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderQR(url string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse provisioning url: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes b in 76 character lines per RFC 2045.
func wrapBase64(b []byte) string {
	enc := base64.StdEncoding.EncodeToString(b)

	var sb strings.Builder
	for len(enc) > 76 {
		sb.WriteString(enc[:76])
		sb.WriteString("\r\n")
		enc = enc[76:]
	}
	sb.WriteString(enc)
	sb.WriteString("\r\n")
	return sb.String()
}
