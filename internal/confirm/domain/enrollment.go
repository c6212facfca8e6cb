package domain

import "time"

// Enrollment is a user's active TOTP secret. A user has at most one.
type Enrollment struct {
	UserID    string
	Secret    string // base32
	CreatedAt time.Time
}

// EnrollmentArtifact is handed to the notifier so the user can import the
// secret into an authenticator app.
type EnrollmentArtifact struct {
	UserID  string
	Address string // delivery address, e.g. an email
	Secret  string // base32 secret, shown as text
	URL     string // otpauth:// provisioning URL, rendered as a QR code
	Issuer  string
	Account string
}
