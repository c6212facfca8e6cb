package service

import "errors"

var (
	ErrAlreadyEnrolled = errors.New("already enrolled in two-factor confirmation")
	ErrInvalidAddress  = errors.New("invalid delivery address")
	ErrNotPrivileged   = errors.New("action requires a privileged group")
	ErrNoSuchUser      = errors.New("no such user")
	ErrNoDirectory     = errors.New("no directory configured for group checks")
)
