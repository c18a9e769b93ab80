package domain

import "time"

// User represents a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Session is the read-only identity handle derived from a verified token.
// The service never constructs sessions from anything but the auth layer.
type Session struct {
	UserID string
	Name   string
}
