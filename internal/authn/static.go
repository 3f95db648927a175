package authn

import (
	"crypto/subtle"
	"errors"
	"os"
)

// ErrBadCredentials is returned when a login attempt doesn't match the
// configured static credential pair.
var ErrBadCredentials = errors.New("authn: invalid username or password")

// StaticCredentials checks a login attempt against the DASHBOARD_USER and
// DASHBOARD_PASS environment variables using constant-time comparison.
// It is the only credential check the runtime performs; there is no user
// store behind it.
type StaticCredentials struct {
	user string
	pass string
}

// NewStaticCredentialsFromEnv reads DASHBOARD_USER/DASHBOARD_PASS.
func NewStaticCredentialsFromEnv() StaticCredentials {
	return StaticCredentials{
		user: os.Getenv("DASHBOARD_USER"),
		pass: os.Getenv("DASHBOARD_PASS"),
	}
}

// Check reports whether username/password match the configured pair.
func (c StaticCredentials) Check(username, password string) error {
	if c.user == "" || c.pass == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.pass)) == 1
	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}
