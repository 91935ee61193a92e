// Package otp generates one-time codes from stored secrets. It is a
// thin, stateless wrapper: codes are a pure function of the secret and
// the wall clock (TOTP) or a caller-supplied counter (HOTP).
package otp

import (
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"

	"github.com/okulov/OTPKeeper/internal/models"
)

// Period is the TOTP time step in seconds (RFC 6238 default).
const Period = 30

// ErrBadSecret is returned when a secret is not valid Base32.
var ErrBadSecret = errors.New("otp: secret is not valid base32")

// Engine produces codes and countdown fractions. The zero value is ready
// to use; Now is overridable for tests.
type Engine struct {
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Code returns the current 6-digit code for the secret. For HOTP tokens
// the caller supplies the moving counter; for TOTP it is ignored.
func (e *Engine) Code(secret string, typ models.TokenType, counter uint64) (string, error) {
	secret = Canonical(secret)
	switch typ {
	case models.HOTP:
		return hotp.GenerateCode(secret, counter)
	default:
		return totp.GenerateCode(secret, e.now())
	}
}

// Remaining reports how much of the current TOTP step is left: the
// fraction in [0,1] drives a countdown indicator, seconds the label.
func (e *Engine) Remaining() (fraction float64, seconds int) {
	elapsed := e.now().Unix() % Period
	left := Period - elapsed
	return float64(left) / Period, int(left)
}

// Canonical normalizes a user-entered secret to the encoding the code
// generators expect: uppercase Base32 without spaces or padding.
func Canonical(secret string) string {
	s := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return strings.TrimRight(s, "=")
}

// ValidateSecret checks that the secret decodes as Base32 after
// canonicalization. Applied before a record is saved.
func ValidateSecret(secret string) error {
	s := Canonical(secret)
	if s == "" {
		return ErrBadSecret
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s); err != nil {
		return ErrBadSecret
	}
	return nil
}
