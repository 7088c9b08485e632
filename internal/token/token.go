// Package token signs and checks the record-scoped tokens embedded in
// booking and confirmation links.  A token binds one record id to one
// audience so that a booking-form link cannot be replayed against the
// confirmation endpoint or vice versa.  Tokens carry no expiry: links are
// mailed out months before a meeting and must keep working.
package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences accepted by Check.
const (
	AudienceBooking      = "booking"
	AudienceConfirmation = "confirmation"
)

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer using the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Generate returns a signed token for the record id and audience.
func (s *Signer) Generate(recordID, audience string) (string, error) {
	claims := jwt.MapClaims{
		"sub": recordID,
		"aud": audience,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Check reports whether raw is a valid token for the record id and
// audience.  Any parse, signature or claim mismatch yields false; callers
// treat that as an unauthorized link.
func (s *Signer) Check(recordID, audience, raw string) bool {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithAudience(audience))
	if err != nil || !tok.Valid {
		return false
	}
	sub, err := tok.Claims.GetSubject()
	return err == nil && sub == recordID
}
