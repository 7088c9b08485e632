package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCheckRoundTrip(t *testing.T) {
	s := NewSigner("link-secret")

	for _, aud := range []string{AudienceBooking, AudienceConfirmation} {
		raw, err := s.Generate("recBOOK123", aud)
		require.NoError(t, err)
		require.NotEmpty(t, raw)

		assert.True(t, s.Check("recBOOK123", aud, raw))
	}
}

func TestCheckRejectsWrongAudience(t *testing.T) {
	s := NewSigner("link-secret")

	raw, err := s.Generate("recBOOK123", AudienceBooking)
	require.NoError(t, err)

	assert.False(t, s.Check("recBOOK123", AudienceConfirmation, raw))
}

func TestCheckRejectsWrongRecord(t *testing.T) {
	s := NewSigner("link-secret")

	raw, err := s.Generate("recBOOK123", AudienceBooking)
	require.NoError(t, err)

	assert.False(t, s.Check("recOTHER999", AudienceBooking, raw))
}

func TestCheckRejectsTamperedToken(t *testing.T) {
	s := NewSigner("link-secret")

	raw, err := s.Generate("recBOOK123", AudienceBooking)
	require.NoError(t, err)

	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]

	assert.False(t, s.Check("recBOOK123", AudienceBooking, tampered))
	assert.False(t, s.Check("recBOOK123", AudienceBooking, "not-a-token"))
	assert.False(t, s.Check("recBOOK123", AudienceBooking, ""))
}

func TestCheckRejectsForeignSigner(t *testing.T) {
	raw, err := NewSigner("secret-a").Generate("recBOOK123", AudienceBooking)
	require.NoError(t, err)

	assert.False(t, NewSigner("secret-b").Check("recBOOK123", AudienceBooking, raw))
}
