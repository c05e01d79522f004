package token

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIssuer(t *testing.T, fc clock.Clock, secret string) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(config.Config{
		AuthJWTSecret:   secret,
		AuthJWTIssuer:   "visadesk",
		AuthJWTAudience: "visadesk-admin",
		AuthTokenTTL:    time.Hour,
	}, fc)
	require.NoError(t, err)
	return issuer
}

func TestIssueAndParse(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	issuer := newIssuer(t, fc, "secret")

	raw, expiresAt, err := issuer.Issue(snowflake.ID(1234), "admin")
	require.NoError(t, err)
	assert.Equal(t, fc.Now().Add(time.Hour), expiresAt)

	claims, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(1234), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	issuer := newIssuer(t, fc, "secret")

	raw, _, err := issuer.Issue(snowflake.ID(1), "admin")
	require.NoError(t, err)

	other := newIssuer(t, fc, "another-secret")
	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	fc.Advance(2 * time.Hour)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	_, err := NewIssuer(config.Config{}, clock.New())
	assert.ErrorIs(t, err, ErrMissingKey)
}
