package token

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrMissingKey   = errors.New("auth jwt secret is required")
)

// Claims identify the user a token was issued to. Role is informational;
// permissions are resolved from the current user record on every request.
type Claims struct {
	UserID snowflake.ID
	Role   string
}

type customClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Issuer signs and verifies HS256 access tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    clock.Clock
}

func NewIssuer(cfg config.Config, clk clock.Clock) (*Issuer, error) {
	secret := strings.TrimSpace(cfg.AuthJWTSecret)
	if secret == "" {
		return nil, ErrMissingKey
	}
	ttl := cfg.AuthTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   cfg.AuthJWTIssuer,
		audience: cfg.AuthJWTAudience,
		ttl:      ttl,
		clock:    clk,
	}, nil
}

func (i *Issuer) Issue(userID snowflake.ID, role string) (string, time.Time, error) {
	now := i.clock.Now().UTC()
	expiresAt := now.Add(i.ttl)
	claims := customClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (i *Issuer) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	var claims customClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}
	return &Claims{UserID: userID, Role: claims.Role}, nil
}
