package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("malformed token")
	ErrBadSignature = errors.New("token signature mismatch")
	ErrExpired      = errors.New("token expired")
)

// Codec signs and verifies HS256 access tokens. It holds no state other
// than the signing secret.
type Codec struct {
	secret []byte
	issuer string
}

func New(secret, issuer string) *Codec {
	return &Codec{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Mint returns a token for subject that expires at now+lifetime.
// Timestamps are truncated to whole seconds.
func (c *Codec) Mint(subject string, now time.Time, lifetime time.Duration) (string, error) {
	claims := jwtlib.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(lifetime)),
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature and expiry as of now and returns the subject.
func (c *Codec) Verify(tokenStr string, now time.Time) (string, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithStrictDecoding(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	}
	if c.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(c.issuer))
	}

	claims := &jwtlib.RegisteredClaims{}
	_, err := jwtlib.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return "", classify(err)
	}
	if claims.Subject == "" {
		return "", ErrMalformed
	}

	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwtlib.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
