package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

var (
	ErrMissingSecret    = errors.New("token signing secret is empty")
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
)

// Claim is the identity carried by an access token.
type Claim struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type tokenClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// CodecConfig is built once at startup and never mutated.
type CodecConfig struct {
	Secret    string
	ExpiresIn time.Duration
}

type Codec struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces the wall clock, for issuing and for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}

	expiresIn := cfg.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = DefaultTokenTTL
	}

	c := &Codec{
		secret:    []byte(cfg.Secret),
		expiresIn: expiresIn,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Codec) ExpiresIn() time.Duration {
	return c.expiresIn
}

func (c *Codec) Encode(claim Claim) (string, error) {
	now := c.now().UTC()

	claims := tokenClaims{
		UserID: claim.UserID,
		Email:  claim.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claim.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

func (c *Codec) Decode(tokenStr string) (Claim, error) {
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// Enforce HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	},
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)

	if err != nil {
		return Claim{}, classifyParseError(err)
	}

	if !token.Valid || claims.UserID == "" {
		return Claim{}, ErrMalformed
	}

	return Claim{UserID: claims.UserID, Email: claims.Email}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, ErrInvalidSignature):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
