package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims identifies the caller of an authenticated request
type UserClaims interface {
	UserID() string
	Source() string
}

// JWTClaims is a verified bearer token. The subject is the owner id every
// collector resource is scoped to.
type JWTClaims struct {
	OwnerID   string
	ExpiresAt time.Time
}

func (c *JWTClaims) UserID() string { return c.OwnerID }
func (c *JWTClaims) Source() string { return "JWT" }

var ErrInvalidToken = errors.New("invalid bearer token")

// ParseBearerToken verifies an HS256 token signed with secret and returns its claims.
// Tokens without a subject or expiry are rejected.
func ParseBearerToken(secret []byte, tokenString string, now func() time.Time) (*JWTClaims, error) {
	if now == nil {
		now = time.Now
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	return &JWTClaims{OwnerID: sub, ExpiresAt: exp.Time}, nil
}

// IssueToken signs a bearer token for ownerID valid for ttl
func IssueToken(secret []byte, ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": ownerID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
