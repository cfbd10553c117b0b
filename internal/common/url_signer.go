package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const usedTokenPrefix = "used_token:"

// SignedToken is a validated single-use attachment download token
type SignedToken struct {
	OwnerID        string
	RecordUUID     string
	AttachmentUUID string
	TokenID        string
	ExpiresAt      time.Time
}

// URLSignerService issues and checks presigned attachment download tokens.
// Used token ids are remembered in the cache until they expire.
type URLSignerService struct {
	secretKey []byte
	used      CacheInterface
	now       func() time.Time
}

func NewURLSignerService(secretKey []byte, used CacheInterface) *URLSignerService {
	return &URLSignerService{
		secretKey: secretKey,
		used:      used,
		now:       time.Now,
	}
}

// GeneratePresignedToken signs a token granting one download of one attachment
func (s *URLSignerService) GeneratePresignedToken(ownerID, recordUUID, attachmentUUID string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": ownerID,
		"rec": recordUUID,
		"att": attachmentUUID,
		"jti": uuid.NewString(),
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken checks signature, expiry and prior use
func (s *URLSignerService) ValidateToken(ctx context.Context, tokenString string) (*SignedToken, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	signed := &SignedToken{}
	for claim, dst := range map[string]*string{
		"sub": &signed.OwnerID,
		"rec": &signed.RecordUUID,
		"att": &signed.AttachmentUUID,
		"jti": &signed.TokenID,
	} {
		v, ok := (*claims)[claim].(string)
		if !ok || v == "" {
			return nil, fmt.Errorf("missing or invalid %s claim", claim)
		}
		*dst = v
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("missing or invalid exp claim")
	}
	signed.ExpiresAt = exp.Time

	if s.IsTokenUsed(ctx, signed.TokenID) {
		return nil, errors.New("token already used")
	}
	return signed, nil
}

// MarkTokenAsUsed enforces single use until the token would have expired anyway
func (s *URLSignerService) MarkTokenAsUsed(ctx context.Context, token *SignedToken) {
	ttl := token.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	s.used.Set(ctx, usedTokenPrefix+token.TokenID, []byte("1"), ttl)
}

func (s *URLSignerService) IsTokenUsed(ctx context.Context, tokenID string) bool {
	_, found := s.used.Get(ctx, usedTokenPrefix+tokenID)
	return found
}
