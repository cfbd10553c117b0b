package auth

import "context"

type claimsKey struct{}

// SetUserClaims attaches the authenticated caller to ctx
func SetUserClaims(ctx context.Context, claims UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetUserClaims returns the caller set by the auth middleware, or nil
func GetUserClaims(ctx context.Context) UserClaims {
	claims, _ := ctx.Value(claimsKey{}).(UserClaims)
	return claims
}

// OwnerID is the authenticated owner of the request, or "" when unauthenticated
func OwnerID(ctx context.Context) string {
	if claims := GetUserClaims(ctx); claims != nil {
		return claims.UserID()
	}
	return ""
}
