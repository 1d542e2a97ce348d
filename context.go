package authlink

import "context"

type clientIPContextKey struct{}
type claimsContextKey struct{}
type userIDContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records it
// on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithClaims attaches the signed-in principal to ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

// ClaimsFromContext returns the principal stored by [WithClaims], or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(claimsContextKey{}).(*Claims)
	return c
}

// WithUserID attaches the resolved internal user ID to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// UserIDFromContext returns the user ID stored by [WithUserID].
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	userID, _ := ctx.Value(userIDContextKey{}).(string)
	return userID, userID != ""
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
