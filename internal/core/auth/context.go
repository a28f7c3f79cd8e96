// Package auth provides the requester context and ownership checks.
// Identity is established upstream; the engine only reads the forwarded
// requester id.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the requester for a single request.
type Context struct {
	// UserID is the requester's user id (from X-User-ID header)
	UserID int64

	// Authenticated indicates whether a valid requester id was present
	Authenticated bool
}

// HeaderUserID is the header containing the authenticated user's ID.
const HeaderUserID = "X-User-ID"

// =============================================================================
// Context Extraction
// =============================================================================

// ExtractFromRequest extracts the requester from HTTP request headers.
// If X-User-ID header is not present, returns an unauthenticated context.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(headerGetter{r: r})
}

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

type headerGetter struct {
	r *http.Request
}

func (h headerGetter) Get(key string) string {
	return h.r.Header.Get(key)
}

// ExtractFromHeaders extracts the requester using the HeaderGetter interface.
// Missing, non-numeric or non-positive ids yield an unauthenticated context.
func ExtractFromHeaders(headers HeaderGetter) Context {
	raw := strings.TrimSpace(headers.Get(HeaderUserID))
	if raw == "" {
		return Context{Authenticated: false}
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return Context{Authenticated: false}
	}

	return Context{
		UserID:        userID,
		Authenticated: true,
	}
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
