// Package auditctx carries request-scoped actor details from the HTTP layer into services.
package auditctx

import (
	"context"
	"strings"
)

// Actor describes who issued a request and from where.
type Actor struct {
	UserID    string
	Username  string
	IPAddress string
	UserAgent string
}

type actorContextKey struct{}

// WithActor stores actor in ctx, replacing any previous actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// WithClient records the caller's address and user agent, keeping any identity already present.
func WithClient(ctx context.Context, ipAddress, userAgent string) context.Context {
	actor, _ := FromContext(ctx)
	actor.IPAddress = strings.TrimSpace(ipAddress)
	actor.UserAgent = strings.TrimSpace(userAgent)
	return WithActor(ctx, actor)
}

// WithIdentity records the authenticated user, keeping any client details already present.
func WithIdentity(ctx context.Context, userID, username string) context.Context {
	actor, _ := FromContext(ctx)
	actor.UserID = userID
	actor.Username = username
	return WithActor(ctx, actor)
}

// FromContext extracts the actor stored by WithActor, WithClient or WithIdentity.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
