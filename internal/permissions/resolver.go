package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/pkg/metrics"
)

// Resolver answers authorization questions from the stored user record.
type Resolver struct {
	db *gorm.DB
}

// NewResolver constructs a resolver backed by the provided database.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("permission resolver: db is required")
	}
	return &Resolver{db: db}, nil
}

// RoleFor loads the user's role. A missing user yields (nil, nil).
func (r *Resolver) RoleFor(ctx context.Context, userID string) (Role, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Select("id", "is_admin", "is_sub_admin", "parent_admin_id", "permissions").
		Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission resolver: load user: %w", err)
	}
	return RoleOf(&user), nil
}

// CanPerform reports whether the user may perform action on the server. It performs one
// read and never mutates. Unknown users and unknown actions are denied.
func (r *Resolver) CanPerform(ctx context.Context, userID, serverID, action string) (bool, error) {
	if !models.IsKnownAction(action) {
		metrics.PermissionChecks.WithLabelValues("unknown", "deny").Inc()
		return false, nil
	}

	role, err := r.RoleFor(ctx, userID)
	if err != nil {
		metrics.PermissionChecks.WithLabelValues(action, "error").Inc()
		return false, err
	}
	return r.Decide(role, serverID, action), nil
}

// Decide is CanPerform for a role the caller already loaded. A nil role is denied.
func (r *Resolver) Decide(role Role, serverID, action string) bool {
	if !models.IsKnownAction(action) {
		metrics.PermissionChecks.WithLabelValues("unknown", "deny").Inc()
		return false
	}
	allowed := role != nil && Allows(role, serverID, action)
	metrics.PermissionChecks.WithLabelValues(action, result(allowed)).Inc()
	return allowed
}

// IsAdmin reports whether the user is a full admin. Sub-admins are not.
func (r *Resolver) IsAdmin(ctx context.Context, userID string) (bool, error) {
	role, err := r.RoleFor(ctx, userID)
	if err != nil {
		return false, err
	}
	_, ok := role.(AdminRole)
	return ok, nil
}

func result(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
