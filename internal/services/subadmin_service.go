package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/auth/password"
	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/pkg/crypto"
	apperrors "github.com/tacticalpanel/panel/pkg/errors"
)

// CreateSubAdminInput describes a new sub-admin.
type CreateSubAdminInput struct {
	Username    string
	Password    string
	Permissions models.ServerPermissions
}

// UpdateSubAdminInput lists the mutable fields; nil fields are left unchanged.
type UpdateSubAdminInput struct {
	Password    *string
	Permissions *models.ServerPermissions
}

// SubAdminService manages sub-admins on behalf of the admin that created them. Every
// operation is scoped to the acting admin; other admins' sub-admins look absent.
type SubAdminService struct {
	db     *gorm.DB
	audit  *AuditService
	policy password.Policy
}

// NewSubAdminService constructs a SubAdminService.
func NewSubAdminService(db *gorm.DB, audit *AuditService, policy password.Policy) (*SubAdminService, error) {
	if db == nil {
		return nil, errors.New("sub-admin service: db is required")
	}
	return &SubAdminService{db: db, audit: audit, policy: policy}, nil
}

// Create provisions a sub-admin whose parent is adminID.
func (s *SubAdminService) Create(ctx context.Context, adminID string, input CreateSubAdminInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	adminID = strings.TrimSpace(adminID)
	if adminID == "" {
		return nil, apperrors.ErrForbidden
	}
	username := normaliseUsername(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if err := password.Check(input.Password, s.policy); err != nil {
		return nil, weakPassword(err)
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("sub-admin service: hash password: %w", err)
	}

	perms := input.Permissions
	if perms == nil {
		perms = models.ServerPermissions{}
	}

	parent := adminID
	user := &models.User{
		Username:      username,
		PasswordHash:  hashed,
		IsSubAdmin:    true,
		ParentAdminID: &parent,
		Permissions:   datatypes.NewJSONType(perms),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("sub-admin service: create: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditSubAdminCreate,
		Resource: user.ID,
		Result:   auditSuccess,
		Metadata: map[string]any{"username": user.Username, "servers": len(perms)},
	})
	return user, nil
}

// List returns the sub-admins created by adminID, ordered by username.
func (s *SubAdminService) List(ctx context.Context, adminID string) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.scoped(ctx, adminID).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("sub-admin service: list: %w", err)
	}
	return users, nil
}

// Get returns one of adminID's sub-admins.
func (s *SubAdminService) Get(ctx context.Context, adminID, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.scoped(ctx, adminID).Where("id = ?", strings.TrimSpace(id)).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubAdminNotFound
		}
		return nil, fmt.Errorf("sub-admin service: get: %w", err)
	}
	return &user, nil
}

// Update changes the permissions and/or password of one of adminID's sub-admins.
func (s *SubAdminService) Update(ctx context.Context, adminID, id string, input UpdateSubAdminInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, adminID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	changed := []string{}
	if input.Password != nil {
		if err := password.Check(*input.Password, s.policy); err != nil {
			return nil, weakPassword(err)
		}
		hashed, err := crypto.HashPassword(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("sub-admin service: hash password: %w", err)
		}
		updates["password_hash"] = hashed
		changed = append(changed, "password")
	}
	if input.Permissions != nil {
		perms := *input.Permissions
		if perms == nil {
			perms = models.ServerPermissions{}
		}
		updates["permissions"] = datatypes.NewJSONType(perms)
		changed = append(changed, "permissions")
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("sub-admin service: update: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditSubAdminUpdate,
		Resource: user.ID,
		Result:   auditSuccess,
		Metadata: map[string]any{"fields": changed},
	})
	return s.Get(ctx, adminID, id)
}

// Delete removes one of adminID's sub-admins. Admin accounts never match the scope.
func (s *SubAdminService) Delete(ctx context.Context, adminID, id string) error {
	ctx = ensureContext(ctx)

	result := s.scoped(ctx, adminID).Where("id = ?", strings.TrimSpace(id)).Delete(&models.User{})
	if result.Error != nil {
		return fmt.Errorf("sub-admin service: delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubAdminNotFound
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditSubAdminDelete,
		Resource: strings.TrimSpace(id),
		Result:   auditSuccess,
	})
	return nil
}

func (s *SubAdminService) scoped(ctx context.Context, adminID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_sub_admin = ? AND is_admin = ? AND parent_admin_id = ?", true, false, strings.TrimSpace(adminID))
}
