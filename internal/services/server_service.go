package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/internal/permissions"
	apperrors "github.com/tacticalpanel/panel/pkg/errors"
)

// CreateServerInput describes a new server instance.
type CreateServerInput struct {
	Name        string
	GameType    string
	Port        int
	MaxPlayers  int
	InstallPath string
}

// UpdateServerInput lists the mutable fields; nil fields are left unchanged.
type UpdateServerInput struct {
	Name        *string
	Port        *int
	MaxPlayers  *int
	InstallPath *string
}

// ServerService manages server instances and gates every access through the resolver.
// Servers the caller may not see are reported as missing.
type ServerService struct {
	db       *gorm.DB
	resolver *permissions.Resolver
	audit    *AuditService
}

// NewServerService constructs a ServerService.
func NewServerService(db *gorm.DB, resolver *permissions.Resolver, audit *AuditService) (*ServerService, error) {
	if db == nil {
		return nil, errors.New("server service: db is required")
	}
	if resolver == nil {
		return nil, errors.New("server service: resolver is required")
	}
	return &ServerService{db: db, resolver: resolver, audit: audit}, nil
}

// Create registers a server owned by userID. New servers start offline.
func (s *ServerService) Create(ctx context.Context, userID string, input CreateServerInput) (*models.ServerInstance, error) {
	ctx = ensureContext(ctx)

	if _, err := s.principal(ctx, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if !isKnownGame(input.GameType) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unsupported game type %q", input.GameType))
	}
	if err := validatePort(input.Port); err != nil {
		return nil, err
	}
	if input.MaxPlayers < 1 {
		return nil, apperrors.NewBadRequest("max_players must be at least 1")
	}
	installPath := strings.TrimSpace(input.InstallPath)
	if installPath == "" {
		return nil, apperrors.NewBadRequest("install_path is required")
	}

	server := &models.ServerInstance{
		Name:        name,
		GameType:    input.GameType,
		Port:        input.Port,
		MaxPlayers:  input.MaxPlayers,
		Status:      models.ServerOffline,
		InstallPath: installPath,
		OwnerID:     userID,
	}
	if err := s.db.WithContext(ctx).Create(server).Error; err != nil {
		return nil, fmt.Errorf("server service: create: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditServerCreate,
		Resource: server.ID,
		Result:   auditSuccess,
		Metadata: map[string]any{"name": server.Name, "game_type": server.GameType},
	})
	return server, nil
}

// List returns the servers userID may view: everything for admins, owned plus granted
// servers for sub-admins, owned servers otherwise.
func (s *ServerService) List(ctx context.Context, userID string) ([]models.ServerInstance, error) {
	ctx = ensureContext(ctx)

	role, err := s.principal(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.ServerInstance{}).Order("created_at ASC")
	switch r := role.(type) {
	case permissions.AdminRole:
	case permissions.SubAdminRole:
		visible := make([]string, 0, len(r.Grants))
		for _, id := range sortedKeys(r.Grants) {
			if r.Grants[id].View {
				visible = append(visible, id)
			}
		}
		if len(visible) > 0 {
			query = query.Where("owner_id = ? OR id IN ?", userID, visible)
		} else {
			query = query.Where("owner_id = ?", userID)
		}
	default:
		query = query.Where("owner_id = ?", userID)
	}

	var servers []models.ServerInstance
	if err := query.Find(&servers).Error; err != nil {
		return nil, fmt.Errorf("server service: list: %w", err)
	}
	return servers, nil
}

// Get returns a server the caller may view.
func (s *ServerService) Get(ctx context.Context, userID, serverID string) (*models.ServerInstance, error) {
	return s.access(ensureContext(ctx), userID, serverID, models.ActionView)
}

// Update edits a server the caller may edit.
func (s *ServerService) Update(ctx context.Context, userID, serverID string, input UpdateServerInput) (*models.ServerInstance, error) {
	ctx = ensureContext(ctx)

	server, err := s.access(ctx, userID, serverID, models.ActionEdit)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("name must not be empty")
		}
		updates["name"] = name
	}
	if input.Port != nil {
		if err := validatePort(*input.Port); err != nil {
			return nil, err
		}
		updates["port"] = *input.Port
	}
	if input.MaxPlayers != nil {
		if *input.MaxPlayers < 1 {
			return nil, apperrors.NewBadRequest("max_players must be at least 1")
		}
		updates["max_players"] = *input.MaxPlayers
	}
	if input.InstallPath != nil {
		path := strings.TrimSpace(*input.InstallPath)
		if path == "" {
			return nil, apperrors.NewBadRequest("install_path must not be empty")
		}
		updates["install_path"] = path
	}
	if len(updates) == 0 {
		return server, nil
	}

	if err := s.db.WithContext(ctx).Model(server).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("server service: update: %w", err)
	}
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditServerUpdate,
		Resource: server.ID,
		Result:   auditSuccess,
		Metadata: map[string]any{"fields": sortedKeys(updates)},
	})
	return s.find(ctx, server.ID)
}

// Delete removes a server. Only the owner or a full admin may delete.
func (s *ServerService) Delete(ctx context.Context, userID, serverID string) error {
	ctx = ensureContext(ctx)

	role, err := s.principal(ctx, userID)
	if err != nil {
		return err
	}
	server, err := s.find(ctx, serverID)
	if err != nil {
		return err
	}
	if _, admin := role.(permissions.AdminRole); !admin && server.OwnerID != userID {
		return ErrServerNotFound
	}

	if err := s.db.WithContext(ctx).Delete(server).Error; err != nil {
		return fmt.Errorf("server service: delete: %w", err)
	}
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditServerDelete,
		Resource: server.ID,
		Result:   auditSuccess,
	})
	return nil
}

// Start marks a server online. No process is spawned.
func (s *ServerService) Start(ctx context.Context, userID, serverID string) (*models.ServerInstance, error) {
	return s.transition(ensureContext(ctx), userID, serverID, models.ActionStart)
}

// Stop marks a server offline.
func (s *ServerService) Stop(ctx context.Context, userID, serverID string) (*models.ServerInstance, error) {
	return s.transition(ensureContext(ctx), userID, serverID, models.ActionStop)
}

// Restart passes the server through restarting and back to online.
func (s *ServerService) Restart(ctx context.Context, userID, serverID string) (*models.ServerInstance, error) {
	return s.transition(ensureContext(ctx), userID, serverID, models.ActionRestart)
}

func (s *ServerService) transition(ctx context.Context, userID, serverID, action string) (*models.ServerInstance, error) {
	server, err := s.access(ctx, userID, serverID, action)
	if err != nil {
		return nil, err
	}

	from := server.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch action {
		case models.ActionStart:
			return setStatus(tx, server, models.ServerOnline)
		case models.ActionStop:
			return setStatus(tx, server, models.ServerOffline)
		default:
			if err := setStatus(tx, server, models.ServerRestarting); err != nil {
				return err
			}
			return setStatus(tx, server, models.ServerOnline)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("server service: %s: %w", action, err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		Action:   AuditServerControl,
		Resource: server.ID,
		Result:   auditSuccess,
		Metadata: map[string]any{"action": action, "from": from, "to": server.Status},
	})
	return server, nil
}

// access loads a server and checks action for the caller. Owners may do anything with their
// own servers; everyone else goes through the resolver. Denials look like absence.
func (s *ServerService) access(ctx context.Context, userID, serverID, action string) (*models.ServerInstance, error) {
	role, err := s.principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	server, err := s.find(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if server.OwnerID == userID {
		return server, nil
	}
	if !s.resolver.Decide(role, server.ID, action) {
		return nil, ErrServerNotFound
	}
	return server, nil
}

// principal loads the caller's role. A token whose user has since been deleted
// authenticates nobody.
func (s *ServerService) principal(ctx context.Context, userID string) (permissions.Role, error) {
	role, err := s.resolver.RoleFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, apperrors.ErrUnauthorized
	}
	return role, nil
}

func (s *ServerService) find(ctx context.Context, serverID string) (*models.ServerInstance, error) {
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, ErrServerNotFound
	}

	var server models.ServerInstance
	if err := s.db.WithContext(ctx).Take(&server, "id = ?", serverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("server service: load: %w", err)
	}
	return &server, nil
}

func setStatus(tx *gorm.DB, server *models.ServerInstance, status string) error {
	updates := map[string]any{"status": status}
	if status != models.ServerOnline {
		updates["current_players"] = 0
	}
	if err := tx.Model(server).Updates(updates).Error; err != nil {
		return err
	}
	server.Status = status
	if status != models.ServerOnline {
		server.CurrentPlayers = 0
	}
	return nil
}

func isKnownGame(game string) bool {
	switch game {
	case models.GameArmaReforger, models.GameArma4:
		return true
	default:
		return false
	}
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return apperrors.NewBadRequest("port must be between 1 and 65535")
	}
	return nil
}
