package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/internal/services"
	"github.com/tacticalpanel/panel/pkg/response"
)

// ServerHandler exposes server instances; every route is gated by ownership or grants.
type ServerHandler struct {
	svc *services.ServerService
}

func NewServerHandler(svc *services.ServerService) *ServerHandler {
	return &ServerHandler{svc: svc}
}

type createServerRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	GameType    string `json:"game_type" validate:"required,oneof=arma_reforger arma_4"`
	Port        int    `json:"port" validate:"required,gte=1,lte=65535"`
	MaxPlayers  int    `json:"max_players" validate:"required,gte=1,lte=512"`
	InstallPath string `json:"install_path" validate:"required"`
}

type updateServerRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=128"`
	Port        *int    `json:"port" validate:"omitempty,gte=1,lte=65535"`
	MaxPlayers  *int    `json:"max_players" validate:"omitempty,gte=1,lte=512"`
	InstallPath *string `json:"install_path"`
}

// POST /api/servers
func (h *ServerHandler) Create(c *gin.Context) {
	var req createServerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	server, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateServerInput{
		Name:        req.Name,
		GameType:    req.GameType,
		Port:        req.Port,
		MaxPlayers:  req.MaxPlayers,
		InstallPath: req.InstallPath,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, server)
}

// GET /api/servers
func (h *ServerHandler) List(c *gin.Context) {
	servers, err := h.svc.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if servers == nil {
		servers = []models.ServerInstance{}
	}
	response.Success(c, http.StatusOK, servers)
}

// GET /api/servers/:id
func (h *ServerHandler) Get(c *gin.Context) {
	server, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, server)
}

// PATCH /api/servers/:id
func (h *ServerHandler) Update(c *gin.Context) {
	var req updateServerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	server, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateServerInput{
		Name:        req.Name,
		Port:        req.Port,
		MaxPlayers:  req.MaxPlayers,
		InstallPath: req.InstallPath,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, server)
}

// DELETE /api/servers/:id
func (h *ServerHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Server deleted", nil)
}

// POST /api/servers/:id/start
func (h *ServerHandler) Start(c *gin.Context) {
	h.control(c, h.svc.Start, "Server started")
}

// POST /api/servers/:id/stop
func (h *ServerHandler) Stop(c *gin.Context) {
	h.control(c, h.svc.Stop, "Server stopped")
}

// POST /api/servers/:id/restart
func (h *ServerHandler) Restart(c *gin.Context) {
	h.control(c, h.svc.Restart, "Server restarted")
}

type controlFunc func(ctx context.Context, userID, serverID string) (*models.ServerInstance, error)

func (h *ServerHandler) control(c *gin.Context, fn controlFunc, message string) {
	server, err := fn(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, gin.H{"status": server.Status, "server": server})
}
