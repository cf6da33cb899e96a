package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tacticalpanel/panel/internal/models"
	"github.com/tacticalpanel/panel/internal/services"
	"github.com/tacticalpanel/panel/pkg/errors"
	"github.com/tacticalpanel/panel/pkg/response"
)

// SubAdminHandler exposes sub-admin management to full admins.
type SubAdminHandler struct {
	svc *services.SubAdminService
}

func NewSubAdminHandler(svc *services.SubAdminService) *SubAdminHandler {
	return &SubAdminHandler{svc: svc}
}

type createSubAdminRequest struct {
	Username          string                     `json:"username" validate:"required,min=3,max=64,username"`
	Password          string                     `json:"password" validate:"required"`
	ServerPermissions map[string]map[string]bool `json:"server_permissions"`
}

type updateSubAdminRequest struct {
	Password          *string                    `json:"password"`
	ServerPermissions map[string]map[string]bool `json:"server_permissions"`
}

// POST /api/admin/sub-admins
func (h *SubAdminHandler) Create(c *gin.Context) {
	var req createSubAdminRequest
	if !bindAndValidate(c, &req) {
		return
	}

	perms, err := models.ParseServerPermissions(req.ServerPermissions)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	user, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateSubAdminInput{
		Username:    req.Username,
		Password:    req.Password,
		Permissions: perms,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// GET /api/admin/sub-admins
func (h *SubAdminHandler) List(c *gin.Context) {
	users, err := h.svc.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := make([]userResponse, 0, len(users))
	for i := range users {
		payload = append(payload, newUserResponse(&users[i]))
	}
	response.Success(c, http.StatusOK, payload)
}

// GET /api/admin/sub-admins/:id
func (h *SubAdminHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// PUT /api/admin/sub-admins/:id
func (h *SubAdminHandler) Update(c *gin.Context) {
	var req updateSubAdminRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateSubAdminInput{Password: req.Password}
	if req.ServerPermissions != nil {
		perms, err := models.ParseServerPermissions(req.ServerPermissions)
		if err != nil {
			response.Error(c, errors.NewBadRequest(err.Error()))
			return
		}
		input.Permissions = &perms
	}

	user, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, newUserResponse(user))
}

// DELETE /api/admin/sub-admins/:id
func (h *SubAdminHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Sub-admin deleted", nil)
}
