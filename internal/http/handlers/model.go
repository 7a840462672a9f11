package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type ModelHandler struct {
	models      services.ModelService
	credentials services.CredentialService
}

func NewModelHandler(models services.ModelService, credentials services.CredentialService) *ModelHandler {
	return &ModelHandler{models: models, credentials: credentials}
}

type activateRequest struct {
	VersionID uuid.UUID `json:"versionId" binding:"required"`
}

// GET /api/models
func (h *ModelHandler) ListModels(c *gin.Context) {
	models, err := h.models.ListModels(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"models": models})
}

// GET /api/models/:id
func (h *ModelHandler) GetModel(c *gin.Context) {
	modelID, ok := modelIDParam(c)
	if !ok {
		return
	}
	m, err := h.models.GetModel(c.Request.Context(), ctxutil.UserID(c.Request.Context()), modelID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": m})
}

// POST /api/models/:id/activate
func (h *ModelHandler) ActivateVersion(c *gin.Context) {
	modelID, ok := modelIDParam(c)
	if !ok {
		return
	}
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, "invalid_body", err)
		return
	}
	m, err := h.models.ActivateVersion(c.Request.Context(), ctxutil.UserID(c.Request.Context()), modelID, req.VersionID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"model": m})
}

// GET /api/models/:id/api-key
func (h *ModelHandler) GetAPIKey(c *gin.Context) {
	modelID, ok := modelIDParam(c)
	if !ok {
		return
	}
	key, err := h.credentials.RevealModelKey(c.Request.Context(), ctxutil.UserID(c.Request.Context()), modelID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.RespondOK(c, gin.H{"apiKey": key})
}

// GET /api/models/availability?name=
func (h *ModelHandler) CheckAvailability(c *gin.Context) {
	out, err := h.models.CheckNameAvailability(c.Request.Context(), c.Query("name"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, out)
}

func modelIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, "invalid_model_id", err)
		return uuid.Nil, false
	}
	return id, true
}
