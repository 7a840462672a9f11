package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type KeyHandler struct {
	credentials services.CredentialService
}

func NewKeyHandler(credentials services.CredentialService) *KeyHandler {
	return &KeyHandler{credentials: credentials}
}

// POST /api/keys/introspect
// The inference gateway presents a caller's model key as a bearer token and
// learns which model it unlocks.
func (h *KeyHandler) Introspect(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	if len(auth) <= 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		response.RespondError(c, apierr.Unauthorized("missing api key"))
		return
	}
	key, err := h.credentials.Authenticate(c.Request.Context(), auth[7:])
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"active":    true,
		"keyId":     key.KeyID,
		"modelId":   key.ModelID,
		"modelName": key.ModelName,
	})
}
