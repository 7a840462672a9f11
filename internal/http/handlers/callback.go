package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type CallbackHandler struct {
	callbacks services.CallbackService
}

func NewCallbackHandler(callbacks services.CallbackService) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

type callbackBody struct {
	Success         *bool  `json:"success" binding:"required"`
	Error           string `json:"error"`
	ExecutionHandle string `json:"executionHandle"`
}

// POST /api/callbacks/finetune/:jobId?token=
func (h *CallbackHandler) FinetuneCallback(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		response.RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	var body callbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondBadRequest(c, "invalid_body", err)
		return
	}
	res, err := h.callbacks.Ingest(c.Request.Context(), jobID, c.Query("token"), services.CallbackSignal{
		Success:         *body.Success,
		Error:           body.Error,
		ExecutionHandle: body.ExecutionHandle,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondStatus(c, http.StatusAccepted, gin.H{
		"accepted":  true,
		"duplicate": res.Duplicate,
		"status":    res.Status,
	})
}
