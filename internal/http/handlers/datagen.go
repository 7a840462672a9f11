package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/modules/datagen"
)

// ExampleGenerator produces training examples for a prompt.
type ExampleGenerator interface {
	Generate(ctx context.Context, req datagen.GenerateRequest) ([]datagen.TrainingExample, error)
}

type DatagenHandler struct {
	gen ExampleGenerator
}

func NewDatagenHandler(gen ExampleGenerator) *DatagenHandler {
	return &DatagenHandler{gen: gen}
}

// POST /api/datagen
func (h *DatagenHandler) Generate(c *gin.Context) {
	var req datagen.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, "invalid_body", err)
		return
	}
	examples, err := h.gen.Generate(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"examples": examples, "count": len(examples)})
}
