package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type JobHandler struct {
	admission services.AdmissionService
	jobs      services.JobService
}

func NewJobHandler(admission services.AdmissionService, jobs services.JobService) *JobHandler {
	return &JobHandler{admission: admission, jobs: jobs}
}

// POST /api/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req services.AdmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, "invalid_body", err)
		return
	}
	res, err := h.admission.Admit(c.Request.Context(), ctxutil.UserID(c.Request.Context()), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondStatus(c, http.StatusCreated, gin.H{"job": res})
}

// GET /api/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.ListJobs(c.Request.Context(), ctxutil.UserID(c.Request.Context()))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), ctxutil.UserID(c.Request.Context()), jobID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
