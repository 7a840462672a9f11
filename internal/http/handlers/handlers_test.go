package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/http/response"
	"github.com/yungbote/tunebridge-backend/internal/modules/datagen"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/ctxutil"
	"github.com/yungbote/tunebridge-backend/internal/services"
)

type fakeAdmission struct {
	gotUser uuid.UUID
	gotReq  services.AdmitRequest
	res     *services.AdmitResult
	err     error
}

func (f *fakeAdmission) Admit(_ context.Context, userID uuid.UUID, req services.AdmitRequest) (*services.AdmitResult, error) {
	f.gotUser, f.gotReq = userID, req
	return f.res, f.err
}

type fakeJobs struct {
	job  *types.FineTuneJob
	list []*types.FineTuneJob
	err  error
}

func (f *fakeJobs) GetJob(context.Context, uuid.UUID, uuid.UUID) (*types.FineTuneJob, error) {
	return f.job, f.err
}

func (f *fakeJobs) ListJobs(context.Context, uuid.UUID) ([]*types.FineTuneJob, error) {
	return f.list, f.err
}

type fakeModels struct {
	model     *types.Model
	activated uuid.UUID
	avail     *services.NameAvailability
	err       error
}

func (f *fakeModels) ListModels(context.Context, uuid.UUID) ([]*types.Model, error) {
	if f.model == nil {
		return []*types.Model{}, f.err
	}
	return []*types.Model{f.model}, f.err
}

func (f *fakeModels) GetModel(context.Context, uuid.UUID, uuid.UUID) (*types.Model, error) {
	return f.model, f.err
}

func (f *fakeModels) ActivateVersion(_ context.Context, _ uuid.UUID, _ uuid.UUID, versionID uuid.UUID) (*types.Model, error) {
	f.activated = versionID
	return f.model, f.err
}

func (f *fakeModels) CheckNameAvailability(_ context.Context, name string) (*services.NameAvailability, error) {
	if f.avail != nil {
		return f.avail, f.err
	}
	return &services.NameAvailability{Name: name, Available: true}, f.err
}

type fakeCredentials struct {
	revealed *services.RevealedKey
	key      *types.APIKey
	gotKey   string
	err      error
}

func (f *fakeCredentials) EnsureModelKey(context.Context, uuid.UUID) (*types.APIKey, bool, error) {
	return f.key, false, f.err
}

func (f *fakeCredentials) RevealModelKey(context.Context, uuid.UUID, uuid.UUID) (*services.RevealedKey, error) {
	return f.revealed, f.err
}

func (f *fakeCredentials) Authenticate(_ context.Context, secret string) (*types.APIKey, error) {
	f.gotKey = secret
	return f.key, f.err
}

type fakeCallbacks struct {
	gotToken string
	gotSig   services.CallbackSignal
	res      *services.CallbackResult
	err      error
}

func (f *fakeCallbacks) Ingest(_ context.Context, jobID uuid.UUID, token string, sig services.CallbackSignal) (*services.CallbackResult, error) {
	f.gotToken, f.gotSig = token, sig
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &services.CallbackResult{JobID: jobID, Status: "completed"}, nil
}

type fakeGenerator struct {
	got datagen.GenerateRequest
	out []datagen.TrainingExample
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req datagen.GenerateRequest) ([]datagen.TrainingExample, error) {
	f.got = req
	return f.out, f.err
}

var testUser = uuid.MustParse("7d1f2a57-54b4-4c1c-9d0a-3f3b8a1c2e11")

// withUser stands in for the auth middleware.
func withUser(c *gin.Context) {
	ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: testUser})
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

func serve(r *gin.Engine, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withUser)
	return r
}

func TestCreateJobReturnsCreated(t *testing.T) {
	adm := &fakeAdmission{res: &services.AdmitResult{JobID: uuid.New(), VersionNumber: 1, VersionLabel: "v1", Status: "queued"}}
	h := NewJobHandler(adm, &fakeJobs{})
	r := newEngine()
	r.POST("/api/jobs", h.CreateJob)

	rec := serve(r, http.MethodPost, "/api/jobs", map[string]any{
		"modelName": "support-bot",
		"baseModel": "llama-3-8b",
		"hyperparameters": map[string]any{"epochs": 3},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, testUser, adm.gotUser)
	require.Equal(t, "support-bot", adm.gotReq.ModelName)

	var out struct {
		Job services.AdmitResult `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "v1", out.Job.VersionLabel)
}

func TestCreateJobConflict(t *testing.T) {
	adm := &fakeAdmission{err: apierr.Conflict("job_in_progress", "a job is already queued or running")}
	h := NewJobHandler(adm, &fakeJobs{})
	r := newEngine()
	r.POST("/api/jobs", h.CreateJob)

	rec := serve(r, http.MethodPost, "/api/jobs", map[string]any{"modelName": "m", "baseModel": "b"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "job_in_progress", body.Error)
	require.Equal(t, http.StatusConflict, body.StatusCode)
}

func TestCreateJobRejectsMalformedBody(t *testing.T) {
	h := NewJobHandler(&fakeAdmission{}, &fakeJobs{})
	r := newEngine()
	r.POST("/api/jobs", h.CreateJob)

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_body", decodeError(t, rec).Error)
}

func TestGetJob(t *testing.T) {
	job := &types.FineTuneJob{ID: uuid.New(), Status: "running"}
	h := NewJobHandler(&fakeAdmission{}, &fakeJobs{job: job})
	r := newEngine()
	r.GET("/api/jobs/:id", h.GetJob)

	rec := serve(r, http.MethodGet, "/api/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"running"`)

	rec = serve(r, http.MethodGet, "/api/jobs/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_job_id", decodeError(t, rec).Error)
}

func TestGetJobNotFound(t *testing.T) {
	h := NewJobHandler(&fakeAdmission{}, &fakeJobs{err: apierr.NotFound("job_not_found", "job not found")})
	r := newEngine()
	r.GET("/api/jobs/:id", h.GetJob)

	rec := serve(r, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "job_not_found", decodeError(t, rec).Error)
}

func TestModelRoutes(t *testing.T) {
	model := &types.Model{ID: uuid.New(), Name: "support-bot"}
	models := &fakeModels{model: model}
	creds := &fakeCredentials{revealed: &services.RevealedKey{KeyID: "tb_abc", Secret: "tb_abc.s3cr3t", ModelID: model.ID}}
	h := NewModelHandler(models, creds)
	r := newEngine()
	r.GET("/api/models", h.ListModels)
	r.GET("/api/models/availability", h.CheckAvailability)
	r.GET("/api/models/:id", h.GetModel)
	r.POST("/api/models/:id/activate", h.ActivateVersion)
	r.GET("/api/models/:id/api-key", h.GetAPIKey)

	rec := serve(r, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "support-bot")

	versionID := uuid.New()
	rec = serve(r, http.MethodPost, "/api/models/"+model.ID.String()+"/activate", map[string]any{"versionId": versionID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, versionID, models.activated)

	rec = serve(r, http.MethodPost, "/api/models/"+model.ID.String()+"/activate", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, http.MethodGet, "/api/models/"+model.ID.String()+"/api-key", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Contains(t, rec.Body.String(), "tb_abc.s3cr3t")

	rec = serve(r, http.MethodGet, "/api/models/availability?name=support-bot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail services.NameAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avail))
	require.True(t, avail.Available)
	require.Equal(t, "support-bot", avail.Name)
}

func TestActivateVersionNotReady(t *testing.T) {
	models := &fakeModels{err: apierr.Conflict("version_not_ready", "version is not ready")}
	h := NewModelHandler(models, &fakeCredentials{})
	r := newEngine()
	r.POST("/api/models/:id/activate", h.ActivateVersion)

	rec := serve(r, http.MethodPost, "/api/models/"+uuid.NewString()+"/activate", map[string]any{"versionId": uuid.New()})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "version_not_ready", decodeError(t, rec).Error)
}

func TestFinetuneCallbackAccepted(t *testing.T) {
	cb := &fakeCallbacks{res: &services.CallbackResult{Duplicate: true, Status: "completed"}}
	h := NewCallbackHandler(cb)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/callbacks/finetune/:jobId", h.FinetuneCallback)

	rec := serve(r, http.MethodPost, "/api/callbacks/finetune/"+uuid.NewString()+"?token=tok", map[string]any{"success": true})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "tok", cb.gotToken)
	require.True(t, cb.gotSig.Success)

	var out struct {
		Accepted  bool `json:"accepted"`
		Duplicate bool `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Accepted)
	require.True(t, out.Duplicate)
}

func TestFinetuneCallbackRequiresSuccessField(t *testing.T) {
	h := NewCallbackHandler(&fakeCallbacks{})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/callbacks/finetune/:jobId", h.FinetuneCallback)

	rec := serve(r, http.MethodPost, "/api/callbacks/finetune/"+uuid.NewString()+"?token=tok", map[string]any{"error": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinetuneCallbackForbidden(t *testing.T) {
	h := NewCallbackHandler(&fakeCallbacks{err: apierr.Forbidden("invalid callback token")})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/callbacks/finetune/:jobId", h.FinetuneCallback)

	rec := serve(r, http.MethodPost, "/api/callbacks/finetune/"+uuid.NewString()+"?token=bad", map[string]any{"success": false, "error": "oom"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, http.StatusForbidden, decodeError(t, rec).StatusCode)
}

func TestDatagenGenerate(t *testing.T) {
	gen := &fakeGenerator{out: []datagen.TrainingExample{{Input: "hi", Output: "hello"}}}
	h := NewDatagenHandler(gen)
	r := newEngine()
	r.POST("/api/datagen", h.Generate)

	rec := serve(r, http.MethodPost, "/api/datagen", map[string]any{
		"prompt": "customer support", "totalExamples": 10, "numAgents": 2, "diverse": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, datagen.GenerateRequest{Prompt: "customer support", TotalExamples: 10, NumAgents: 2, Diverse: true}, gen.got)

	var out struct {
		Examples []datagen.TrainingExample `json:"examples"`
		Count    int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, 1, out.Count)
	require.Equal(t, "hello", out.Examples[0].Output)
}

func TestDatagenTimeout(t *testing.T) {
	h := NewDatagenHandler(&fakeGenerator{err: apierr.Timeout("generation timed out")})
	r := newEngine()
	r.POST("/api/datagen", h.Generate)

	rec := serve(r, http.MethodPost, "/api/datagen", map[string]any{"prompt": "x", "totalExamples": 1, "numAgents": 1})
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.Equal(t, "timeout", decodeError(t, rec).Error)
}

func TestKeyIntrospect(t *testing.T) {
	modelID := uuid.New()
	creds := &fakeCredentials{key: &types.APIKey{KeyID: "tb_abc", ModelID: modelID, ModelName: "support-bot"}}
	h := NewKeyHandler(creds)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/keys/introspect", h.Introspect)

	rec := serve(r, http.MethodPost, "/api/keys/introspect", nil, "Authorization", "Bearer tb_abc.secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "tb_abc.secret", creds.gotKey)
	require.Contains(t, rec.Body.String(), modelID.String())

	rec = serve(r, http.MethodPost, "/api/keys/introspect", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	creds.err = apierr.Unauthorized("invalid api key")
	rec = serve(r, http.MethodPost, "/api/keys/introspect", nil, "Authorization", "Bearer nope")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHealthHandler(func(context.Context) error { return errors.New("db down") })
	r.GET("/healthcheck", h.HealthCheck)
	r.GET("/readyz", h.Ready)

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthcheck", nil).Code)
	require.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/readyz", nil).Code)
}
