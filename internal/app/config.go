package app

import (
	"strings"
	"time"

	"github.com/yungbote/tunebridge-backend/internal/data/db"
	"github.com/yungbote/tunebridge-backend/internal/observability"
	"github.com/yungbote/tunebridge-backend/internal/platform/envutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/openai"
	"github.com/yungbote/tunebridge-backend/internal/services"
	"github.com/yungbote/tunebridge-backend/internal/temporalx"
)

type Config struct {
	Port    string
	LogMode string

	RunServer bool
	RunWorker bool

	DB       db.Config
	Temporal temporalx.Config
	OpenAI   openai.Config
	Otel     observability.OtelConfig

	JWTSecretKey string
	JWTIssuer    string
	CORSOrigins  []string

	PublicBaseURL    string
	InferenceBaseURL string
	EncryptionKey    string

	GCPProjectID   string
	GCPRegion      string
	RunJobName     string
	ModelBucket    string
	AdmitAttempts  int
	ShutdownPeriod time.Duration

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	Reconciler services.ReconcilerConfig

	DatagenTimeout   time.Duration
	DatagenRolesPath string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		DB:       db.ConfigFromEnv(),
		Temporal: temporalx.LoadConfig(),
		OpenAI:   openai.ConfigFromEnv(),
		Otel:     observability.OtelConfigFromEnv(),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:    envutil.String("JWT_ISSUER", ""),
		CORSOrigins:  splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		PublicBaseURL:    strings.TrimRight(envutil.String("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		InferenceBaseURL: strings.TrimRight(envutil.String("INFERENCE_BASE_URL", ""), "/"),
		EncryptionKey:    envutil.String("SECRET_ENCRYPTION_KEY", ""),

		GCPProjectID:   envutil.String("GCP_PROJECT_ID", ""),
		GCPRegion:      envutil.String("GCP_REGION", ""),
		RunJobName:     envutil.String("FINETUNE_RUN_JOB_NAME", "finetune-trainer"),
		ModelBucket:    envutil.String("MODEL_GCS_BUCKET_NAME", ""),
		AdmitAttempts:  envutil.Int("ADMISSION_MAX_ATTEMPTS", 5),
		ShutdownPeriod: envutil.Seconds("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "finetune-jobs"),

		Reconciler: services.ReconcilerConfig{
			Schedule:    envutil.String("RECONCILER_SCHEDULE", "@every 1m"),
			StaleAfter:  envutil.Seconds("RECONCILER_STALE_AFTER_SECONDS", 120),
			MaxAttempts: envutil.Int("DISPATCH_MAX_ATTEMPTS", 5),
			BatchSize:   envutil.Int("RECONCILER_BATCH_SIZE", 50),
		},

		DatagenTimeout:   envutil.Seconds("DATAGEN_TIMEOUT_SECONDS", 90),
		DatagenRolesPath: envutil.String("DATAGEN_ROLES_PATH", ""),
	}

	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; every authenticated route will reject callers")
	}
	if cfg.EncryptionKey == "" {
		log.Warn("SECRET_ENCRYPTION_KEY not set; api keys cannot be issued")
	}
	if !cfg.RunServer && !cfg.RunWorker {
		log.Warn("RUN_SERVER and RUN_WORKER both false; nothing to run")
	}
	return cfg
}

func (c Config) Production() bool {
	switch strings.ToLower(strings.TrimSpace(c.LogMode)) {
	case "prod", "production":
		return true
	}
	return false
}

// InlineMode reports whether runs are dispatched in-process instead of
// through the workflow engine.
func (c Config) InlineMode() bool { return !c.Temporal.Enabled() }

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
