package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/tunebridge-backend/internal/platform/gcp"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/openai"
	"github.com/yungbote/tunebridge-backend/internal/platform/secrets"
	"github.com/yungbote/tunebridge-backend/internal/realtime/bus"
	"github.com/yungbote/tunebridge-backend/internal/temporalx"
)

// Clients holds external connections. Optional ones are nil when their
// configuration is absent.
type Clients struct {
	Cipher   secrets.Cipher
	Executor gcp.Executor
	Store    gcp.ModelStore
	JobBus   bus.Bus
	OpenAI   openai.TextGenerator
	Temporal temporalsdkclient.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	if cfg.EncryptionKey != "" {
		cipher, err := secrets.NewCipher(cfg.EncryptionKey)
		if err != nil {
			return Clients{}, fmt.Errorf("init cipher: %w", err)
		}
		c.Cipher = cipher
	}

	// Cloud Run Jobs
	if cfg.GCPProjectID != "" && cfg.GCPRegion != "" {
		exec, err := gcp.NewRunJobsExecutor(ctx, log, gcp.RunJobsConfig{ProjectID: cfg.GCPProjectID, Region: cfg.GCPRegion})
		if err != nil {
			return Clients{}, fmt.Errorf("init run jobs executor: %w", err)
		}
		c.Executor = exec
	} else {
		log.Warn("GCP_PROJECT_ID or GCP_REGION not set; dispatch will fail jobs as misconfigured")
	}

	// Gcs
	if cfg.ModelBucket != "" {
		store, err := gcp.NewModelStore(ctx, log, cfg.ModelBucket)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init model store: %w", err)
		}
		c.Store = store
	}

	// Redis
	if cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, Channel: cfg.RedisChannel})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis job bus: %w", err)
		}
		c.JobBus = b
	}

	// Openai
	if cfg.OpenAI.APIKey != "" {
		gen, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		c.OpenAI = gen
	} else {
		log.Warn("OPENAI_API_KEY not set; data generation disabled")
	}

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	c.Temporal = tc

	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.JobBus != nil {
		_ = c.JobBus.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}
