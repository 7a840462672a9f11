package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/tunebridge-backend/internal/data/repos"
	"github.com/yungbote/tunebridge-backend/internal/data/txn"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/apierr"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
	"github.com/yungbote/tunebridge-backend/internal/platform/secrets"
)

// RevealedKey is what the owner sees for a model's credential.
type RevealedKey struct {
	KeyID             string     `json:"keyId"`
	Secret            string     `json:"secret"`
	ModelID           uuid.UUID  `json:"modelId"`
	ModelName         string     `json:"modelName"`
	InferenceEndpoint string     `json:"inferenceEndpoint,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	LastUsedAt        *time.Time `json:"lastUsedAt,omitempty"`
}

type CredentialService interface {
	// EnsureModelKey returns the model's active key, creating it on first use.
	// The bool reports whether this call created it.
	EnsureModelKey(ctx context.Context, modelID uuid.UUID) (*types.APIKey, bool, error)
	RevealModelKey(ctx context.Context, userID, modelID uuid.UUID) (*RevealedKey, error)
	// Authenticate resolves a presented secret to its active key.
	Authenticate(ctx context.Context, secret string) (*types.APIKey, error)
}

type credentialService struct {
	log              *logger.Logger
	repos            repos.Set
	runner           txn.Runner
	cipher           secrets.Cipher
	inferenceBaseURL string
}

func NewCredentialService(log *logger.Logger, set repos.Set, runner txn.Runner, cipher secrets.Cipher, inferenceBaseURL string) CredentialService {
	return &credentialService{
		log:              log.With("service", "CredentialService"),
		repos:            set,
		runner:           runner,
		cipher:           cipher,
		inferenceBaseURL: strings.TrimRight(strings.TrimSpace(inferenceBaseURL), "/"),
	}
}

// InferenceEndpoint is the serving address for a model name.
func InferenceEndpoint(baseURL, modelName string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/v1/models/" + modelName
}

func (s *credentialService) EnsureModelKey(ctx context.Context, modelID uuid.UUID) (*types.APIKey, bool, error) {
	if s.cipher == nil {
		return nil, false, apierr.Fatal(errors.New("SECRET_ENCRYPTION_KEY is not configured"))
	}
	var (
		key     *types.APIKey
		created bool
	)
	err := s.runner.InTx(ctx, func(dbc dbctx.Context) error {
		existing, err := s.repos.APIKeys.GetActiveForModel(dbc, modelID)
		if err != nil {
			return fmt.Errorf("load active key: %w", err)
		}
		if existing != nil {
			key = existing
			return nil
		}
		model, err := s.repos.Models.GetByID(dbc, modelID)
		if err != nil {
			return fmt.Errorf("load model: %w", err)
		}
		if model == nil {
			return apierr.Fatal(fmt.Errorf("model %s not found", modelID))
		}

		gen, err := secrets.GenerateAPIKey()
		if err != nil {
			return err
		}
		enc, err := s.cipher.Encrypt(gen.Secret)
		if err != nil {
			return fmt.Errorf("encrypt key: %w", err)
		}
		now := time.Now().UTC()
		key = &types.APIKey{
			ID:              uuid.New(),
			KeyID:           gen.KeyID,
			Fingerprint:     gen.Fingerprint,
			SecretHash:      gen.Hash,
			EncryptedSecret: enc,
			OwnerUserID:     model.OwnerUserID,
			ModelID:         model.ID,
			ModelName:       model.Name,
			Type:            types.APIKeyTypeModel,
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repos.APIKeys.Create(dbc, key); err != nil {
			return err
		}
		updates := map[string]interface{}{"api_key_id": key.ID}
		if ep := InferenceEndpoint(s.inferenceBaseURL, model.Name); ep != "" {
			updates["inference_endpoint"] = ep
		}
		if err := s.repos.Models.UpdateFields(dbc, model.ID, updates); err != nil {
			return fmt.Errorf("link key to model: %w", err)
		}
		created = true
		return nil
	})
	if err != nil && txn.IsUniqueViolation(err) {
		// Lost a race with a concurrent provisioner; its key is the one.
		existing, gerr := s.repos.APIKeys.GetActiveForModel(dbctx.Context{Ctx: ctx}, modelID)
		if gerr == nil && existing != nil {
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("model api key issued", "model_id", modelID, "key_id", key.KeyID)
	}
	return key, created, nil
}

func (s *credentialService) RevealModelKey(ctx context.Context, userID, modelID uuid.UUID) (*RevealedKey, error) {
	dbc := dbctx.Context{Ctx: ctx}
	model, err := s.repos.Models.GetByID(dbc, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, apierr.NotFound("model_not_found", "model %s not found", modelID)
	}
	if model.OwnerUserID != userID {
		return nil, apierr.Forbidden("model belongs to another user")
	}
	key, err := s.repos.APIKeys.GetActiveForModel(dbc, modelID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, apierr.NotFound("api_key_not_found", "model %s has no api key yet", model.Name)
	}
	if s.cipher == nil {
		return nil, apierr.Fatal(errors.New("SECRET_ENCRYPTION_KEY is not configured"))
	}
	secret, err := s.cipher.Decrypt(key.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt key %s: %w", key.KeyID, err)
	}
	return &RevealedKey{
		KeyID:             key.KeyID,
		Secret:            secret,
		ModelID:           model.ID,
		ModelName:         model.Name,
		InferenceEndpoint: model.InferenceEndpoint,
		CreatedAt:         key.CreatedAt,
		LastUsedAt:        key.LastUsedAt,
	}, nil
}

func (s *credentialService) Authenticate(ctx context.Context, secret string) (*types.APIKey, error) {
	secret = strings.TrimSpace(secret)
	if !strings.HasPrefix(secret, secrets.SecretPrefix) {
		return nil, apierr.Unauthorized("invalid api key")
	}
	dbc := dbctx.Context{Ctx: ctx}
	key, err := s.repos.APIKeys.GetByFingerprint(dbc, secrets.Fingerprint(secret))
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive || !secrets.VerifySecret(key.SecretHash, secret) {
		return nil, apierr.Unauthorized("invalid api key")
	}
	if err := s.repos.APIKeys.Touch(dbc, key.ID, time.Now().UTC()); err != nil {
		s.log.Warn("api key touch failed", "key_id", key.KeyID, "error", err)
	}
	return key, nil
}
