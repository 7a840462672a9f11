package gcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/tunebridge-backend/internal/platform/envutil"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

// ModelStore browses the bucket that holds trained model artifacts.
type ModelStore interface {
	Bucket() string
	PrefixExists(ctx context.Context, prefix string) (bool, error)
	Close() error
}

type modelStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

// NewModelStore opens a storage client for bucket. STORAGE_EMULATOR_HOST is
// honored by the storage library itself and disables authentication.
func NewModelStore(ctx context.Context, log *logger.Logger, bucket string) (ModelStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing env var MODEL_GCS_BUCKET_NAME")
	}
	var opts []option.ClientOption
	if envutil.String("STORAGE_EMULATOR_HOST", "") != "" {
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadOnly))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	log.Info("Model store initialized", "bucket", bucket)
	return &modelStore{
		log:    log.With("service", "ModelStore"),
		client: client,
		bucket: bucket,
	}, nil
}

func (s *modelStore) Bucket() string { return s.bucket }

// PrefixExists reports whether any object lives under prefix.
func (s *modelStore) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("list %s/%s: %w", s.bucket, prefix, err)
	}
	return true, nil
}

func (s *modelStore) Close() error { return s.client.Close() }

// ModelPrefix is the object prefix owned by a model name.
func ModelPrefix(name string) string {
	return "models/" + strings.Trim(strings.TrimSpace(name), "/") + "/"
}

// ModelStoragePath is where one version's artifacts land.
func ModelStoragePath(bucket, name, label string) string {
	return fmt.Sprintf("gs://%s/%s%s", bucket, ModelPrefix(name), label)
}
