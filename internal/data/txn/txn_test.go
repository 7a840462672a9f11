package txn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/tunebridge-backend/internal/domain"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
	"github.com/yungbote/tunebridge-backend/internal/platform/logger"
)

func TestClassifiers(t *testing.T) {
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40001"}))
	require.True(t, IsSerializationFailure(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsSerializationFailure(errors.New("database is locked")))
	require.False(t, IsSerializationFailure(nil))

	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "idx_model_name"}))
	require.Equal(t, "idx_model_name", ConstraintName(&pgconn.PgError{Code: "23505", ConstraintName: "idx_model_name"}))
	require.False(t, IsUniqueViolation(errors.New("other")))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	boom := errors.New("business rule")
	calls := 0
	err := Retry(context.Background(), logger.Nop(), "test", 5, IsSerializationFailure, func(int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestRetryReplaysUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), logger.Nop(), "test", 5, IsSerializationFailure, func(attempt int) error {
		calls++
		if attempt < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), logger.Nop(), "test", 3, IsSerializationFailure, func(int) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.True(t, IsSerializationFailure(err))
	require.Equal(t, 3, calls)
}

func TestRunnerRollsBackOnError(t *testing.T) {
	conn := testutil.DB(t)
	runner := NewGormRunner(conn)
	name := "rollback-" + t.Name()
	err := runner.InTx(context.Background(), func(dbc dbctx.Context) error {
		if err := dbc.Tx.Create(&types.Model{OwnerUserID: uuid.New(), Name: name, BaseModel: "b", Status: types.ModelStatusActive}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	var count int64
	require.NoError(t, conn.Model(&types.Model{}).Where("name = ?", name).Count(&count).Error)
	require.Zero(t, count)
}
