package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ordersaga/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestClaimRetryableLocksAndBumpsVersion(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&CallLogRepository{}).WithDB(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "target", "endpoint", "url", "retry", "retry_count", "version", "created_at", "updated_at"}).
		AddRow(4, "planner", "confirm", "http://planner/confirm", true, 1, 3, now, now).
		AddRow(9, "planner", "confirm", "http://planner/confirm", true, 0, 0, now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "external_call_logs" WHERE retry = \$1 AND retry_count <= \$2 ORDER BY id LIMIT \$3 FOR UPDATE SKIP LOCKED`).
		WithArgs(true, 5, 50).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE "external_call_logs" SET "version"=version \+ 1.* WHERE id IN \(\$\d+,\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	claimed, err := repo.ClaimRetryable(context.Background(), 5, 50)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Equal(t, 4, claimed[0].Version)
	require.Equal(t, 1, claimed[1].Version)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedUsesVersionCheck(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&CallLogRepository{}).WithDB(db)

	t.Run("counts the failure", func(t *testing.T) {
		row := &model.ExternalCallLog{ID: 4, RetryCount: 1, Version: 4, Retry: true}
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "external_call_logs" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		exhausted, err := repo.MarkFailed(context.Background(), row, 3, "HTTP 502")
		require.NoError(t, err)
		require.False(t, exhausted)
		require.Equal(t, 2, row.RetryCount)
		require.Equal(t, 5, row.Version)
		require.True(t, row.Retry)
	})

	t.Run("exhausts past the maximum", func(t *testing.T) {
		row := &model.ExternalCallLog{ID: 4, RetryCount: 3, Version: 5, Retry: true}
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "external_call_logs" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		exhausted, err := repo.MarkFailed(context.Background(), row, 3, "HTTP 502")
		require.NoError(t, err)
		require.True(t, exhausted)
		require.False(t, row.Retry)
	})

	t.Run("stale version", func(t *testing.T) {
		row := &model.ExternalCallLog{ID: 4, RetryCount: 1, Version: 2, Retry: true}
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "external_call_logs" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		_, err := repo.MarkFailed(context.Background(), row, 3, "HTTP 502")
		require.ErrorIs(t, err, ErrStaleCallLog)
		require.Equal(t, 1, row.RetryCount)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCallLogCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&CallLogRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "external_call_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "retry", "retry_count", "version"}).AddRow(12, false, 0, 0))
	mock.ExpectCommit()

	row := &model.ExternalCallLog{Target: model.CallTargetPlanner, Endpoint: model.EndpointPlannerRequest, URL: "http://p/request"}
	require.NoError(t, repo.Create(context.Background(), row))
	require.EqualValues(t, 12, row.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCallLogFindByOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&CallLogRepository{}).WithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "external_call_logs" WHERE order_id = \$1 ORDER BY id`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "endpoint", "retry"}).
			AddRow(1, model.EndpointPlannerRequest, false).
			AddRow(2, model.EndpointPlannerConfirm, true))

	rows, err := repo.FindByOrder(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[1].Retry)
	require.NoError(t, mock.ExpectationsWereMet())
}
