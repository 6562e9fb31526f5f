package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionFindByOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&ExceptionRepository{}).WithDB(db)

	mock.ExpectQuery(`SELECT \* FROM "exceptions" WHERE order_id = \$1 ORDER BY id DESC`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "method", "level"}).
			AddRow(9, "orders.ApplyChangeSet", "fatal"))

	rows, err := repo.FindByOrder(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "orders.ApplyChangeSet", rows[0].Method)
	require.NoError(t, mock.ExpectationsWereMet())
}
