package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/model"
)

type memExceptions struct {
	rows []*model.Exception
	err  error
}

func (m *memExceptions) Create(ctx context.Context, exc *model.Exception) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, exc)
	return nil
}

func TestCaptureLinksOrder(t *testing.T) {
	repo := &memExceptions{}
	Capture(context.Background(), repo, "order_saga", "controller", "commit", "fatal",
		errors.New("boom"), map[string]interface{}{"order_id": uint(7), "feature": "change_order"})

	require.Len(t, repo.rows, 1)
	exc := repo.rows[0]
	assert.Equal(t, "boom", exc.Message)
	assert.Equal(t, "fatal", exc.Level)
	require.NotNil(t, exc.OrderID)
	assert.Equal(t, uint(7), *exc.OrderID)
	assert.Contains(t, exc.Context, `"feature":"change_order"`)
	assert.NotEmpty(t, exc.Stack)
}

func TestCaptureIgnoresNilErrorAndStoreFailure(t *testing.T) {
	repo := &memExceptions{}
	Capture(context.Background(), repo, "s", "m", "x", "error", nil, nil)
	assert.Empty(t, repo.rows)

	failing := &memExceptions{err: errors.New("db down")}
	Capture(context.Background(), failing, "s", "m", "x", "error", errors.New("boom"), nil)
	assert.Empty(t, failing.rows)
}
