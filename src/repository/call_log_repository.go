package repository

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordersaga/src/database"
	"ordersaga/src/model"
)

// ErrStaleCallLog is returned when a call log row changed since it was claimed.
var ErrStaleCallLog = errors.New("call log row was modified concurrently")

// CallLogRepository persists ExternalCallLog rows and their retry state.
type CallLogRepository struct {
	db *gorm.DB
}

func NewCallLogRepository() *CallLogRepository {
	return &CallLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CallLogRepository) WithDB(db *gorm.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Create appends a call log row.
func (r *CallLogRepository) Create(
	ctx context.Context,
	row *model.ExternalCallLog,
) error {

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":           "CallLogRepository",
			"op":             "Create",
			"correlation_id": row.CorrelationID,
		}).WithError(err).Error("Failed to create call log")

		return err
	}
	return nil
}

// MarkRetryable flags a row for the retry sweep.
func (r *CallLogRepository) MarkRetryable(
	ctx context.Context,
	id uint,
) error {

	return r.db.WithContext(ctx).
		Model(&model.ExternalCallLog{}).
		Where("id = ?", id).
		Update("retry", true).Error
}

// ClaimRetryable locks up to limit pending rows, skipping rows another sweep holds,
// and bumps their version. Later updates are only accepted for that version.
func (r *CallLogRepository) ClaimRetryable(
	ctx context.Context,
	maxRetries int,
	limit int,
) ([]model.ExternalCallLog, error) {

	var rows []model.ExternalCallLog

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("retry = ? AND retry_count <= ?", true, maxRetries).
			Order("id").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		ids := make([]uint, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		if err := tx.Model(&model.ExternalCallLog{}).
			Where("id IN ?", ids).
			Update("version", gorm.Expr("version + 1")).Error; err != nil {
			return err
		}

		for i := range rows {
			rows[i].Version++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim retryable call logs: %w", err)
	}
	return rows, nil
}

// MarkSucceeded makes a row terminal after a successful replay.
func (r *CallLogRepository) MarkSucceeded(
	ctx context.Context,
	row *model.ExternalCallLog,
) error {

	return r.updateVersioned(ctx, row, map[string]interface{}{
		"retry": false,
	})
}

// MarkFailed counts a failed replay. Once the count passes maxRetries the row stops
// being retried; exhausted reports that transition.
func (r *CallLogRepository) MarkFailed(
	ctx context.Context,
	row *model.ExternalCallLog,
	maxRetries int,
	reason string,
) (exhausted bool, err error) {

	count := row.RetryCount + 1
	exhausted = count > maxRetries

	err = r.updateVersioned(ctx, row, map[string]interface{}{
		"retry_count": count,
		"retry":       !exhausted,
		"exception":   reason,
	})
	if err != nil {
		return false, err
	}
	row.RetryCount = count
	row.Retry = !exhausted
	return exhausted, nil
}

func (r *CallLogRepository) updateVersioned(
	ctx context.Context,
	row *model.ExternalCallLog,
	updates map[string]interface{},
) error {

	updates["version"] = row.Version + 1

	res := r.db.WithContext(ctx).
		Model(&model.ExternalCallLog{}).
		Where("id = ? AND version = ?", row.ID, row.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(map[string]interface{}{
			"repo":    "CallLogRepository",
			"op":      "updateVersioned",
			"id":      row.ID,
			"version": row.Version,
		}).Warn("Call log version mismatch")

		return ErrStaleCallLog
	}
	row.Version++
	if v, ok := updates["retry"].(bool); ok {
		row.Retry = v
	}
	return nil
}

// FindByOrder lists every call made for an order, oldest first.
func (r *CallLogRepository) FindByOrder(
	ctx context.Context,
	orderID uint,
) ([]model.ExternalCallLog, error) {
	var rows []model.ExternalCallLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id").
		Find(&rows).Error
	return rows, err
}
