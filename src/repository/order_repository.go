package repository

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordersaga/src/attention"
	"ordersaga/src/database"
	"ordersaga/src/failure"
	"ordersaga/src/model"
	"ordersaga/src/split"
)

// OrderRepository handles read/write operations for orders and their lines.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Info("Creating new OrderRepository with MainDB")

	return &OrderRepository{
		db: database.MainDB,
	}
}

// NewOrderReadRepository reads from the replica when one is configured.
func NewOrderReadRepository() *OrderRepository {
	return &OrderRepository{
		db: database.ReadDB(),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	logger.WithField("component", "OrderRepository").
		Debug("Creating OrderRepository with custom DB instance")

	return &OrderRepository{db: db}
}

// SplitPersister writes the lines a Planner split adds.
type SplitPersister interface {
	Persist(tx *gorm.DB, plan *split.Plan) error
}

// ChangeSet is the local outcome of one saga run, written in a single transaction.
type ChangeSet struct {
	Order   *model.Order
	Updated []*model.OrderLine
	Plan    *split.Plan
}

// CreateDraft inserts an order with its lines and their IPlan rows.
func (r *OrderRepository) CreateDraft(
	ctx context.Context,
	order *model.Order,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":  "OrderRepository",
		"op":    "CreateDraft",
		"lines": len(order.Lines),
	}).Debug("Creating draft order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "CreateDraft",
		}).WithError(err).Error("Failed to create draft order")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "CreateDraft",
		"order_id": order.ID,
	}).Info("Draft order created")

	return nil
}

// AddDraftLines appends draft lines, with their IPlan rows, to an existing order.
func (r *OrderRepository) AddDraftLines(
	ctx context.Context,
	orderID uint,
	lines []*model.OrderLine,
) error {

	if len(lines) == 0 {
		return nil
	}
	for _, l := range lines {
		l.OrderID = orderID
		l.Draft = true
	}

	if err := r.db.WithContext(ctx).Create(&lines).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "AddDraftLines",
			"order_id": orderID,
		}).WithError(err).Error("Failed to add draft lines")

		return err
	}
	return nil
}

// FindByID fetches an order with its lines and their Planner mirror.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Order, error) {

	logger.WithFields(map[string]interface{}{
		"repo": "OrderRepository",
		"op":   "FindByID",
		"id":   id,
	}).Debug("Fetching order by ID")

	var order model.Order

	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.IPlan").
		First(&order, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "OrderRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// OrderSearchOptions filters Search. Zero values are ignored.
type OrderSearchOptions struct {
	Status  string
	OrderNo string
	Limit   int
	Offset  int
}

// Search lists orders without their lines, newest first. Orders the Ledger never
// accepted have no order number and are left out.
func (r *OrderRepository) Search(
	ctx context.Context,
	opts OrderSearchOptions,
) ([]model.Order, error) {

	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("order_no <> ''")
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.OrderNo != "" {
		q = q.Where("order_no = ?", opts.OrderNo)
	}
	q = q.Order("created_at DESC, id DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search orders")

		return nil, err
	}
	return orders, nil
}

// ApplyChangeSet persists the new lines of a split, the updated lines with their
// IPlan rows and the order header in one transaction. Any failure rolls everything
// back and is reported as an integrity failure.
func (r *OrderRepository) ApplyChangeSet(
	ctx context.Context,
	cs ChangeSet,
	persister SplitPersister,
) error {

	log := logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "ApplyChangeSet",
		"order_id": cs.Order.ID,
		"updated":  len(cs.Updated),
	})

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cs.Plan != nil && persister != nil {
			if err := persister.Persist(tx, cs.Plan); err != nil {
				return err
			}
		}

		for _, line := range cs.Updated {
			res := tx.Omit(clause.Associations).Save(line)
			if res.Error != nil {
				return fmt.Errorf("save line %s: %w", line.ItemNo, res.Error)
			}
			if line.IPlan == nil {
				continue
			}
			line.IPlan.OrderLineID = line.ID
			if err := tx.Save(line.IPlan).Error; err != nil {
				return fmt.Errorf("save iplan of line %s: %w", line.ItemNo, err)
			}
		}

		res := tx.Model(&model.Order{}).
			Where("id = ?", cs.Order.ID).
			Updates(map[string]interface{}{
				"order_no":    cs.Order.OrderNo,
				"status":      cs.Order.Status,
				"total_price": cs.Order.TotalPrice,
				"tax_amount":  cs.Order.TaxAmount,
			})
		if res.Error != nil {
			return fmt.Errorf("update order header: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("update order header: %d rows affected", res.RowsAffected)
		}
		return nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to apply change set")
		if failure.KindOf(err) == "" {
			err = failure.NewIntegrity("repository.apply", err)
		}
		return err
	}

	log.Info("Change set applied")
	return nil
}

// UpdateAttention adds and removes attention flags on the given lines. Each line is
// read under a row lock and rewritten, so concurrent writers cannot lose a flag.
func (r *OrderRepository) UpdateAttention(
	ctx context.Context,
	orderID uint,
	itemNos []string,
	add []attention.Flag,
	remove []attention.Flag,
) error {

	if len(itemNos) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []model.OrderLine
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "item_no", "attention_type").
			Where("order_id = ? AND item_no IN ?", orderID, itemNos).
			Find(&lines).Error; err != nil {
			return fmt.Errorf("lock lines: %w", err)
		}

		for _, l := range lines {
			set := attention.Parse(l.AttentionType)
			set.Add(add...)
			set.Remove(remove...)
			next := set.String()
			if next == l.AttentionType {
				continue
			}
			if err := tx.Model(&model.OrderLine{}).
				Where("id = ?", l.ID).
				Update("attention_type", next).Error; err != nil {
				return fmt.Errorf("update attention of line %s: %w", l.ItemNo, err)
			}
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "UpdateAttention",
			"order_id": orderID,
			"items":    itemNos,
			"add":      add,
			"remove":   remove,
		}).Info("Attention flags updated")
		return nil
	})
}
