package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ordersaga/src/model"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Order{}, &model.OrderLine{}, &model.LineIPlan{}))
	return db
}

func TestRunOnceRecordsMigration(t *testing.T) {
	db := openDB(t)
	calls := 0
	fn := func(*gorm.DB) error {
		calls++
		return nil
	}

	require.NoError(t, RunOnce(db, "test_once", fn))
	require.NoError(t, RunOnce(db, "test_once", fn))
	require.Equal(t, 1, calls)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "test_once").Count(&count).Error)
	require.EqualValues(t, 1, count)

	require.Error(t, RunOnce(db, "", fn))
	require.Error(t, RunOnce(db, "nil_fn", nil))
}

func TestRunBackfillsLines(t *testing.T) {
	db := openDB(t)
	order := model.Order{Type: model.OrderTypeDomestic}
	require.NoError(t, db.Create(&order).Error)
	line := model.OrderLine{OrderID: order.ID, ItemNo: "000010", OriginalItemNo: "000010", ItemStatusEN: model.ItemStatusConfirm}
	require.NoError(t, db.Create(&line).Error)
	require.NoError(t, db.Model(&model.OrderLine{}).Where("id = ?", line.ID).Update("line_status", "").Error)

	require.NoError(t, Run(db))

	var got model.OrderLine
	require.NoError(t, db.First(&got, line.ID).Error)
	require.Equal(t, model.LineStatusEnable, got.LineStatus)
	require.Equal(t, "10", got.ItemNo)
	require.Equal(t, "10", got.OriginalItemNo)
	require.Equal(t, model.ItemStatusThai(model.ItemStatusConfirm), got.ItemStatusTH)

	// second run is a no-op
	require.NoError(t, Run(db))
}
