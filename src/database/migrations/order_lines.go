package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"ordersaga/src/model"
)

// backfillLineStatus gives rows created before line_status existed the ENABLE state.
func backfillLineStatus(db *gorm.DB) error {
	res := db.Model(&model.OrderLine{}).
		Where("line_status IS NULL OR line_status = ''").
		Update("line_status", model.LineStatusEnable)
	if res.Error != nil {
		return fmt.Errorf("backfill line_status: %w", res.Error)
	}
	return nil
}

// unpadItemNumbers rewrites item numbers stored in their six digit wire form.
func unpadItemNumbers(db *gorm.DB) error {
	var lines []model.OrderLine
	if err := db.Select("id", "item_no", "original_item_no").
		Where("item_no LIKE ? OR original_item_no LIKE ?", "0%", "0%").
		Find(&lines).Error; err != nil {
		return fmt.Errorf("load padded item numbers: %w", err)
	}

	for _, l := range lines {
		updates := map[string]interface{}{
			"item_no": model.UnpadItemNo(l.ItemNo),
		}
		if l.OriginalItemNo != "" {
			updates["original_item_no"] = model.UnpadItemNo(l.OriginalItemNo)
		}
		if err := db.Model(&model.OrderLine{}).Where("id = ?", l.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("unpad item number of line %d: %w", l.ID, err)
		}
	}
	return nil
}

// backfillItemStatusTH fills the Thai label where only the English status was stored.
func backfillItemStatusTH(db *gorm.DB) error {
	for _, en := range model.ItemStatuses() {
		res := db.Model(&model.OrderLine{}).
			Where("item_status_en = ? AND (item_status_th IS NULL OR item_status_th = '')", en).
			Update("item_status_th", model.ItemStatusThai(en))
		if res.Error != nil {
			return fmt.Errorf("backfill item_status_th for %s: %w", en, res.Error)
		}
	}
	return nil
}
