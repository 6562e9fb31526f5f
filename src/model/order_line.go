package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	LineStatusEnable  = "ENABLE"
	LineStatusDisable = "DISABLE"
	LineStatusDelete  = "DELETE"
)

// ItemCategoryContainer marks container lines of export orders.
const ItemCategoryContainer = "ZKC0"

// OrderLine is one item of an Order.
type OrderLine struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderID uint   `gorm:"index;not null" json:"order_id"`
	ItemNo  string `gorm:"size:10;not null" json:"item_no"` // numeric, unpadded ("10", "20")

	MaterialCode       string `gorm:"size:40" json:"material_code"`
	ProductGroup       string `gorm:"size:10" json:"product_group"`
	ItemCategory       string `gorm:"size:10" json:"item_category"`
	ContractMaterialID uint   `json:"contract_material_id"`

	Quantity         float64    `json:"quantity"`
	Unit             string     `gorm:"size:10" json:"unit"`
	RequestDate      *time.Time `json:"request_date,omitempty"`
	ConfirmedDate    *time.Time `json:"confirmed_date,omitempty"`
	AssignedQuantity float64    `json:"assigned_quantity"`
	Plant            string     `gorm:"size:10" json:"plant"`
	InquiryMethod    string     `gorm:"size:20" json:"inquiry_method"`

	ItemStatusEN     string `gorm:"size:40" json:"item_status_en"`
	ItemStatusTH     string `gorm:"size:80" json:"item_status_th"`
	ProductionStatus string `gorm:"size:30" json:"production_status"`
	LineStatus       string `gorm:"size:10;not null;default:ENABLE" json:"line_status"`
	AttentionType    string `gorm:"size:30" json:"attention_type"`

	Draft          bool   `gorm:"not null;default:false" json:"draft"`
	OriginalItemNo string `gorm:"size:10" json:"original_item_no"`

	NetValue decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"net_value"`
	Remark   string          `gorm:"type:text" json:"remark"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IPlan *LineIPlan `gorm:"foreignKey:OrderLineID;constraint:OnDelete:CASCADE" json:"iplan,omitempty"`
}

func (OrderLine) TableName() string {
	return "order_lines"
}

// ItemNumber is the numeric value of ItemNo, 0 when it does not parse.
func (l *OrderLine) ItemNumber() int {
	n, err := strconv.Atoi(l.ItemNo)
	if err != nil {
		return 0
	}
	return n
}

// WireItemNo is the zero-padded six digit form used by the Ledger.
func (l *OrderLine) WireItemNo() string {
	return PadItemNo(l.ItemNo)
}

// SetItemStatus keeps both languages of the item status in step.
func (l *OrderLine) SetItemStatus(statusEN string) {
	l.ItemStatusEN = statusEN
	l.ItemStatusTH = ItemStatusThai(statusEN)
}

// IsCTP reports whether the Planner sourced the line from capacity.
func (l *OrderLine) IsCTP() bool {
	return l.IPlan != nil && l.IPlan.AtpCtp == AtpCtpCTP
}

// PadItemNo renders an item number in its six digit wire form.
func PadItemNo(itemNo string) string {
	n, err := strconv.Atoi(itemNo)
	if err != nil {
		return itemNo
	}
	return fmt.Sprintf("%06d", n)
}

// UnpadItemNo strips the wire padding ("000010" -> "10").
func UnpadItemNo(itemNo string) string {
	n, err := strconv.Atoi(itemNo)
	if err != nil {
		return itemNo
	}
	return strconv.Itoa(n)
}
