package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderTypeDomestic = "DOMESTIC"
	OrderTypeExport   = "EXPORT"
	OrderTypeCustomer = "CUSTOMER"
)

// Order is the aggregate root mirrored into the Planner and the Ledger.
// Status is derived from the lines and must only be written through status.Recompute.
type Order struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	OrderNo string `gorm:"size:20;index" json:"order_no"` // Ledger sales document, empty until accepted
	Type    string `gorm:"size:20;not null" json:"type"`
	Status  string `gorm:"size:30;not null;default:RECEIVED" json:"status"`

	ContractNo          string `gorm:"size:30" json:"contract_no"`
	ProductGroup        string `gorm:"size:10" json:"product_group"`
	SalesOrg            string `gorm:"size:10" json:"sales_org"`
	DistributionChannel string `gorm:"size:10" json:"distribution_channel"`
	Division            string `gorm:"size:10" json:"division"`
	SoldToCode          string `gorm:"size:20" json:"sold_to_code"`
	ShipToCode          string `gorm:"size:20" json:"ship_to_code"`
	PONumber            string `gorm:"size:50" json:"po_number"`
	Remark              string `gorm:"type:text" json:"remark"`

	ETD *time.Time `json:"etd,omitempty"` // estimated time of departure

	TotalPrice decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"total_price"`
	TaxAmount  decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0" json:"tax_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// One-to-many relation: lines are owned by the order and removed with it.
	Lines []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// TableName allows you to control the exact table name for orders.
func (Order) TableName() string {
	return "orders"
}

// HeaderCode is the code the Planner knows the order by. Orders the Ledger never
// accepted use a temporary code derived from the local id.
func (o *Order) HeaderCode() string {
	if o.OrderNo != "" {
		return o.OrderNo
	}
	return fmt.Sprintf("EO%08d", o.ID)
}

// LineByItemNo returns a pointer into o.Lines, or nil.
func (o *Order) LineByItemNo(itemNo string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ItemNo == itemNo {
			return &o.Lines[i]
		}
	}
	return nil
}

// MaxItemNumber returns the highest numeric item number on the order, 0 when empty.
func (o *Order) MaxItemNumber() int {
	highest := 0
	for i := range o.Lines {
		if n := o.Lines[i].ItemNumber(); n > highest {
			highest = n
		}
	}
	return highest
}

// RecalculateTotals sums line net values, cancelled lines excluded.
func (o *Order) RecalculateTotals() {
	total := decimal.Zero
	for i := range o.Lines {
		if o.Lines[i].ItemStatusEN == ItemStatusCancel {
			continue
		}
		total = total.Add(o.Lines[i].NetValue)
	}
	o.TotalPrice = total
}

// ApplyTaxRate derives TaxAmount from TotalPrice, rounded to two decimal places.
func (o *Order) ApplyTaxRate(rate decimal.Decimal) {
	o.TaxAmount = o.TotalPrice.Mul(rate).Round(2)
}
