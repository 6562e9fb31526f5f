package model

import "time"

const (
	AtpCtpATP = "ATP"
	AtpCtpCTP = "CTP"
)

const (
	RequestTypeNew       = "NEW"
	RequestTypeAmendment = "AMENDMENT"
	RequestTypeDelete    = "DELETE"
)

// LineIPlan mirrors the Planner state of one OrderLine. It also keeps the inquiry
// parameters of the last request so the request can be rebuilt.
type LineIPlan struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	OrderLineID uint `gorm:"uniqueIndex;not null" json:"order_line_id"`

	AtpCtp         string `gorm:"size:5" json:"atp_ctp"`
	AtpCtpDetail   string `gorm:"size:30" json:"atp_ctp_detail"`
	BlockCode      string `gorm:"size:30" json:"block_code"`
	RunCode        string `gorm:"size:30" json:"run_code"`
	WorkCentreCode string `gorm:"size:30" json:"work_centre_code"`
	OnHandStock    bool   `json:"on_hand_stock"`

	ConfirmedQuantity float64    `json:"confirmed_quantity"`
	ConfirmedDate     *time.Time `json:"confirmed_date,omitempty"`

	InquiryMethod     string `gorm:"size:20" json:"inquiry_method"`
	RequestType       string `gorm:"size:10" json:"request_type"`
	LocationCode      string `gorm:"size:20" json:"location_code"`
	RequestUnit       string `gorm:"size:10" json:"request_unit"`
	PlannerLineNumber string `gorm:"size:20" json:"planner_line_number"`
	ReturnStatus      string `gorm:"size:20" json:"return_status"`
	ReturnCode        string `gorm:"size:40" json:"return_code"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LineIPlan) TableName() string {
	return "order_line_iplans"
}
