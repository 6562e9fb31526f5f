package model

import (
	"strings"
	"time"
)

const (
	CallTargetPlanner = "planner"
	CallTargetLedger  = "ledger"
)

const (
	EndpointPlannerRequest = "request"
	EndpointPlannerConfirm = "confirm"
	EndpointLedgerCreate   = "create"
	EndpointLedgerChange   = "change"
)

// ExternalCallLog stores one physical call to the Planner or the Ledger. Rows are
// appended by the adapters; only the retry sweep mutates Retry, RetryCount and Version.
type ExternalCallLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Target        string `gorm:"size:20;not null;index" json:"target"`
	Endpoint      string `gorm:"size:20;not null" json:"endpoint"`
	URL           string `gorm:"size:500;not null" json:"url"`
	CorrelationID string `gorm:"size:64;index" json:"correlation_id"`

	RequestBody  string `gorm:"type:text" json:"request_body"`
	ResponseBody string `gorm:"type:text" json:"response_body"`
	Exception    string `gorm:"type:text" json:"exception"`
	HTTPStatus   int    `json:"http_status"`
	LatencyMs    int64  `json:"latency_ms"`

	Retry      bool `gorm:"not null;default:false;index" json:"retry"`
	RetryCount int  `gorm:"not null;default:0" json:"retry_count"`
	Version    int  `gorm:"not null;default:0" json:"version"`

	// Linkage
	OrderID  *uint  `gorm:"index" json:"order_id,omitempty"`
	OrderNo  string `gorm:"size:20" json:"order_no"`
	Feature  string `gorm:"size:30" json:"feature"`
	ItemNos  string `gorm:"size:500" json:"item_nos"` // comma separated lines touched by the call
	ReplayOf *uint  `gorm:"index" json:"replay_of,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName allows you to control the exact table name for call logs.
func (ExternalCallLog) TableName() string {
	return "external_call_logs"
}

// ItemNoList splits ItemNos back into item numbers.
func (l *ExternalCallLog) ItemNoList() []string {
	if strings.TrimSpace(l.ItemNos) == "" {
		return nil
	}
	parts := strings.Split(l.ItemNos, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
