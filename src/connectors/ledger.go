package connectors

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

const (
	MessageFail    = "fail"
	MessageSuccess = "success"
	MessageWarning = "warning"
)

// LedgerDateLayout is the DD/MM/YYYY form the Ledger uses for dates.
const LedgerDateLayout = "02/01/2006"

type LedgerPartner struct {
	Role string `json:"partnerRole"`
	Code string `json:"partnerNumb"`
}

type LedgerText struct {
	ItemNo   string `json:"itemNo"`
	TextID   string `json:"textId"`
	Language string `json:"language"`
	Text     string `json:"textLine"`
}

// LedgerOrderRequest is the body of both create and change. Item and schedule rows
// are built from a static field table; the Inx rows flag which fields changed.
type LedgerOrderRequest struct {
	OrderNo      string                   `json:"salesDocument,omitempty"`
	HeaderCode   string                   `json:"headerCode"`
	Header       map[string]interface{}   `json:"orderHeaderIn"`
	HeaderInx    map[string]interface{}   `json:"orderHeaderInX,omitempty"`
	Partners     []LedgerPartner          `json:"orderPartners,omitempty"`
	Items        []map[string]interface{} `json:"orderItemsIn"`
	ItemsInx     []map[string]interface{} `json:"orderItemsInx"`
	Schedules    []map[string]interface{} `json:"orderSchedulesIn"`
	SchedulesInx []map[string]interface{} `json:"orderSchedulesInx"`
	Texts        []LedgerText             `json:"orderText,omitempty"`
}

type LedgerMessage struct {
	ItemNo  string `json:"itemNo,omitempty"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type LedgerItemOut struct {
	ItemNo    string          `json:"itemNo"`
	Material  string          `json:"material"`
	TargetQty float64         `json:"targetQty"`
	Plant     string          `json:"plant"`
	NetValue  decimal.Decimal `json:"netValue"`
}

type LedgerScheduleOut struct {
	ItemNo     string  `json:"itemNo"`
	ReqDate    string  `json:"reqDate"`
	ConfirmQty float64 `json:"confirmQty"`
}

// Date parses ReqDate, nil when absent or malformed.
func (s LedgerScheduleOut) Date() *time.Time {
	t, err := time.Parse(LedgerDateLayout, strings.TrimSpace(s.ReqDate))
	if err != nil {
		return nil
	}
	return &t
}

type LedgerResponse struct {
	OrderNo      string              `json:"salesDocument"`
	Data         []LedgerMessage     `json:"data"`
	ItemsOut     []LedgerItemOut     `json:"orderItemsOut"`
	SchedulesOut []LedgerScheduleOut `json:"orderSchedulesOut"`
}

// LedgerResult is a classified Ledger response. Item numbers are unpadded.
type LedgerResult struct {
	OrderNo   string
	Items     map[string]LedgerItemOut
	Schedules map[string]LedgerScheduleOut
	Failures  []LineFailure
	Warnings  []LineFailure
	Log       *model.ExternalCallLog
}

// LedgerClient talks to the commercial system of record.
type LedgerClient struct {
	*Client
}

func NewLedgerClient(cfg Config) *LedgerClient {
	return &LedgerClient{Client: newClient(model.CallTargetLedger, cfg.LedgerBaseURL, map[string]string{
		model.EndpointLedgerCreate: cfg.LedgerCreatePath,
		model.EndpointLedgerChange: cfg.LedgerChangePath,
	}, cfg)}
}

// CreateOrder registers a new order. The Ledger assigns the order number.
func (l *LedgerClient) CreateOrder(ctx context.Context, call Call, req LedgerOrderRequest) (*LedgerResult, error) {
	return l.apply(ctx, call, model.EndpointLedgerCreate, req)
}

// ChangeOrder updates an existing order.
func (l *LedgerClient) ChangeOrder(ctx context.Context, call Call, req LedgerOrderRequest) (*LedgerResult, error) {
	return l.apply(ctx, call, model.EndpointLedgerChange, req)
}

func (l *LedgerClient) apply(ctx context.Context, call Call, endpoint string, req LedgerOrderRequest) (*LedgerResult, error) {
	resp, row, err := l.Send(ctx, call, endpoint, req)
	if err != nil {
		return &LedgerResult{Log: row}, err
	}
	return classifyLedger(l.op(endpoint), resp, row)
}

// classifyLedger fails the whole document when any message is a fail. The Ledger
// applies a document atomically so a partial success cannot exist on its side.
func classifyLedger(op string, resp *Response, row *model.ExternalCallLog) (*LedgerResult, error) {
	result := &LedgerResult{
		Items:     map[string]LedgerItemOut{},
		Schedules: map[string]LedgerScheduleOut{},
		Log:       row,
	}
	var body LedgerResponse
	if err := decode(op, resp, &body); err != nil {
		return result, err
	}
	result.OrderNo = body.OrderNo
	for _, it := range body.ItemsOut {
		result.Items[model.UnpadItemNo(it.ItemNo)] = it
	}
	for _, s := range body.SchedulesOut {
		result.Schedules[model.UnpadItemNo(s.ItemNo)] = s
	}

	for _, m := range body.Data {
		lf := newLineFailure(model.UnpadItemNo(m.ItemNo), m.Code, m.Message)
		switch strings.ToLower(m.Type) {
		case MessageFail:
			result.Failures = append(result.Failures, lf)
		case MessageWarning:
			result.Warnings = append(result.Warnings, lf)
		}
	}
	if len(result.Failures) > 0 {
		f := result.Failures[0]
		return result, failure.NewExternal(op, f.ItemNo, f.Code, f.Message)
	}
	return result, nil
}
