package connectors

import (
	"context"
	"strings"
	"time"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

const (
	ReturnStatusSuccess = "SUCCESS"
	ReturnStatusFailure = "FAILURE"
)

const (
	ConfirmCommit   = "COMMIT"
	ConfirmRollback = "ROLLBACK"
)

// PlannerDateLayout is how the Planner renders request dates.
const PlannerDateLayout = "2006-01-02T15:04:05.000Z"

type PlannerRequestLine struct {
	LineNumber    string  `json:"lineNumber"`
	LocationCode  string  `json:"locationCode"`
	ProductCode   string  `json:"productCode"`
	RequestDate   string  `json:"requestDate"`
	InquiryMethod string  `json:"inquiryMethod"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	RequestType   string  `json:"requestType"`
}

type PlannerRequest struct {
	HeaderCode string               `json:"headerCode"`
	Lines      []PlannerRequestLine `json:"lines"`
}

type DDQResponseOperation struct {
	OperationNumber int    `json:"operationNumber"`
	BlockCode       string `json:"blockCode"`
	RunCode         string `json:"runCode"`
	WorkCentreCode  string `json:"workCentreCode"`
}

type PlannerResponseLine struct {
	LineNumber              string                 `json:"lineNumber"`
	Status                  string                 `json:"status"`
	Quantity                float64                `json:"quantity"`
	OnHandStock             bool                   `json:"onHandStock"`
	DispatchDate            string                 `json:"dispatchDate"`
	ConfirmAvailabilityDate string                 `json:"confirmAvailabilityDate,omitempty"`
	WarehouseCode           string                 `json:"warehouseCode"`
	OrderType               string                 `json:"orderType"`
	AtpCtpDetail            string                 `json:"atpCtpDetail,omitempty"`
	ForAttention            bool                   `json:"forAttention,omitempty"`
	ReturnStatus            string                 `json:"returnStatus"`
	ReturnCode              string                 `json:"returnCode,omitempty"`
	ReturnCodeDescription   string                 `json:"returnCodeDescription,omitempty"`
	Operations              []DDQResponseOperation `json:"DDQResponseOperation,omitempty"`
}

// BaseLineNumber strips the fragment suffix: "10.002" -> "10".
func (l PlannerResponseLine) BaseLineNumber() string {
	return BaseLineNumber(l.LineNumber)
}

func (l PlannerResponseLine) Succeeded() bool {
	return strings.EqualFold(l.ReturnStatus, ReturnStatusSuccess)
}

// Dispatch parses DispatchDate, nil when absent or malformed.
func (l PlannerResponseLine) Dispatch() *time.Time {
	return parsePlannerDate(l.DispatchDate)
}

func (l PlannerResponseLine) ConfirmAvailability() *time.Time {
	return parsePlannerDate(l.ConfirmAvailabilityDate)
}

// FirstOperation returns the first routing operation, zero value when none.
func (l PlannerResponseLine) FirstOperation() DDQResponseOperation {
	if len(l.Operations) == 0 {
		return DDQResponseOperation{}
	}
	return l.Operations[0]
}

func BaseLineNumber(lineNumber string) string {
	if i := strings.IndexByte(lineNumber, '.'); i >= 0 {
		return lineNumber[:i]
	}
	return lineNumber
}

type PlannerResponse struct {
	HeaderCode string                `json:"headerCode"`
	Lines      []PlannerResponseLine `json:"lines"`
}

// PlannerResult is a classified Planner "request" response.
type PlannerResult struct {
	Lines    []PlannerResponseLine
	Failures []LineFailure
	Log      *model.ExternalCallLog
}

// Succeeded returns the response lines whose logical item succeeded. A failing
// fragment fails every fragment of the same item.
func (r *PlannerResult) Succeeded() []PlannerResponseLine {
	failed := map[string]bool{}
	for _, f := range r.Failures {
		failed[f.ItemNo] = true
	}
	out := make([]PlannerResponseLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		if !failed[l.BaseLineNumber()] {
			out = append(out, l)
		}
	}
	return out
}

type ConfirmLine struct {
	LineNumber              string  `json:"lineNumber"`
	OriginalLineNumber      string  `json:"originalLineNumber"`
	OnHandQuantityConfirmed float64 `json:"onHandQuantityConfirmed"`
	Status                  string  `json:"status"`
}

type ConfirmRequest struct {
	HeaderCode         string        `json:"headerCode"`
	OriginalHeaderCode string        `json:"originalHeaderCode"`
	Lines              []ConfirmLine `json:"lines"`
}

type ConfirmAck struct {
	LineNumber            string `json:"lineNumber"`
	ReturnStatus          string `json:"returnStatus"`
	ReturnCode            string `json:"returnCode,omitempty"`
	ReturnCodeDescription string `json:"returnCodeDescription,omitempty"`
}

type ConfirmResponse struct {
	Lines []ConfirmAck `json:"lines"`
}

type ConfirmResult struct {
	Failures []LineFailure
	Log      *model.ExternalCallLog
}

// PlannerClient talks to the production planning system.
type PlannerClient struct {
	*Client
}

func NewPlannerClient(cfg Config) *PlannerClient {
	return &PlannerClient{Client: newClient(model.CallTargetPlanner, cfg.PlannerBaseURL, map[string]string{
		model.EndpointPlannerRequest: cfg.PlannerRequestPath,
		model.EndpointPlannerConfirm: cfg.PlannerConfirmPath,
	}, cfg)}
}

// Request sends a batch of line requests. A nil error means the call went through;
// per-line rejections are in the result's Failures.
func (p *PlannerClient) Request(ctx context.Context, call Call, req PlannerRequest) (*PlannerResult, error) {
	resp, row, err := p.Send(ctx, call, model.EndpointPlannerRequest, req)
	if err != nil {
		return &PlannerResult{Log: row}, err
	}
	return classifyPlannerRequest(resp, row)
}

func classifyPlannerRequest(resp *Response, row *model.ExternalCallLog) (*PlannerResult, error) {
	result := &PlannerResult{Log: row}
	var body PlannerResponse
	if err := decode("planner.request", resp, &body); err != nil {
		return result, err
	}
	result.Lines = body.Lines

	seen := map[string]bool{}
	for _, l := range body.Lines {
		if l.Succeeded() {
			continue
		}
		base := l.BaseLineNumber()
		if seen[base] {
			continue
		}
		seen[base] = true
		msg := l.ReturnCodeDescription
		if msg == "" {
			msg = "rejected by planner"
		}
		result.Failures = append(result.Failures, newLineFailure(base, l.ReturnCode, msg))
	}
	return result, nil
}

// Confirm commits or rolls back lines reserved by an earlier Request. Any rejected
// line fails the whole call and, when the call allows it, leaves the row for retry.
func (p *PlannerClient) Confirm(ctx context.Context, call Call, req ConfirmRequest) (*ConfirmResult, error) {
	resp, row, err := p.Send(ctx, call, model.EndpointPlannerConfirm, req)
	if err != nil {
		return &ConfirmResult{Log: row}, err
	}
	result, err := classifyConfirm(resp, row)
	if err != nil {
		p.markRetryable(ctx, call, row)
	}
	return result, err
}

func classifyConfirm(resp *Response, row *model.ExternalCallLog) (*ConfirmResult, error) {
	result := &ConfirmResult{Log: row}
	var body ConfirmResponse
	if err := decode("planner.confirm", resp, &body); err != nil {
		return result, err
	}
	for _, ack := range body.Lines {
		if strings.EqualFold(ack.ReturnStatus, ReturnStatusSuccess) {
			continue
		}
		msg := ack.ReturnCodeDescription
		if msg == "" {
			msg = "confirm rejected by planner"
		}
		result.Failures = append(result.Failures, newLineFailure(BaseLineNumber(ack.LineNumber), ack.ReturnCode, msg))
	}
	if len(result.Failures) > 0 {
		f := result.Failures[0]
		return result, failure.NewExternal("planner.confirm", f.ItemNo, f.Code, f.Message)
	}
	return result, nil
}

func parsePlannerDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{PlannerDateLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// FormatPlannerDate renders a date as UTC midnight.
func FormatPlannerDate(t time.Time) string {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(PlannerDateLayout)
}
