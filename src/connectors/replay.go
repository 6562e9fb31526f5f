package connectors

import (
	"context"
	"fmt"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

// Replayer re-sends logged calls.
type Replayer struct {
	planner *PlannerClient
	ledger  *LedgerClient
}

func NewReplayer(planner *PlannerClient, ledger *LedgerClient) *Replayer {
	return &Replayer{planner: planner, ledger: ledger}
}

// Replay re-posts row to the URL recorded on it with a fresh correlation id and
// classifies the answer with the rules of the row's endpoint. The replay leaves its
// own log row, linked through ReplayOf; the original row is not touched here.
func (r *Replayer) Replay(ctx context.Context, call Call, row *model.ExternalCallLog) (*model.ExternalCallLog, error) {
	call.ReplayOf = &row.ID
	call.RetryOnFailure = false
	if call.OrderID == nil {
		call.OrderID = row.OrderID
	}
	if call.OrderNo == "" {
		call.OrderNo = row.OrderNo
	}
	if call.Feature == "" {
		call.Feature = row.Feature
	}
	if len(call.ItemNos) == 0 {
		call.ItemNos = row.ItemNoList()
	}

	op := row.Target + "." + row.Endpoint
	client := r.clientFor(row.Target)
	if client == nil {
		return nil, failure.NewValidation(op, "", fmt.Sprintf("unknown call target %q", row.Target))
	}

	resp, replayed, err := client.post(ctx, call, row.Endpoint, row.URL, []byte(row.RequestBody))
	if err != nil {
		return replayed, err
	}

	switch row.Target + "/" + row.Endpoint {
	case model.CallTargetPlanner + "/" + model.EndpointPlannerRequest:
		res, err := classifyPlannerRequest(resp, replayed)
		if err == nil && len(res.Failures) > 0 {
			f := res.Failures[0]
			err = failure.NewExternal(op, f.ItemNo, f.Code, f.Message)
		}
		return replayed, err
	case model.CallTargetPlanner + "/" + model.EndpointPlannerConfirm:
		_, err := classifyConfirm(resp, replayed)
		return replayed, err
	case model.CallTargetLedger + "/" + model.EndpointLedgerCreate, model.CallTargetLedger + "/" + model.EndpointLedgerChange:
		_, err := classifyLedger(op, resp, replayed)
		return replayed, err
	}
	return replayed, failure.NewValidation(op, "", fmt.Sprintf("unknown endpoint %q", row.Endpoint))
}

func (r *Replayer) clientFor(target string) *Client {
	switch target {
	case model.CallTargetPlanner:
		if r.planner != nil {
			return r.planner.Client
		}
	case model.CallTargetLedger:
		if r.ledger != nil {
			return r.ledger.Client
		}
	}
	return nil
}
