package mapper

import (
	"strings"

	"ordersaga/src/connectors"
	"ordersaga/src/model"
)

// LineRequest pairs a line with the Planner request type it is sent under.
type LineRequest struct {
	Line        *model.OrderLine
	RequestType string
}

// RequiresPlanner reports whether the line's product group is planned by the Planner.
// Lines outside those groups go straight to the Ledger with the values the user gave.
func RequiresPlanner(line *model.OrderLine, groups []string) bool {
	if line == nil {
		return false
	}
	for _, g := range groups {
		if strings.EqualFold(strings.TrimSpace(g), line.ProductGroup) {
			return true
		}
	}
	return false
}

// PlannerLine builds the request line for one order line. The line number is the
// unpadded item number.
func PlannerLine(order *model.Order, line *model.OrderLine, requestType string) connectors.PlannerRequestLine {
	out := connectors.PlannerRequestLine{
		LineNumber:    line.ItemNo,
		LocationCode:  order.ShipToCode,
		ProductCode:   line.MaterialCode,
		InquiryMethod: line.InquiryMethod,
		Quantity:      line.Quantity,
		Unit:          line.Unit,
		RequestType:   requestType,
	}
	if line.RequestDate != nil {
		out.RequestDate = connectors.FormatPlannerDate(*line.RequestDate)
	}
	return out
}

func BuildPlannerRequest(order *model.Order, reqs []LineRequest) connectors.PlannerRequest {
	out := connectors.PlannerRequest{
		HeaderCode: order.HeaderCode(),
		Lines:      make([]connectors.PlannerRequestLine, 0, len(reqs)),
	}
	for _, r := range reqs {
		out.Lines = append(out.Lines, PlannerLine(order, r.Line, r.RequestType))
	}
	return out
}
