package status

import "ordersaga/src/model"

// LineState is the part of a line the order status derivation looks at.
// A nil ItemStatus is a line whose status is not known yet.
type LineState struct {
	ItemStatus   *string
	LineStatus   string
	ItemCategory string
}

var excludedLineStatus = map[string]bool{
	model.LineStatusDisable: true,
	model.LineStatusDelete:  true,
	"":                      true,
}

// StatesFromLines converts persisted lines. Draft lines are left out and an empty
// item status is reported as nil.
func StatesFromLines(lines []model.OrderLine) []LineState {
	out := make([]LineState, 0, len(lines))
	for i := range lines {
		l := lines[i]
		if l.Draft {
			continue
		}
		var s *string
		if l.ItemStatusEN != "" {
			v := l.ItemStatusEN
			s = &v
		}
		out = append(out, LineState{ItemStatus: s, LineStatus: l.LineStatus, ItemCategory: l.ItemCategory})
	}
	return out
}

// DeriveOrderStatus aggregates line states into one order status.
//
// The checks run in a single pass with early returns, followed by ordered fallbacks.
// The order of the checks is significant: a partial delivery wins over everything
// seen after it, then a full cancel, then a full delivery. Keep it literal.
func DeriveOrderStatus(orderType string, lines []LineState) string {
	statuses := make([]*string, 0, len(lines))
	for _, l := range lines {
		if excludedLineStatus[l.LineStatus] {
			continue
		}
		if orderType == model.OrderTypeExport && l.ItemCategory == model.ItemCategoryContainer {
			continue
		}
		statuses = append(statuses, l.ItemStatus)
	}

	n := len(statuses)
	if n == 0 {
		return model.OrderStatusReceived
	}
	for _, s := range statuses {
		if s == nil {
			return model.OrderStatusReceived
		}
	}

	complete, cancel, fullCommitted := 0, 0, 0
	for _, s := range statuses {
		switch *s {
		case model.ItemStatusCancel:
			complete++
			cancel++
			fullCommitted++
			if cancel == n {
				return model.OrderStatusCancel
			}
		case model.ItemStatusCompleteDelivery:
			complete++
			if complete == n {
				return model.OrderStatusCompletedDelivery
			}
		case model.ItemStatusPartialDelivery:
			return model.OrderStatusPartialDelivery
		case model.ItemStatusFullCommittedOrder:
			fullCommitted++
			if fullCommitted == n {
				return model.OrderStatusFullCommitted
			}
		}
	}

	if fullCommitted > 0 && fullCommitted < n && anyStatus(statuses, model.ItemStatusFullCommittedOrder) {
		return model.OrderStatusPartialCommitted
	}
	if allStatusIn(statuses, model.ItemStatusFullCommittedOrder, model.ItemStatusCancel) {
		return model.OrderStatusFullCommitted
	}
	if complete == n && anyStatus(statuses, model.ItemStatusCompleteDelivery) {
		return model.OrderStatusCompletedDelivery
	}
	return model.OrderStatusReceived
}

// Recompute derives the order status from its lines and stores it on the order.
// CANCEL is terminal and is never replaced.
func Recompute(order *model.Order) string {
	if order.Status == model.OrderStatusCancel {
		return order.Status
	}
	order.Status = DeriveOrderStatus(order.Type, StatesFromLines(order.Lines))
	return order.Status
}

func anyStatus(statuses []*string, want string) bool {
	for _, s := range statuses {
		if *s == want {
			return true
		}
	}
	return false
}

func allStatusIn(statuses []*string, allowed ...string) bool {
	for _, s := range statuses {
		ok := false
		for _, a := range allowed {
			if *s == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
