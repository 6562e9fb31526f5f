package controller

import (
	"fmt"
	"strings"

	"ordersaga/src/failure"
	"ordersaga/src/model"
	"ordersaga/src/status"
)

var orderTypes = map[string]bool{
	model.OrderTypeDomestic: true,
	model.OrderTypeExport:   true,
	model.OrderTypeCustomer: true,
}

func validateCreate(req CreateRequest) error {
	const op = FeatureCreateOrder
	if !orderTypes[req.Type] {
		return failure.NewValidation(op, "", fmt.Sprintf("unknown order type %q", req.Type))
	}
	if strings.TrimSpace(req.SoldToCode) == "" || strings.TrimSpace(req.ShipToCode) == "" {
		return failure.NewValidation(op, "", "sold-to and ship-to codes are required")
	}
	if len(req.Lines) == 0 {
		return failure.NewValidation(op, "", "an order needs at least one line")
	}
	for i, in := range req.Lines {
		if err := validateLineInput(op, fmt.Sprintf("#%d", i+1), in); err != nil {
			return err
		}
	}
	return nil
}

func validateLineInput(op, ref string, in LineInput) error {
	if strings.TrimSpace(in.MaterialCode) == "" {
		return failure.NewValidation(op, ref, "material code is required")
	}
	if in.Quantity <= 0 {
		return failure.NewValidation(op, ref, "quantity must be positive")
	}
	return nil
}

// validateChange rejects a change request before any external call is made.
func validateChange(order *model.Order, req ChangeRequest) error {
	const op = FeatureChangeOrder
	if order.OrderNo == "" {
		return failure.NewValidation(op, "", "order has not been accepted by the ledger")
	}
	if len(req.Updates)+len(req.Additions)+len(req.Cancel)+len(req.Undo) == 0 {
		return failure.NewValidation(op, "", "nothing to change")
	}

	seen := map[string]bool{}
	claim := func(itemNo string) (*model.OrderLine, error) {
		if seen[itemNo] {
			return nil, failure.NewValidation(op, itemNo, "item appears more than once in the request")
		}
		seen[itemNo] = true
		line := order.LineByItemNo(itemNo)
		if line == nil {
			return nil, failure.NewValidation(op, itemNo, "unknown item")
		}
		if line.Draft {
			return nil, failure.NewValidation(op, itemNo, "item has not been accepted by the ledger")
		}
		return line, nil
	}

	for _, u := range req.Updates {
		line, err := claim(u.ItemNo)
		if err != nil {
			return err
		}
		if err := validateUpdate(op, line, u); err != nil {
			return err
		}
	}
	for _, itemNo := range req.Cancel {
		line, err := claim(itemNo)
		if err != nil {
			return err
		}
		switch line.ItemStatusEN {
		case model.ItemStatusCancel:
			return failure.NewValidation(op, itemNo, "item is already cancelled")
		case model.ItemStatusPartialDelivery, model.ItemStatusCompleteDelivery:
			return failure.NewValidation(op, itemNo, "item has already been delivered")
		}
	}
	if len(req.Undo) > 0 && order.Status == model.OrderStatusCancel {
		return failure.NewValidation(op, "", "cancelled orders cannot be restored")
	}
	for _, itemNo := range req.Undo {
		line, err := claim(itemNo)
		if err != nil {
			return err
		}
		if line.ItemStatusEN != model.ItemStatusCancel {
			return failure.NewValidation(op, itemNo, "only cancelled items can be restored")
		}
	}
	for i, in := range req.Additions {
		if err := validateLineInput(op, fmt.Sprintf("new #%d", i+1), in); err != nil {
			return err
		}
	}
	return nil
}

func validateUpdate(op string, line *model.OrderLine, u LineUpdate) error {
	switch line.ItemStatusEN {
	case model.ItemStatusCancel:
		return failure.NewValidation(op, line.ItemNo, "cancelled items cannot be changed")
	case model.ItemStatusPartialDelivery, model.ItemStatusCompleteDelivery:
		return failure.NewValidation(op, line.ItemNo, "delivered items cannot be changed")
	}
	if u.Quantity != nil && *u.Quantity <= 0 {
		return failure.NewValidation(op, line.ItemNo, "quantity must be positive")
	}
	if u.Quantity != nil && *u.Quantity < line.AssignedQuantity && status.DeriveItemScenario(line) == status.Scenario3 {
		return failure.NewValidation(op, line.ItemNo, "quantity cannot drop below the committed quantity")
	}
	if u.InquiryMethod != nil && *u.InquiryMethod != line.InquiryMethod && !status.IsInquiryMethodEditable(line) {
		return failure.NewValidation(op, line.ItemNo, "inquiry method cannot be changed at this stage")
	}
	return nil
}

func validateSplit(order *model.Order, req SplitRequest) error {
	const op = FeatureSplitLine
	if order.OrderNo == "" {
		return failure.NewValidation(op, "", "order has not been accepted by the ledger")
	}
	line := order.LineByItemNo(req.ItemNo)
	if line == nil {
		return failure.NewValidation(op, req.ItemNo, "unknown item")
	}
	if line.Draft {
		return failure.NewValidation(op, req.ItemNo, "item has not been accepted by the ledger")
	}
	switch line.ItemStatusEN {
	case model.ItemStatusCancel, model.ItemStatusPartialDelivery, model.ItemStatusCompleteDelivery:
		return failure.NewValidation(op, req.ItemNo, fmt.Sprintf("item in status %s cannot be split", line.ItemStatusEN))
	}
	if len(req.Parts) < 2 {
		return failure.NewValidation(op, req.ItemNo, "a split needs at least two parts")
	}
	for _, p := range req.Parts {
		if p.Quantity <= 0 {
			return failure.NewValidation(op, req.ItemNo, "every part needs a positive quantity")
		}
	}
	return nil
}
