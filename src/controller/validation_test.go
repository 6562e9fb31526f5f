package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/failure"
	"ordersaga/src/model"
)

func acceptedOrder() *model.Order {
	return &model.Order{
		ID:      1,
		OrderNo: "0410000001",
		Type:    model.OrderTypeDomestic,
		Status:  model.OrderStatusPartialCommitted,
		Lines: []model.OrderLine{
			{ItemNo: "10", ItemStatusEN: model.ItemStatusFullCommittedOrder, InquiryMethod: "JITCP", Quantity: 10, AssignedQuantity: 10, LineStatus: model.LineStatusEnable},
			{ItemNo: "20", ItemStatusEN: model.ItemStatusCancel, LineStatus: model.LineStatusEnable},
			{ItemNo: "30", ItemStatusEN: model.ItemStatusPartialDelivery, LineStatus: model.LineStatusEnable},
			{ItemNo: "40", ItemStatusEN: model.ItemStatusCreated, InquiryMethod: "JITCP", ProductionStatus: model.ProductionStatusCompleted,
				LineStatus: model.LineStatusEnable, IPlan: &model.LineIPlan{AtpCtp: model.AtpCtpCTP}},
			{ItemNo: "50", Draft: true, LineStatus: model.LineStatusEnable},
		},
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestValidateChange(t *testing.T) {
	tests := []struct {
		name    string
		req     ChangeRequest
		wantErr string
	}{
		{"empty", ChangeRequest{}, "nothing to change"},
		{"unknown item", ChangeRequest{Cancel: []string{"99"}}, "unknown item"},
		{"draft item", ChangeRequest{Cancel: []string{"50"}}, "not been accepted"},
		{"duplicate item", ChangeRequest{Cancel: []string{"10"}, Updates: []LineUpdate{{ItemNo: "10"}}}, "more than once"},
		{"cancel cancelled", ChangeRequest{Cancel: []string{"20"}}, "already cancelled"},
		{"cancel delivered", ChangeRequest{Cancel: []string{"30"}}, "already been delivered"},
		{"undo active", ChangeRequest{Undo: []string{"10"}}, "only cancelled"},
		{"zero quantity", ChangeRequest{Updates: []LineUpdate{{ItemNo: "10", Quantity: floatPtr(0)}}}, "positive"},
		{"below committed", ChangeRequest{Updates: []LineUpdate{{ItemNo: "10", Quantity: floatPtr(5)}}}, "committed quantity"},
		{"update cancelled", ChangeRequest{Updates: []LineUpdate{{ItemNo: "20", Quantity: floatPtr(5)}}}, "cancelled items"},
		{"inquiry method on completed CTP line", ChangeRequest{Updates: []LineUpdate{{ItemNo: "40", InquiryMethod: strPtr("ASAP")}}}, "inquiry method"},
		{"bad addition", ChangeRequest{Additions: []LineInput{{MaterialCode: "M", Quantity: -1}}}, "positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateChange(acceptedOrder(), tt.req)
			require.Error(t, err)
			assert.Equal(t, failure.Validation, failure.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateChangeAccepts(t *testing.T) {
	err := validateChange(acceptedOrder(), ChangeRequest{
		Updates:   []LineUpdate{{ItemNo: "10", Quantity: floatPtr(12), InquiryMethod: strPtr("ASAP")}},
		Undo:      []string{"20"},
		Additions: []LineInput{{MaterialCode: "MAT-9", Quantity: 1}},
	})
	assert.NoError(t, err)

	// Same inquiry method is not an edit.
	err = validateChange(acceptedOrder(), ChangeRequest{Updates: []LineUpdate{{ItemNo: "40", InquiryMethod: strPtr("JITCP")}}})
	assert.NoError(t, err)
}

func TestValidateUndoOnCancelledOrder(t *testing.T) {
	order := acceptedOrder()
	order.Status = model.OrderStatusCancel
	err := validateChange(order, ChangeRequest{Undo: []string{"20"}})
	assert.Equal(t, failure.Validation, failure.KindOf(err))
}

func TestValidateChangeNeedsLedgerOrder(t *testing.T) {
	order := acceptedOrder()
	order.OrderNo = ""
	err := validateChange(order, ChangeRequest{Cancel: []string{"10"}})
	assert.Contains(t, err.Error(), "not been accepted by the ledger")
}

func TestValidateSplit(t *testing.T) {
	order := acceptedOrder()
	assert.NoError(t, validateSplit(order, SplitRequest{ItemNo: "10", Parts: []SplitPart{{Quantity: 4}, {Quantity: 6}}}))

	for name, req := range map[string]SplitRequest{
		"one part":      {ItemNo: "10", Parts: []SplitPart{{Quantity: 10}}},
		"zero part":     {ItemNo: "10", Parts: []SplitPart{{Quantity: 10}, {Quantity: 0}}},
		"cancelled":     {ItemNo: "20", Parts: []SplitPart{{Quantity: 1}, {Quantity: 1}}},
		"delivered":     {ItemNo: "30", Parts: []SplitPart{{Quantity: 1}, {Quantity: 1}}},
		"unknown":       {ItemNo: "77", Parts: []SplitPart{{Quantity: 1}, {Quantity: 1}}},
		"not in ledger": {ItemNo: "50", Parts: []SplitPart{{Quantity: 1}, {Quantity: 1}}},
	} {
		assert.Equal(t, failure.Validation, failure.KindOf(validateSplit(order, req)), name)
	}
}

func TestValidateCreate(t *testing.T) {
	ok := createRequest(line("MAT-1", 1))
	assert.NoError(t, validateCreate(ok))

	bad := ok
	bad.Type = "RETAIL"
	assert.Error(t, validateCreate(bad))

	bad = ok
	bad.ShipToCode = " "
	assert.Error(t, validateCreate(bad))

	bad = createRequest(LineInput{Quantity: 3})
	assert.Contains(t, validateCreate(bad).Error(), "material code")
}

func TestSagaTransitions(t *testing.T) {
	r := newResult(&model.Order{}, FeatureChangeOrder)
	r.to(StatePlannerRequested)
	r.to(StatePlannerFailed)
	assert.True(t, r.State.Terminal())
	assert.Panics(t, func() { r.to(StateLedgerApplied) })

	r = newResult(&model.Order{}, FeatureChangeOrder)
	assert.Panics(t, func() { r.to(StateCommitted) })
}
