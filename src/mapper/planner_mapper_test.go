package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/model"
)

func TestRequiresPlanner(t *testing.T) {
	line := &model.OrderLine{ProductGroup: "K01"}
	assert.True(t, RequiresPlanner(line, []string{"k01", "K09"}))
	assert.False(t, RequiresPlanner(line, []string{"K09"}))
	assert.False(t, RequiresPlanner(nil, []string{"K01"}))
}

func TestBuildPlannerRequest(t *testing.T) {
	req := time.Date(2024, 2, 20, 15, 0, 0, 0, time.UTC)
	order := &model.Order{ID: 3, ShipToCode: "SH-01"}
	lines := []model.OrderLine{
		{ItemNo: "10", MaterialCode: "MAT-1", Quantity: 100, Unit: "TON", InquiryMethod: "ASAP", RequestDate: &req},
		{ItemNo: "20", MaterialCode: "MAT-2", Quantity: 5, Unit: "TON"},
	}

	out := BuildPlannerRequest(order, []LineRequest{
		{Line: &lines[0], RequestType: model.RequestTypeNew},
		{Line: &lines[1], RequestType: model.RequestTypeDelete},
	})

	assert.Equal(t, "EO00000003", out.HeaderCode)
	require.Len(t, out.Lines, 2)
	assert.Equal(t, "10", out.Lines[0].LineNumber)
	assert.Equal(t, "SH-01", out.Lines[0].LocationCode)
	assert.Equal(t, "MAT-1", out.Lines[0].ProductCode)
	assert.Equal(t, "2024-02-20T00:00:00.000Z", out.Lines[0].RequestDate)
	assert.Equal(t, model.RequestTypeNew, out.Lines[0].RequestType)
	assert.Equal(t, "", out.Lines[1].RequestDate)
	assert.Equal(t, model.RequestTypeDelete, out.Lines[1].RequestType)
}
