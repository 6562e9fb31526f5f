package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersaga/src/model"
)

func TestBuildItemEmitsOnlyChangedFields(t *testing.T) {
	in, inx := BuildItem(ItemChange{
		ItemNo:     "10",
		UpdateFlag: UpdateFlagUpdate,
		Item:       map[ItemField]interface{}{ItemTargetQty: 40.0},
	})

	assert.Equal(t, map[string]interface{}{"itemNumber": "000010", "targetQty": 40.0}, in)
	assert.Equal(t, map[string]interface{}{"itemNumber": "000010", "updateflag": "U", "targetQty": "X"}, inx)
}

func TestBuildScheduleFormatsDates(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in, inx := BuildSchedule(ItemChange{
		ItemNo:     "20",
		UpdateFlag: UpdateFlagInsert,
		Schedule:   map[ScheduleField]interface{}{ScheduleReqDate: d, ScheduleConfirmQty: 0.0},
	})
	assert.Equal(t, "01/03/2024", in["reqDate"])
	assert.Equal(t, 0.0, in["confirmQty"])
	assert.NotContains(t, in, "reqQty")
	assert.Equal(t, "X", inx["reqDate"])
	assert.Equal(t, "I", inx["updateflag"])

	in, inx = BuildSchedule(ItemChange{ItemNo: "20"})
	assert.Nil(t, in)
	assert.Nil(t, inx)
}

func TestAmendItemDiffs(t *testing.T) {
	req := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	before := &model.OrderLine{ItemNo: "10", Quantity: 100, Plant: "P1", RequestDate: &req, AssignedQuantity: 100}

	same := AmendItem(before, 100, "P1", &req, 100)
	assert.Empty(t, same.Item)
	assert.Empty(t, same.Schedule)

	later := req.AddDate(0, 0, 3)
	c := AmendItem(before, 60, "P2", &later, 0)
	assert.Equal(t, 60.0, c.Item[ItemTargetQty])
	assert.Equal(t, "P2", c.Item[ItemPlant])
	assert.Equal(t, later, c.Schedule[ScheduleReqDate])
	assert.Equal(t, 0.0, c.Schedule[ScheduleConfirmQty])
}

func TestBuildLedgerRequestCreate(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	order := &model.Order{ID: 9, Type: model.OrderTypeDomestic, SalesOrg: "0750", SoldToCode: "S1", ShipToCode: "S2", Remark: "urgent"}
	line := &model.OrderLine{ItemNo: "10", MaterialCode: "MAT-1", Unit: "TON", Remark: "cut to size"}

	req := BuildLedgerRequest(order, []ItemChange{NewItem(line, 100, "P1", &d, 100)})

	assert.Empty(t, req.OrderNo)
	assert.Equal(t, "EO00000009", req.HeaderCode)
	assert.Equal(t, "0750", req.Header["salesOrg"])
	assert.Equal(t, "I", req.HeaderInx["updateflag"])
	require.Len(t, req.Partners, 2)

	require.Len(t, req.Items, 1)
	assert.Equal(t, "MAT-1", req.Items[0]["material"])
	assert.Equal(t, "P1", req.Items[0]["plant"])
	require.Len(t, req.Schedules, 1)
	assert.Equal(t, "01/03/2024", req.Schedules[0]["reqDate"])

	require.Len(t, req.Texts, 2)
	assert.Equal(t, TextIDHeaderRemark, req.Texts[0].TextID)
	assert.Equal(t, TextIDItemRemark, req.Texts[1].TextID)
	assert.Equal(t, "000010", req.Texts[1].ItemNo)

	_, err := json.Marshal(req)
	require.NoError(t, err)
}

func TestBuildLedgerRequestReject(t *testing.T) {
	order := &model.Order{ID: 1, OrderNo: "0410000001"}
	line := &model.OrderLine{ItemNo: "20"}

	req := BuildLedgerRequest(order, []ItemChange{RejectItem(line, "93")})
	assert.Equal(t, "0410000001", req.OrderNo)
	assert.Equal(t, "U", req.HeaderInx["updateflag"])
	assert.Empty(t, req.Partners)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "93", req.Items[0]["reasonReject"])
	assert.Equal(t, "X", req.ItemsInx[0]["reasonReject"])
	assert.Empty(t, req.Schedules)
}
