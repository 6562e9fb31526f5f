package mapper

import (
	"time"

	"ordersaga/src/connectors"
	"ordersaga/src/model"
)

const (
	UpdateFlagInsert = "I"
	UpdateFlagUpdate = "U"
	UpdateFlagDelete = "D"
)

const (
	TextIDItemRemark   = "Z001"
	TextIDHeaderRemark = "Z016"
	textLanguage       = "EN"
)

// ItemField is a Ledger item attribute the saga may change.
type ItemField int

const (
	ItemMaterial ItemField = iota
	ItemTargetQty
	ItemSalesUnit
	ItemPlant
	ItemCategory
	ItemReasonReject
)

// ScheduleField is a Ledger schedule line attribute the saga may change.
type ScheduleField int

const (
	ScheduleReqDate ScheduleField = iota
	ScheduleReqQty
	ScheduleConfirmQty
)

// HeaderField is a Ledger header attribute.
type HeaderField int

const (
	HeaderSalesOrg HeaderField = iota
	HeaderDistributionChannel
	HeaderDivision
	HeaderPONumber
	HeaderContractNo
	HeaderOrderType
)

// The external names, in emission order.
var itemFieldTable = []struct {
	Field ItemField
	Name  string
}{
	{ItemMaterial, "material"},
	{ItemTargetQty, "targetQty"},
	{ItemSalesUnit, "salesUnit"},
	{ItemPlant, "plant"},
	{ItemCategory, "itemCategory"},
	{ItemReasonReject, "reasonReject"},
}

var scheduleFieldTable = []struct {
	Field ScheduleField
	Name  string
}{
	{ScheduleReqDate, "reqDate"},
	{ScheduleReqQty, "reqQty"},
	{ScheduleConfirmQty, "confirmQty"},
}

var headerFieldTable = []struct {
	Field HeaderField
	Name  string
}{
	{HeaderSalesOrg, "salesOrg"},
	{HeaderDistributionChannel, "distrChan"},
	{HeaderDivision, "division"},
	{HeaderPONumber, "purchNo"},
	{HeaderContractNo, "refDoc"},
	{HeaderOrderType, "docType"},
}

// ItemChange lists the changed fields of one line. Fields absent from the maps are
// not sent.
type ItemChange struct {
	ItemNo     string
	UpdateFlag string
	Item       map[ItemField]interface{}
	Schedule   map[ScheduleField]interface{}
	Remark     *string
}

// BuildItem emits the item row and its flag row.
func BuildItem(c ItemChange) (in, inx map[string]interface{}) {
	itemNo := model.PadItemNo(c.ItemNo)
	in = map[string]interface{}{"itemNumber": itemNo}
	inx = map[string]interface{}{"itemNumber": itemNo, "updateflag": c.UpdateFlag}
	for _, f := range itemFieldTable {
		v, ok := c.Item[f.Field]
		if !ok {
			continue
		}
		in[f.Name] = v
		inx[f.Name] = "X"
	}
	return in, inx
}

// BuildSchedule emits the schedule row and its flag row, nil when nothing changed.
func BuildSchedule(c ItemChange) (in, inx map[string]interface{}) {
	if len(c.Schedule) == 0 {
		return nil, nil
	}
	itemNo := model.PadItemNo(c.ItemNo)
	in = map[string]interface{}{"itemNumber": itemNo, "scheduleLine": "0001"}
	inx = map[string]interface{}{"itemNumber": itemNo, "scheduleLine": "0001", "updateflag": c.UpdateFlag}
	for _, f := range scheduleFieldTable {
		v, ok := c.Schedule[f.Field]
		if !ok {
			continue
		}
		if t, isTime := v.(time.Time); isTime {
			v = FormatLedgerDate(t)
		}
		in[f.Name] = v
		inx[f.Name] = "X"
	}
	return in, inx
}

// BuildHeader emits the header row and its flag row for the given fields.
func BuildHeader(values map[HeaderField]interface{}, updateFlag string) (in, inx map[string]interface{}) {
	in = map[string]interface{}{}
	inx = map[string]interface{}{"updateflag": updateFlag}
	for _, f := range headerFieldTable {
		v, ok := values[f.Field]
		if !ok {
			continue
		}
		in[f.Name] = v
		inx[f.Name] = "X"
	}
	return in, inx
}

// HeaderValues returns every header field of the order, used on create.
func HeaderValues(order *model.Order) map[HeaderField]interface{} {
	return map[HeaderField]interface{}{
		HeaderSalesOrg:            order.SalesOrg,
		HeaderDistributionChannel: order.DistributionChannel,
		HeaderDivision:            order.Division,
		HeaderPONumber:            order.PONumber,
		HeaderContractNo:          order.ContractNo,
		HeaderOrderType:           order.Type,
	}
}

// NewItem describes a line the Ledger has not seen before.
func NewItem(line *model.OrderLine, qty float64, plant string, date *time.Time, confirmQty float64) ItemChange {
	c := ItemChange{
		ItemNo:     line.ItemNo,
		UpdateFlag: UpdateFlagInsert,
		Item: map[ItemField]interface{}{
			ItemMaterial:  line.MaterialCode,
			ItemTargetQty: qty,
			ItemSalesUnit: line.Unit,
			ItemPlant:     plant,
		},
		Schedule: map[ScheduleField]interface{}{
			ScheduleReqQty:     qty,
			ScheduleConfirmQty: confirmQty,
		},
	}
	if line.ItemCategory != "" {
		c.Item[ItemCategory] = line.ItemCategory
	}
	if date != nil {
		c.Schedule[ScheduleReqDate] = *date
	}
	if line.Remark != "" {
		remark := line.Remark
		c.Remark = &remark
	}
	return c
}

// AmendItem describes a quantity, plant or date change on an existing line. Only
// values that differ from the line as last accepted are emitted.
func AmendItem(before *model.OrderLine, qty float64, plant string, date *time.Time, confirmQty float64) ItemChange {
	c := ItemChange{
		ItemNo:     before.ItemNo,
		UpdateFlag: UpdateFlagUpdate,
		Item:       map[ItemField]interface{}{},
		Schedule:   map[ScheduleField]interface{}{},
	}
	if qty != before.Quantity {
		c.Item[ItemTargetQty] = qty
		c.Schedule[ScheduleReqQty] = qty
	}
	if plant != "" && plant != before.Plant {
		c.Item[ItemPlant] = plant
	}
	if date != nil && (before.RequestDate == nil || !sameDay(*date, *before.RequestDate)) {
		c.Schedule[ScheduleReqDate] = *date
	}
	if confirmQty != before.AssignedQuantity {
		c.Schedule[ScheduleConfirmQty] = confirmQty
	}
	return c
}

// RejectItem cancels a line on the Ledger side by giving it a reject reason. An empty
// reason restores it.
func RejectItem(line *model.OrderLine, reason string) ItemChange {
	return ItemChange{
		ItemNo:     line.ItemNo,
		UpdateFlag: UpdateFlagUpdate,
		Item:       map[ItemField]interface{}{ItemReasonReject: reason},
	}
}

// BuildLedgerRequest assembles a create (OrderNo empty) or change document.
func BuildLedgerRequest(order *model.Order, changes []ItemChange) connectors.LedgerOrderRequest {
	req := connectors.LedgerOrderRequest{
		OrderNo:      order.OrderNo,
		HeaderCode:   order.HeaderCode(),
		Items:        make([]map[string]interface{}, 0, len(changes)),
		ItemsInx:     make([]map[string]interface{}, 0, len(changes)),
		Schedules:    []map[string]interface{}{},
		SchedulesInx: []map[string]interface{}{},
	}

	if order.OrderNo == "" {
		req.Header, req.HeaderInx = BuildHeader(HeaderValues(order), UpdateFlagInsert)
		req.Partners = []connectors.LedgerPartner{
			{Role: "AG", Code: order.SoldToCode},
			{Role: "WE", Code: order.ShipToCode},
		}
		if order.Remark != "" {
			req.Texts = append(req.Texts, connectors.LedgerText{ItemNo: "000000", TextID: TextIDHeaderRemark, Language: textLanguage, Text: order.Remark})
		}
	} else {
		req.Header, req.HeaderInx = BuildHeader(nil, UpdateFlagUpdate)
	}

	for _, c := range changes {
		in, inx := BuildItem(c)
		req.Items = append(req.Items, in)
		req.ItemsInx = append(req.ItemsInx, inx)
		if sin, sinx := BuildSchedule(c); sin != nil {
			req.Schedules = append(req.Schedules, sin)
			req.SchedulesInx = append(req.SchedulesInx, sinx)
		}
		if c.Remark != nil {
			req.Texts = append(req.Texts, connectors.LedgerText{
				ItemNo:   model.PadItemNo(c.ItemNo),
				TextID:   TextIDItemRemark,
				Language: textLanguage,
				Text:     *c.Remark,
			})
		}
	}
	return req
}

func FormatLedgerDate(t time.Time) string {
	return t.Format(connectors.LedgerDateLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
