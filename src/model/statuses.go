package model

// Order statuses. Derived only, see status.DeriveOrderStatus.
const (
	OrderStatusReceived          = "RECEIVED"
	OrderStatusPartialCommitted  = "PARTIAL_COMMITTED"
	OrderStatusFullCommitted     = "FULL_COMMITTED"
	OrderStatusPartialDelivery   = "PARTIAL_DELIVERY"
	OrderStatusCompletedDelivery = "COMPLETED_DELIVERY"
	OrderStatusCancel            = "CANCEL"
)

// Item statuses (English side of the bilingual pair).
const (
	ItemStatusCreated             = "ITEM_CREATED"
	ItemStatusAllocatedNonConfirm = "ALLOCATED_NON_CONFIRM"
	ItemStatusConfirm             = "CONFIRM"
	ItemStatusCloseLoop           = "CLOSE_LOOP"
	ItemStatusXTrim               = "X_TRIM"
	ItemStatusProducing           = "PRODUCING"
	ItemStatusFullCommittedOrder  = "FULL_COMMITTED_ORDER"
	ItemStatusCompletedProduction = "COMPLETED_PRODUCTION"
	ItemStatusPartialDelivery     = "PARTIAL_DELIVERY"
	ItemStatusCompleteDelivery    = "COMPLETE_DELIVERY"
	ItemStatusCancel              = "CANCEL"
)

// Production statuses reported by the Planner for CTP lines.
const (
	ProductionStatusUnallocated  = "UNALLOCATED"
	ProductionStatusAllocated    = "ALLOCATED"
	ProductionStatusConfirmed    = "CONFIRMED"
	ProductionStatusCloseLoop    = "CLOSE_LOOP"
	ProductionStatusTrimmed      = "TRIMMED"
	ProductionStatusInProduction = "IN_PRODUCTION"
	ProductionStatusCompleted    = "COMPLETED"
)

var itemStatusThai = map[string]string{
	ItemStatusCreated:             "สร้างรายการ",
	ItemStatusAllocatedNonConfirm: "จัดสรรแล้วรอยืนยัน",
	ItemStatusConfirm:             "ยืนยันแล้ว",
	ItemStatusCloseLoop:           "ปิดลูป",
	ItemStatusXTrim:               "เอ็กซ์ทริม",
	ItemStatusProducing:           "กำลังผลิต",
	ItemStatusFullCommittedOrder:  "ยืนยันครบจำนวน",
	ItemStatusCompletedProduction: "ผลิตเสร็จ",
	ItemStatusPartialDelivery:     "ส่งบางส่วน",
	ItemStatusCompleteDelivery:    "ส่งครบแล้ว",
	ItemStatusCancel:              "ยกเลิก",
}

// ItemStatusThai returns the Thai label for an English item status, empty if unknown.
func ItemStatusThai(statusEN string) string {
	return itemStatusThai[statusEN]
}

// ItemStatuses lists every known English item status.
func ItemStatuses() []string {
	return []string{
		ItemStatusCreated,
		ItemStatusAllocatedNonConfirm,
		ItemStatusConfirm,
		ItemStatusCloseLoop,
		ItemStatusXTrim,
		ItemStatusProducing,
		ItemStatusFullCommittedOrder,
		ItemStatusCompletedProduction,
		ItemStatusPartialDelivery,
		ItemStatusCompleteDelivery,
		ItemStatusCancel,
	}
}
