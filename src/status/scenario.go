package status

import "ordersaga/src/model"

// Scenario is the editability tier of a line.
type Scenario int

const (
	ScenarioNone Scenario = iota // no active tier, not an error
	Scenario1
	Scenario2
	Scenario3
)

var productionScenario = map[string]Scenario{
	model.ProductionStatusUnallocated:  Scenario1,
	model.ProductionStatusAllocated:    Scenario1,
	model.ProductionStatusConfirmed:    Scenario1,
	model.ProductionStatusCloseLoop:    Scenario2,
	model.ProductionStatusTrimmed:      Scenario2,
	model.ProductionStatusInProduction: Scenario2,
	model.ProductionStatusCompleted:    Scenario3,
}

var itemScenario = map[string]Scenario{
	model.ItemStatusCreated:             Scenario1,
	model.ItemStatusAllocatedNonConfirm: Scenario1,
	model.ItemStatusConfirm:             Scenario1,
	model.ItemStatusCloseLoop:           Scenario2,
	model.ItemStatusXTrim:               Scenario2,
	model.ItemStatusProducing:           Scenario2,
	model.ItemStatusFullCommittedOrder:  Scenario3,
	model.ItemStatusCompletedProduction: Scenario3,
}

// DeriveItemScenario picks the tier from the production status for CTP lines and
// from the English item status otherwise.
func DeriveItemScenario(line *model.OrderLine) Scenario {
	if line == nil {
		return ScenarioNone
	}
	if line.IsCTP() {
		return productionScenario[line.ProductionStatus]
	}
	return itemScenario[line.ItemStatusEN]
}

// IsInquiryMethodEditable reports whether the inquiry method of the line may change.
func IsInquiryMethodEditable(line *model.OrderLine) bool {
	if line == nil {
		return false
	}
	if line.IsCTP() {
		s := DeriveItemScenario(line)
		return s != Scenario2 && s != Scenario3
	}
	switch line.ItemStatusEN {
	case model.ItemStatusPartialDelivery, model.ItemStatusCompleteDelivery, model.ItemStatusCancel:
		return false
	}
	return true
}
