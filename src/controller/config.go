package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Product groups planned by the Planner. Lines of other groups skip it.
	PlannerProductGroups []string      `envconfig:"PLANNER_PRODUCT_GROUPS" default:"K01,K02,K09,K10"`
	LedgerRejectReason   string        `envconfig:"LEDGER_REJECT_REASON" default:"93"`
	OrderLockTimeout     time.Duration `envconfig:"ORDER_LOCK_TIMEOUT" default:"30s"`
	OrderLockTTL         time.Duration `envconfig:"ORDER_LOCK_TTL" default:"5m"`
	// VAT charged on the order total.
	TaxRate decimal.Decimal `envconfig:"ORDER_TAX_RATE" default:"0.07"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
