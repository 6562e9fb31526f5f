package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PlannerBaseURL     string `envconfig:"PLANNER_BASE_URL" default:"http://localhost:9101"`
	PlannerRequestPath string `envconfig:"PLANNER_REQUEST_PATH" default:"/api/v1/iplan/request"`
	PlannerConfirmPath string `envconfig:"PLANNER_CONFIRM_PATH" default:"/api/v1/iplan/confirm"`

	LedgerBaseURL    string `envconfig:"LEDGER_BASE_URL" default:"http://localhost:9102"`
	LedgerCreatePath string `envconfig:"LEDGER_CREATE_PATH" default:"/api/v1/sales-orders/create"`
	LedgerChangePath string `envconfig:"LEDGER_CHANGE_PATH" default:"/api/v1/sales-orders/change"`

	ExternalTimeout       time.Duration `envconfig:"EXTERNAL_TIMEOUT" default:"30s"`
	ExternalRetryAttempts int           `envconfig:"EXTERNAL_RETRY_ATTEMPTS" default:"3"`
	ExternalRetryWait     time.Duration `envconfig:"EXTERNAL_RETRY_WAIT" default:"500ms"`
	ExternalSender        string        `envconfig:"EXTERNAL_SENDER" default:"ordersaga"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
