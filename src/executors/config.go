package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod       time.Duration `envconfig:"RETRY_LOOP_PERIOD" default:"1m"`
	MaxRetries       int           `envconfig:"RETRY_MAX" default:"5"`
	BatchSize        int           `envconfig:"RETRY_BATCH_SIZE" default:"100"`
	Concurrency      int           `envconfig:"RETRY_CONCURRENCY" default:"4"`
	LeaseTTL         time.Duration `envconfig:"RETRY_LEASE_TTL" default:"5m"`
	OrderLockTimeout time.Duration `envconfig:"RETRY_ORDER_LOCK_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
