package locks

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

type Config struct {
	Backend       string `envconfig:"LOCK_BACKEND" default:"local"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
