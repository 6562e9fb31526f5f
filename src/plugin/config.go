package plugin

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Settings is read as "key:value,key2:value2".
	Settings      map[string]string `envconfig:"PLUGIN_SETTINGS"`
	OperatorMails []string          `envconfig:"OPERATOR_MAILS" default:"order-ops@localhost"`
	MailSender    string            `envconfig:"MAIL_SENDER" default:"ordersaga@localhost"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
