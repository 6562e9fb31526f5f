// Package plugin is the seam for side channels the saga does not own, such as operator
// mail and tenant settings.
package plugin

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"
)

var ErrNoRecipients = errors.New("mail has no recipients")

type Mail struct {
	From    string
	To      []string
	Subject string
	Body    string
}

type Plugin interface {
	SendMail(ctx context.Context, mail Mail) error
	GetConfig(key string) (string, bool)
	// Operators lists who is told when background work gives up.
	Operators() []string
}

// LogPlugin writes mails to the log instead of delivering them.
type LogPlugin struct {
	cfg Config
	log *logger.Entry
}

func NewLogPlugin(cfg Config, log *logger.Entry) *LogPlugin {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	return &LogPlugin{cfg: cfg, log: log.WithField("component", "plugin")}
}

func (p *LogPlugin) SendMail(ctx context.Context, mail Mail) error {
	if len(mail.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if mail.From == "" {
		mail.From = p.cfg.MailSender
	}

	p.log.WithFields(map[string]interface{}{
		"from":    mail.From,
		"to":      strings.Join(mail.To, ","),
		"subject": mail.Subject,
	}).Info(mail.Body)
	return nil
}

func (p *LogPlugin) GetConfig(key string) (string, bool) {
	v, ok := p.cfg.Settings[key]
	return v, ok
}

func (p *LogPlugin) Operators() []string {
	return p.cfg.OperatorMails
}
