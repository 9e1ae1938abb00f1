// Package notify sends the end-of-run e-mail report.
package notify

import (
	"context"
	"strings"

	"github.com/agentstation/stocksync/pkg/errors"
	"github.com/agentstation/stocksync/pkg/logging"
	"github.com/agentstation/stocksync/pkg/runlog"
)

// Defaults applied when the config leaves a field unset.
const (
	DefaultSMTPPort      = 587
	DefaultSubjectPrefix = "[Inventory Sync]"
)

// Config is the e-mail section of the configuration.
type Config struct {
	SMTPHost      string   `mapstructure:"smtp_host" json:"smtp_host,omitempty" yaml:"smtp_host,omitempty"`
	SMTPPort      int      `mapstructure:"smtp_port" json:"smtp_port,omitempty" yaml:"smtp_port,omitempty"`
	Username      string   `mapstructure:"username" json:"username,omitempty" yaml:"username,omitempty"`
	Password      string   `mapstructure:"password" json:"-" yaml:"-"`
	From          string   `mapstructure:"from_email" json:"from_email,omitempty" yaml:"from_email,omitempty"`
	To            []string `mapstructure:"to_emails" json:"to_emails,omitempty" yaml:"to_emails,omitempty"`
	SubjectPrefix string   `mapstructure:"subject_prefix" json:"subject_prefix,omitempty" yaml:"subject_prefix,omitempty"`

	SendOnSuccess  bool `mapstructure:"send_on_success" json:"send_on_success" yaml:"send_on_success"`
	SendOnWarnings bool `mapstructure:"send_on_warnings" json:"send_on_warnings" yaml:"send_on_warnings"`
	SendOnErrors   bool `mapstructure:"send_on_errors" json:"send_on_errors" yaml:"send_on_errors"`
}

// DefaultConfig returns a disabled config with the default send policy.
func DefaultConfig() Config {
	return Config{
		SMTPPort:       DefaultSMTPPort,
		SubjectPrefix:  DefaultSubjectPrefix,
		SendOnSuccess:  false,
		SendOnWarnings: true,
		SendOnErrors:   true,
	}
}

// Enabled reports whether enough is configured to send mail. A host and a
// username are both required.
func (c Config) Enabled() bool {
	return c.SMTPHost != "" && c.Username != ""
}

// Normalize trims recipients, drops empty ones and fills defaults.
func (c Config) Normalize() Config {
	var to []string
	for _, addr := range c.To {
		for _, part := range strings.Split(addr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				to = append(to, part)
			}
		}
	}
	c.To = to
	if c.From == "" {
		c.From = c.Username
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = DefaultSMTPPort
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	return c
}

// Validate checks an enabled config. A disabled config is always valid.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if len(c.To) == 0 {
		return errors.NewConfigError("email", "to_emails is required when e-mail is enabled", nil)
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return &errors.ValidationError{Field: "email.smtp_port", Value: c.SMTPPort, Message: "must be between 1 and 65535"}
	}
	return nil
}

// ShouldSend applies the send policy to a run outcome. Errors and warnings
// are checked independently, so a run with both is sent when either flag
// allows it.
func (c Config) ShouldSend(hasErrors, hasWarnings bool) bool {
	switch {
	case hasErrors && c.SendOnErrors:
		return true
	case hasWarnings && c.SendOnWarnings:
		return true
	case !hasErrors && !hasWarnings && c.SendOnSuccess:
		return true
	}
	return false
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier turns a run log into a report and sends it when the policy allows.
type Notifier struct {
	cfg    Config
	sender Sender
}

// New creates a notifier. A nil sender uses SMTP with cfg.
func New(cfg Config, sender Sender) *Notifier {
	cfg = cfg.Normalize()
	if sender == nil {
		sender = NewSMTPSender(cfg)
	}
	return &Notifier{cfg: cfg, sender: sender}
}

// Notify sends the report for log. It reports whether a message was sent.
func (n *Notifier) Notify(ctx context.Context, log *runlog.Log) (bool, error) {
	logger := logging.FromContext(ctx)

	if !n.cfg.ShouldSend(log.HasErrors(), log.HasWarnings()) {
		logger.Debug().Str("status", log.ExitStatus().String()).Msg("E-mail report not required")
		return false, nil
	}

	msg := Message{
		From:    n.cfg.From,
		To:      n.cfg.To,
		Subject: Subject(n.cfg.SubjectPrefix, log),
		Body:    Body(log),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return false, errors.WrapResource("send", "e-mail report", strings.Join(n.cfg.To, ", "), err)
	}
	logger.Info().Strs("to", n.cfg.To).Msg("E-mail report sent")
	return true, nil
}
