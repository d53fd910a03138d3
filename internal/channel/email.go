package channel

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// EmailConfig configures the SMTP sender.
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// MailDialer abstracts gomail's dialer so tests can capture messages.
type MailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers over SMTP. A single attempt, no retry: the mail
// provider's own queueing handles transient failures downstream.
type EmailSender struct {
	config EmailConfig
	dialer MailDialer
	logger *logger.Logger
}

func NewEmailSender(config EmailConfig, logger *logger.Logger) *EmailSender {
	return &EmailSender{
		config: config,
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		logger: logger,
	}
}

// SetDialer replaces the SMTP dialer; used by tests.
func (s *EmailSender) SetDialer(d MailDialer) {
	s.dialer = d
}

func (s *EmailSender) Name() string { return model.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, target Target, msg Message) Result {
	if !s.config.Enabled || s.config.Host == "" || s.config.From == "" {
		return failure(model.ChannelEmail, model.DeliveryPathSMTP,
			apperrors.NewChannelUnavailable(model.ChannelEmail, fmt.Errorf("SMTP not configured")))
	}
	if target.Email == "" {
		return failure(model.ChannelEmail, model.DeliveryPathSMTP,
			fmt.Errorf("user %d has no email address", target.UserID))
	}
	if err := ctx.Err(); err != nil {
		return failure(model.ChannelEmail, model.DeliveryPathSMTP, err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", target.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return failure(model.ChannelEmail, model.DeliveryPathSMTP,
			apperrors.NewTransport(model.ChannelEmail, err))
	}
	return success(model.ChannelEmail, model.DeliveryPathSMTP, "")
}
