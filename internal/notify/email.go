package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"sale_inviter/internal/domain"
)

// Dialer sends prepared messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Email sends one plain-text mail per notification.
type Email struct {
	dialer Dialer
	from   string
	to     string
	logger *slog.Logger
}

func NewEmail(cfg EmailConfig, logger *slog.Logger) *Email {
	return NewEmailWithDialer(
		gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg.From,
		cfg.To,
		logger,
	)
}

func NewEmailWithDialer(dialer Dialer, from, to string, logger *slog.Logger) *Email {
	return &Email{
		dialer: dialer,
		from:   from,
		to:     to,
		logger: logger.With("component", "email"),
	}
}

func (e *Email) Notify(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", n.Title)
	m.SetBody("text/plain", emailBody(n))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email for sale %s: %w", n.SaleID, err)
	}

	e.logger.Debug("email sent", "sale_id", n.SaleID, "kind", n.Kind)
	return nil
}

func emailBody(n domain.Notification) string {
	body := fmt.Sprintf("%s\n\nSale: %s\nProduct: %s\nGitHub user: %s\nRepository: %s/%s\n",
		n.Body, n.SaleID, n.Product, n.Username, n.Owner, n.Repo)
	if n.Error != "" {
		body += fmt.Sprintf("Status: %d\nError: %s\n", n.Status, n.Error)
	}
	return body
}
