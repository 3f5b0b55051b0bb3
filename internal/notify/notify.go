// Package notify sends transactional order e-mails.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"storefront/internal/config"
	"storefront/internal/domain"

	"go.uber.org/zap"
)

// Notifier tells buyers about their orders
type Notifier interface {
	OrderPlaced(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error
}

// Message is a rendered e-mail
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message through a provider
type Sender interface {
	Send(ctx context.Context, from string, msg Message) error
}

type mailer struct {
	sender Sender
	from   string
	logger *zap.Logger
}

// New creates a Notifier for the configured provider. Provider "none" (or an
// empty provider) returns a Notifier that only logs.
func New(cfg config.EmailConfig, logger *zap.Logger) (Notifier, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return NewMailer(nopSender{logger: logger}, cfg.Sender, logger), nil
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_SERVER_TOKEN is required for the postmark provider")
		}
		return NewMailer(NewPostmarkSender(cfg.PostmarkToken), cfg.Sender, logger), nil
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return NewMailer(NewSendGridSender(cfg.SendGridAPIKey), cfg.Sender, logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// NewMailer creates a Notifier that renders order e-mails and hands them to sender
func NewMailer(sender Sender, from string, logger *zap.Logger) Notifier {
	return &mailer{sender: sender, from: from, logger: logger}
}

func (m *mailer) OrderPlaced(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error {
	return m.send(ctx, orderPlacedMessage(buyer, order), order)
}

func (m *mailer) OrderStatusChanged(ctx context.Context, buyer domain.BuyerSummary, order *domain.Order) error {
	return m.send(ctx, statusChangedMessage(buyer, order), order)
}

func (m *mailer) send(ctx context.Context, msg Message, order *domain.Order) error {
	if msg.To == "" {
		return fmt.Errorf("order %s has no buyer e-mail", order.ID)
	}

	if err := m.sender.Send(ctx, m.from, msg); err != nil {
		m.logger.Error("Failed to send order e-mail",
			zap.String("order_id", order.ID.String()),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Order e-mail sent",
		zap.String("order_id", order.ID.String()),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func orderPlacedMessage(buyer domain.BuyerSummary, order *domain.Order) Message {
	var items strings.Builder
	var lines strings.Builder
	for _, p := range order.Products {
		fmt.Fprintf(&items, "<li>%s: $%s</li>", html.EscapeString(p.Name), p.Price.StringFixed(2))
		fmt.Fprintf(&lines, "- %s: $%s\n", p.Name, p.Price.StringFixed(2))
	}

	return Message{
		To:      buyer.Email,
		Subject: "Order Confirmation",
		HTML: fmt.Sprintf(
			"<strong>Dear %s,</strong><br><br>Thank you for your purchase! Your order (ID: %s) has been placed.<ul>%s</ul>Total Amount: <strong>$%s</strong><br>Transaction: %s",
			html.EscapeString(buyer.Name),
			order.ID,
			items.String(),
			order.Amount.StringFixed(2),
			html.EscapeString(order.Payment.TransactionID),
		),
		Text: fmt.Sprintf(
			"Dear %s,\n\nThank you for your purchase! Your order (ID: %s) has been placed.\n\n%s\nTotal Amount: $%s\nTransaction: %s\n",
			buyer.Name,
			order.ID,
			lines.String(),
			order.Amount.StringFixed(2),
			order.Payment.TransactionID,
		),
	}
}

func statusChangedMessage(buyer domain.BuyerSummary, order *domain.Order) Message {
	return Message{
		To:      buyer.Email,
		Subject: "Order Status Update",
		HTML: fmt.Sprintf(
			"<strong>Dear %s,</strong><br><br>Your order (ID: %s) is now <strong>%s</strong>.",
			html.EscapeString(buyer.Name),
			order.ID,
			html.EscapeString(string(order.Status)),
		),
		Text: fmt.Sprintf("Dear %s,\n\nYour order (ID: %s) is now %s.\n", buyer.Name, order.ID, order.Status),
	}
}

type nopSender struct {
	logger *zap.Logger
}

func (s nopSender) Send(_ context.Context, _ string, msg Message) error {
	s.logger.Debug("E-mail delivery disabled, dropping message",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
