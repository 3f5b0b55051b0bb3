package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type recordingSender struct {
	from     string
	messages []Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, from string, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.from = from
	s.messages = append(s.messages, msg)
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID: uuid.New(),
		Products: []domain.ProductSnapshot{
			{ID: uuid.New(), Name: "Mug <large>", Price: decimal.RequireFromString("10")},
			{ID: uuid.New(), Name: "Lamp", Price: decimal.RequireFromString("25")},
		},
		Amount:  decimal.RequireFromString("35"),
		Status:  domain.OrderStatusNotProcessed,
		Payment: domain.PaymentResult{TransactionID: "txn-1"},
	}
}

func TestMailer_OrderPlaced(t *testing.T) {
	sender := &recordingSender{}
	n := NewMailer(sender, "shop@example.com", zap.NewNop())

	buyer := domain.BuyerSummary{Name: "Ada", Email: "ada@example.com"}
	if err := n.OrderPlaced(context.Background(), buyer, testOrder()); err != nil {
		t.Fatalf("OrderPlaced failed: %v", err)
	}

	if len(sender.messages) != 1 {
		t.Fatalf("Expected one message, got %d", len(sender.messages))
	}
	msg := sender.messages[0]

	if sender.from != "shop@example.com" || msg.To != "ada@example.com" {
		t.Errorf("Unexpected addressing: from=%q to=%q", sender.from, msg.To)
	}
	if !strings.Contains(msg.HTML, "$35.00") || !strings.Contains(msg.Text, "$35.00") {
		t.Error("Expected total in both bodies")
	}
	if !strings.Contains(msg.HTML, "Mug &lt;large&gt;") {
		t.Error("Product names must be escaped in the HTML body")
	}
	if !strings.Contains(msg.Text, "txn-1") {
		t.Error("Expected transaction id in text body")
	}
}

func TestMailer_OrderStatusChanged(t *testing.T) {
	sender := &recordingSender{}
	n := NewMailer(sender, "shop@example.com", zap.NewNop())

	order := testOrder()
	order.Status = domain.OrderStatusShipped

	if err := n.OrderStatusChanged(context.Background(), domain.BuyerSummary{Email: "ada@example.com"}, order); err != nil {
		t.Fatalf("OrderStatusChanged failed: %v", err)
	}
	if !strings.Contains(sender.messages[0].Text, "Shipped") {
		t.Error("Expected new status in message")
	}
}

func TestMailer_Errors(t *testing.T) {
	cause := errors.New("provider down")
	n := NewMailer(&recordingSender{err: cause}, "shop@example.com", zap.NewNop())

	err := n.OrderPlaced(context.Background(), domain.BuyerSummary{Email: "ada@example.com"}, testOrder())
	if !errors.Is(err, cause) {
		t.Errorf("Expected provider error to be wrapped, got %v", err)
	}

	if err := n.OrderPlaced(context.Background(), domain.BuyerSummary{}, testOrder()); err == nil {
		t.Error("Expected error without recipient")
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmailConfig
		wantErr bool
	}{
		{"none", config.EmailConfig{Provider: "none"}, false},
		{"empty", config.EmailConfig{}, false},
		{"postmark", config.EmailConfig{Provider: "postmark", PostmarkToken: "tok"}, false},
		{"postmark without token", config.EmailConfig{Provider: "postmark"}, true},
		{"sendgrid", config.EmailConfig{Provider: "sendgrid", SendGridAPIKey: "key"}, false},
		{"sendgrid without key", config.EmailConfig{Provider: "sendgrid"}, true},
		{"unknown", config.EmailConfig{Provider: "pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && n == nil {
				t.Error("Expected a notifier")
			}
		})
	}
}

func TestNew_NoneDropsMessages(t *testing.T) {
	n, err := New(config.EmailConfig{Provider: "none"}, zap.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := n.OrderPlaced(context.Background(), domain.BuyerSummary{Email: "a@b.c"}, testOrder()); err != nil {
		t.Errorf("Disabled notifier should not fail: %v", err)
	}
}
