package payment

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/config"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type braintreeGateway struct {
	bt     *braintree.Braintree
	logger *zap.Logger
}

// NewBraintreeGateway creates a Gateway backed by the Braintree API
func NewBraintreeGateway(cfg config.BraintreeConfig, logger *zap.Logger) (Gateway, error) {
	env, err := Environment(cfg.Environment)
	if err != nil {
		return nil, err
	}

	if cfg.MerchantID == "" || cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("braintree merchant id, public key and private key are required")
	}

	return &braintreeGateway{
		bt:     braintree.New(env, cfg.MerchantID, cfg.PublicKey, cfg.PrivateKey),
		logger: logger,
	}, nil
}

// Environment maps a configured environment name to the Braintree endpoint
func Environment(name string) (braintree.Environment, error) {
	switch strings.ToLower(name) {
	case "", "sandbox":
		return braintree.Sandbox, nil
	case "production":
		return braintree.Production, nil
	default:
		return braintree.Environment{}, fmt.Errorf("unknown braintree environment %q", name)
	}
}

func (g *braintreeGateway) IssueClientToken(ctx context.Context) (string, error) {
	token, err := g.bt.ClientToken().Generate(ctx)
	if err != nil {
		g.logger.Error("Failed to generate client token", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return token, nil
}

func (g *braintreeGateway) Charge(ctx context.Context, nonce string, amount decimal.Decimal, orderRef string) (*Transaction, error) {
	tx, err := g.bt.Transaction().Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             ToBraintree(amount),
		PaymentMethodNonce: nonce,
		OrderId:            orderRef,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	})
	if err != nil {
		g.logger.Warn("Charge declined",
			zap.String("order_ref", orderRef),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		)
		return nil, &GatewayError{Message: err.Error(), Err: err}
	}

	g.logger.Info("Charge accepted",
		zap.String("order_ref", orderRef),
		zap.String("transaction_id", tx.Id),
		zap.String("status", string(tx.Status)),
	)

	return &Transaction{
		ID:       tx.Id,
		Status:   string(tx.Status),
		Type:     tx.Type,
		Amount:   FromBraintree(tx.Amount, amount),
		Currency: tx.CurrencyISOCode,
	}, nil
}

func (g *braintreeGateway) Void(ctx context.Context, transactionID string) error {
	if _, err := g.bt.Transaction().Void(ctx, transactionID); err != nil {
		return &GatewayError{Message: err.Error(), Err: err}
	}
	g.logger.Info("Transaction voided", zap.String("transaction_id", transactionID))
	return nil
}

// ToBraintree converts an amount to the gateway's fixed-point representation in cents
func ToBraintree(amount decimal.Decimal) *braintree.Decimal {
	cents := amount.Round(2).Shift(2).IntPart()
	return braintree.NewDecimal(cents, 2)
}

// FromBraintree converts a gateway amount back, falling back when the gateway omitted it
func FromBraintree(d *braintree.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d == nil {
		return fallback
	}
	return decimal.New(d.Unscaled, -int32(d.Scale))
}
