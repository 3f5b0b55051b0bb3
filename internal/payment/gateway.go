package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable is returned when the gateway cannot issue a client token
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway is the hosted payment processor used at checkout
type Gateway interface {
	// IssueClientToken returns a fresh token for initializing the drop-in widget
	IssueClientToken(ctx context.Context) (string, error)
	// Charge runs a sale for amount and submits it for settlement. orderRef is
	// passed to the gateway as the merchant order id.
	Charge(ctx context.Context, nonce string, amount decimal.Decimal, orderRef string) (*Transaction, error)
	// Void cancels a transaction that has not settled yet
	Void(ctx context.Context, transactionID string) error
}

// Transaction is the gateway's record of a charge
type Transaction struct {
	ID       string
	Status   string
	Type     string
	Amount   decimal.Decimal
	Currency string
}

// GatewayError carries the processor's message for a declined or failed charge
type GatewayError struct {
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
