// Package checkout drives the client side of a payment: fetch a client
// token, set up the hosted payment widget, then exchange a one-time nonce
// for an order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"storefront/internal/appstate"
	"storefront/internal/client"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	TokenRequested
	TokenError
	WidgetReady
	WidgetError
	ReadyToPay
	Submitting
	Settled
	Failed
)

var stateNames = map[State]string{
	Idle:           "Idle",
	TokenRequested: "TokenRequested",
	TokenError:     "TokenError",
	WidgetReady:    "WidgetReady",
	WidgetError:    "WidgetError",
	ReadyToPay:     "ReadyToPay",
	Submitting:     "Submitting",
	Settled:        "Settled",
	Failed:         "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrSubmitting is returned by Pay while a payment is in flight
	ErrSubmitting = errors.New("payment already in progress")

	ErrNoWidget = errors.New("payment widget not initialized")
)

// InvalidTransitionError is returned when an action is not allowed in the
// current state
type InvalidTransitionError struct {
	Action string
	From   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Action, e.From)
}

// GuardError explains why Pay refused to start. The machine stays in
// ReadyToPay.
type GuardError struct {
	Message string
}

func (e *GuardError) Error() string { return e.Message }

// API is the part of the REST client the checkout needs
type API interface {
	ClientToken(ctx context.Context) (string, error)
	Pay(ctx context.Context, req client.PayRequest) (*domain.Order, error)
}

// Widget is the hosted payment-method widget. Setup may be called again
// after Teardown.
type Widget interface {
	Setup(ctx context.Context, clientToken string) error
	// RequestNonce returns a one-time nonce for the selected payment method
	RequestNonce(ctx context.Context) (string, error)
	Teardown() error
}

// Observer is told about every state change, including the transient
// Failed state between a failed payment and ReadyToPay
type Observer func(from, to State)

type Machine struct {
	mu          sync.Mutex
	state       State
	api         API
	widget      Widget
	app         *appstate.State
	logger      *zap.Logger
	observer    Observer
	clientToken string
	widgetLive  bool
	lastErr     error
	attemptKey  string
	lastOrder   *domain.Order
}

// New creates a machine in the Idle state
func New(api API, widget Widget, app *appstate.State, logger *zap.Logger) *Machine {
	return &Machine{
		state:  Idle,
		api:    api,
		widget: widget,
		app:    app,
		logger: logger,
	}
}

// SetObserver installs fn as the transition observer; nil removes it
func (m *Machine) SetObserver(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// transition must be called with mu held
func (m *Machine) transition(to State) {
	from := m.state
	m.state = to
	m.logger.Debug("Checkout state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if m.observer != nil {
		m.observer(from, to)
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error of the most recent failed step, or nil
func (m *Machine) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Machine) ClientToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientToken
}

// Order returns the order recorded by the last settled payment
func (m *Machine) Order() *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOrder
}

// RequestToken fetches a fresh client token from the server
func (m *Machine) RequestToken(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Idle, TokenError, WidgetError, ReadyToPay, Settled:
	default:
		from := m.state
		m.mu.Unlock()
		return &InvalidTransitionError{Action: "request token", From: from}
	}
	m.transition(TokenRequested)
	m.mu.Unlock()

	token, err := m.api.ClientToken(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.lastErr = fmt.Errorf("failed to get client token: %w", err)
		m.transition(TokenError)
		return m.lastErr
	}
	m.clientToken = token
	m.lastErr = nil
	m.transition(WidgetReady)
	return nil
}

// InitWidget sets up the payment widget with the current client token. An
// already running widget is torn down first, so calling it again is safe.
func (m *Machine) InitWidget(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case WidgetReady, WidgetError, ReadyToPay:
	default:
		return &InvalidTransitionError{Action: "initialize widget", From: m.state}
	}

	if m.widgetLive {
		if err := m.widget.Teardown(); err != nil {
			m.logger.Warn("Failed to tear down payment widget", zap.Error(err))
		}
		m.widgetLive = false
	}

	if err := m.widget.Setup(ctx, m.clientToken); err != nil {
		m.lastErr = fmt.Errorf("failed to initialize payment widget: %w", err)
		m.transition(WidgetError)
		return m.lastErr
	}
	m.widgetLive = true
	m.lastErr = nil
	m.transition(ReadyToPay)
	return nil
}

// guard checks the preconditions of a payment; mu must be held
func (m *Machine) guard() error {
	if !m.app.Session.Authenticated() {
		return &GuardError{Message: "please sign in to check out"}
	}
	if m.app.Cart.Len() == 0 {
		return &GuardError{Message: "your cart is empty"}
	}
	if user := m.app.Session.User(); user == nil || user.Address == "" {
		return &GuardError{Message: "please add a delivery address to your profile"}
	}
	if !m.widgetLive {
		return &GuardError{Message: ErrNoWidget.Error()}
	}
	return nil
}

// Pay submits the cart. It is only allowed from ReadyToPay; while a payment
// is being submitted it returns ErrSubmitting.
func (m *Machine) Pay(ctx context.Context) (*domain.Order, error) {
	m.mu.Lock()
	if m.state == Submitting {
		m.mu.Unlock()
		return nil, ErrSubmitting
	}
	if m.state != ReadyToPay {
		from := m.state
		m.mu.Unlock()
		return nil, &InvalidTransitionError{Action: "pay", From: from}
	}
	if err := m.guard(); err != nil {
		m.lastErr = err
		m.mu.Unlock()
		return nil, err
	}
	if m.attemptKey == "" {
		m.attemptKey = uuid.NewString()
	}
	key := m.attemptKey
	m.transition(Submitting)
	m.mu.Unlock()

	order, err := m.submit(ctx, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if isFinalAnswer(err) {
			m.attemptKey = ""
		}
		m.lastErr = err
		m.transition(Failed)
		m.transition(ReadyToPay)
		return nil, err
	}

	m.attemptKey = ""
	m.lastErr = nil
	m.lastOrder = order
	if err := m.app.Cart.Clear(); err != nil {
		m.logger.Warn("Failed to clear cart after checkout", zap.Error(err))
	}
	if m.widgetLive {
		if err := m.widget.Teardown(); err != nil {
			m.logger.Warn("Failed to tear down payment widget", zap.Error(err))
		}
		m.widgetLive = false
	}
	m.transition(Settled)
	return order, nil
}

// isFinalAnswer reports whether the server settled the attempt without
// charging. Transport errors, 409 (an earlier request with the same key still
// holds the lock), 429 and 5xx leave the outcome open, so the key is kept and
// a retry replays the original attempt.
func isFinalAnswer(err error) bool {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.StatusCode {
	case http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// submit runs outside the lock; every attempt asks the widget for a fresh
// nonce since a nonce is spent by the first charge that uses it
func (m *Machine) submit(ctx context.Context, key string) (*domain.Order, error) {
	nonce, err := m.widget.RequestNonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment nonce: %w", err)
	}

	order, err := m.api.Pay(ctx, client.PayRequest{
		Nonce:          nonce,
		Cart:           m.app.Cart.Items(),
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("payment accepted but no order returned")
	}

	m.logger.Info("Checkout settled", zap.Stringer("order_id", order.ID), zap.String("amount", order.Amount.StringFixed(2)))
	return order, nil
}
