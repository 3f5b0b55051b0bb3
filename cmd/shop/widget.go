package main

import (
	"context"
	"errors"
)

// terminalWidget stands in for the hosted drop-in: the shopper pastes a
// nonce, or passes one with --nonce. Sandbox accepts "fake-valid-nonce".
type terminalWidget struct {
	shop  *shop
	nonce string
	token string
}

func (w *terminalWidget) Setup(ctx context.Context, clientToken string) error {
	if clientToken == "" {
		return errors.New("empty client token")
	}
	w.token = clientToken
	return nil
}

func (w *terminalWidget) RequestNonce(ctx context.Context) (string, error) {
	if w.token == "" {
		return "", errors.New("widget not set up")
	}
	if w.nonce != "" {
		n := w.nonce
		w.nonce = ""
		return n, nil
	}
	n, err := w.shop.prompt("Payment nonce")
	if err != nil {
		return "", err
	}
	if n == "" {
		return "", errors.New("no payment method selected")
	}
	return n, nil
}

func (w *terminalWidget) Teardown() error {
	w.token = ""
	return nil
}
