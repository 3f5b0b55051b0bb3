// Package appstate bundles the client's session and cart. Views receive the
// State by pointer; persistence happens only through Load and the mutating
// methods of its parts.
package appstate

import (
	"errors"
	"fmt"

	"storefront/internal/cart"
	"storefront/internal/localstore"
	"storefront/internal/session"

	"go.uber.org/zap"
)

type State struct {
	Session *session.Session
	Cart    *cart.Cart
}

// Load restores both parts from store. A corrupt cart is logged and replaced
// by an empty one rather than failing start-up.
func Load(store localstore.Store, logger *zap.Logger) (*State, error) {
	sess, err := session.Load(store)
	if err != nil {
		return nil, err
	}

	c, err := cart.Load(store)
	if errors.Is(err, cart.ErrCorrupt) {
		logger.Warn("Discarding unreadable cart", zap.Error(err))
		if err := c.Clear(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return &State{Session: sess, Cart: c}, nil
}

// Logout signs out and empties the cart
func (s *State) Logout() error {
	if err := s.Session.SignOut(); err != nil {
		return err
	}
	if err := s.Cart.Clear(); err != nil {
		return fmt.Errorf("signed out but cart not cleared: %w", err)
	}
	return nil
}
