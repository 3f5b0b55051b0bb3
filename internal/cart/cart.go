// Package cart holds the shopper's cart on the client. The cart is an
// ordered list of product snapshots; a product added twice appears twice.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"storefront/internal/domain"
	"storefront/internal/localstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StorageKey is where the serialized cart lives
const StorageKey = "cart"

// ErrCorrupt reports a persisted cart that could not be decoded. Load still
// returns a usable empty cart alongside it.
var ErrCorrupt = errors.New("stored cart is corrupt")

// Item is one cart entry
type Item = domain.ProductSnapshot

// Cart mirrors its persisted copy: every mutation is written to storage
// first and applied in memory only if the write succeeded
type Cart struct {
	mu    sync.Mutex
	store localstore.Store
	items []Item
}

// Load reads the persisted cart, starting empty when none is stored
func Load(store localstore.Store) (*Cart, error) {
	c := &Cart{store: store, items: []Item{}}

	data, ok, err := store.Get(StorageKey)
	if err != nil {
		return c, fmt.Errorf("failed to load cart: %w", err)
	}
	if !ok {
		return c, nil
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return c, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if items != nil {
		c.items = items
	}
	return c, nil
}

// persist writes next to storage; the caller swaps it in on success
func (c *Cart) persist(next []Item) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := c.store.Set(StorageKey, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Add appends item to the end of the cart
func (c *Cart) Add(item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Item, len(c.items), len(c.items)+1)
	copy(next, c.items)
	next = append(next, item)

	if err := c.persist(next); err != nil {
		return err
	}
	c.items = next
	return nil
}

// Remove drops the first entry with the given id and reports whether one
// was found. Later duplicates stay in the cart.
func (c *Cart) Remove(id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i, item := range c.items {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := make([]Item, 0, len(c.items)-1)
	next = append(next, c.items[:idx]...)
	next = append(next, c.items[idx+1:]...)

	if err := c.persist(next); err != nil {
		return false, err
	}
	c.items = next
	return true, nil
}

// Clear empties the cart and removes the persisted copy
func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(StorageKey); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	c.items = []Item{}
	return nil
}

// Items returns a copy of the cart contents in insertion order
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// IDs returns the product id of every entry, duplicates included
func (c *Cart) IDs() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]uuid.UUID, len(c.items))
	for i, item := range c.items {
		ids[i] = item.ID
	}
	return ids
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Total sums the snapshot prices
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.Price)
	}
	return total
}

// TotalPrice formats Total as US dollars, e.g. "$1,234.50"
func (c *Cart) TotalPrice() string {
	return FormatUSD(c.Total())
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders amount with a dollar sign, thousands separators and two
// decimals. The amount is rounded to cents before formatting.
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Round(2)
	sign := ""
	if cents.IsNegative() {
		sign = "-"
		cents = cents.Neg()
	}

	dollars, fraction, _ := strings.Cut(cents.StringFixed(2), ".")
	whole, err := strconv.ParseInt(dollars, 10, 64)
	if err != nil {
		return sign + "$" + cents.StringFixed(2)
	}
	return printer.Sprintf("%s$%d.%s", sign, whole, fraction)
}
