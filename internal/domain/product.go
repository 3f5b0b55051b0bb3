package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// jsonNumber renders an amount as a bare JSON number. Amounts are encoded
// through it field by field so the package-wide decimal setting is untouched.
func jsonNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// Category groups products in the catalog
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Photo is the binary product image together with its content type
type Photo struct {
	Data        []byte
	ContentType string
}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Slug        string          `json:"slug" db:"slug"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CategoryID  uuid.UUID       `json:"category_id" db:"category_id"`
	Category    *Category       `json:"category,omitempty" db:"-"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Shipping    bool            `json:"shipping" db:"shipping"`
	HasPhoto    bool            `json:"has_photo" db:"-"`
	Photo       *Photo          `json:"-" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(p), jsonNumber(p.Price)})
}

// Snapshot copies the fields an order keeps about a product at purchase time
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
	}
}

// ProductSnapshot is the copy of a product stored with an order or cart
type ProductSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

func (s ProductSnapshot) MarshalJSON() ([]byte, error) {
	type plain ProductSnapshot
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain(s), jsonNumber(s.Price)})
}

// PriceRange bounds a product filter; a nil bound is open
type PriceRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// ProductFilter selects products by category and price
type ProductFilter struct {
	CategoryIDs []uuid.UUID
	Price       PriceRange
}
