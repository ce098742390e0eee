// Package catalog is the read-only spare part reference table.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	maxPartNameLen  = 255
	minDeliveryDays = 1
	maxDeliveryDays = 365
)

var (
	ErrPartNameRequired = errors.New("part_name is required")
	ErrPartNameTooLong  = fmt.Errorf("part_name must be at most %d characters", maxPartNameLen)
	ErrDeliveryDays     = fmt.Errorf("estimated_delivery_days must be between %d and %d", minDeliveryDays, maxDeliveryDays)
	ErrNegativePrice    = errors.New("unit_price must be greater than or equal to 0")
)

// SparePart is a part that may be ordered for a repair.
type SparePart struct {
	ID                    string          `json:"id"`
	PartName              string          `json:"part_name"`
	Description           string          `json:"description"`
	EstimatedDeliveryDays *int            `json:"estimated_delivery_days"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
}

// Validate checks the entry rules for a part.
func (p SparePart) Validate() error {
	name := strings.TrimSpace(p.PartName)
	if name == "" {
		return ErrPartNameRequired
	}
	if utf8.RuneCountInString(name) > maxPartNameLen {
		return ErrPartNameTooLong
	}
	if d := p.EstimatedDeliveryDays; d != nil && (*d < minDeliveryDays || *d > maxDeliveryDays) {
		return ErrDeliveryDays
	}
	if p.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Catalog indexes a snapshot of parts by id.
type Catalog struct {
	parts map[string]SparePart
	order []string
}

// New indexes parts. Later duplicates replace earlier ones.
func New(parts []SparePart) *Catalog {
	c := &Catalog{parts: make(map[string]SparePart, len(parts))}
	for _, p := range parts {
		if _, seen := c.parts[p.ID]; !seen {
			c.order = append(c.order, p.ID)
		}
		c.parts[p.ID] = p
	}
	return c
}

// Part looks up a part by id.
func (c *Catalog) Part(id string) (SparePart, bool) {
	p, ok := c.parts[id]
	return p, ok
}

// DeliveryDaysFor returns the delivery estimate of a part. It reports false
// when the part is unknown or has no estimate.
func (c *Catalog) DeliveryDaysFor(id string) (int, bool) {
	p, ok := c.parts[id]
	if !ok || p.EstimatedDeliveryDays == nil {
		return 0, false
	}
	return *p.EstimatedDeliveryDays, true
}

// Parts returns the snapshot in its original order.
func (c *Catalog) Parts() []SparePart {
	out := make([]SparePart, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.parts[id])
	}
	return out
}
