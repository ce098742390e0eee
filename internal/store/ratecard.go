package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/pricing"
)

// RateCardRepo stores the singleton rate card.
type RateCardRepo struct {
	db db.DBTX
}

func NewRateCardRepo(d db.DBTX) *RateCardRepo {
	return &RateCardRepo{db: d}
}

func (r *RateCardRepo) Get(ctx context.Context) (pricing.RateCard, error) {
	var card pricing.RateCard
	var ucp, labour, price string
	err := r.db.QueryRowContext(ctx, `
		SELECT ucp_rate, default_labour_percentage, default_price_percentage, currency
		FROM rate_card WHERE id = 1`).Scan(&ucp, &labour, &price, &card.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.RateCard{}, fmt.Errorf("rate card: %w", ErrNotFound)
	}
	if err != nil {
		return pricing.RateCard{}, fmt.Errorf("get rate card: %w", err)
	}
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{{ucp, &card.UCPRate}, {labour, &card.DefaultLabourPercentage}, {price, &card.DefaultPricePercentage}} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return pricing.RateCard{}, fmt.Errorf("decode rate card value %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return card, nil
}

// Exists reports whether the rate card row is present.
func (r *RateCardRepo) Exists(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rate_card WHERE id = 1)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check rate card existence: %w", err)
	}
	return exists, nil
}

// Put inserts or replaces the rate card.
func (r *RateCardRepo) Put(ctx context.Context, card pricing.RateCard) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_card (id, ucp_rate, default_labour_percentage, default_price_percentage, currency, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			ucp_rate = excluded.ucp_rate,
			default_labour_percentage = excluded.default_labour_percentage,
			default_price_percentage = excluded.default_price_percentage,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		card.UCPRate.String(), card.DefaultLabourPercentage.String(), card.DefaultPricePercentage.String(),
		card.Currency, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("put rate card: %w", err)
	}
	return nil
}
