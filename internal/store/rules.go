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

const pricingRuleColumns = `id, complaint_node_id, price_percentage, labour_percentage`

// PricingRuleRepo stores at most one rule per complaint node.
type PricingRuleRepo struct {
	db db.DBTX
}

func NewPricingRuleRepo(d db.DBTX) *PricingRuleRepo {
	return &PricingRuleRepo{db: d}
}

func (r *PricingRuleRepo) List(ctx context.Context) ([]pricing.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+pricingRuleColumns+` FROM pricing_rules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pricing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rules: %w", err)
	}
	return rules, nil
}

func (r *PricingRuleRepo) Get(ctx context.Context, id string) (pricing.Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pricingRuleColumns+` FROM pricing_rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.Rule{}, fmt.Errorf("pricing rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("get pricing rule %s: %w", id, err)
	}
	return rule, nil
}

// ExistsForNode reports whether a rule is keyed on the complaint node.
func (r *PricingRuleRepo) ExistsForNode(ctx context.Context, nodeID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pricing_rules WHERE complaint_node_id = ?`, nodeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pricing rules for %s: %w", nodeID, err)
	}
	return n > 0, nil
}

// Create inserts rule. A second rule for the same complaint node fails with
// ErrConflict.
func (r *PricingRuleRepo) Create(ctx context.Context, rule pricing.Rule) error {
	now := nowUTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pricing_rules (id, complaint_node_id, price_percentage, labour_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.ComplaintNodeID, rule.PricePercentage.String(), rule.LabourPercentage.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert pricing rule: %w", classify(err))
	}
	return nil
}

func (r *PricingRuleRepo) Update(ctx context.Context, rule pricing.Rule) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pricing_rules
		SET complaint_node_id = ?, price_percentage = ?, labour_percentage = ?, updated_at = ?
		WHERE id = ?`,
		rule.ComplaintNodeID, rule.PricePercentage.String(), rule.LabourPercentage.String(), nowUTC(), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update pricing rule: %w", classify(err))
	}
	return requireAffected(res, "pricing rule "+rule.ID)
}

func (r *PricingRuleRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pricing_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pricing rule: %w", err)
	}
	return requireAffected(res, "pricing rule "+id)
}

func scanRule(s rowScanner) (pricing.Rule, error) {
	var rule pricing.Rule
	var price, labour string
	if err := s.Scan(&rule.ID, &rule.ComplaintNodeID, &price, &labour); err != nil {
		return pricing.Rule{}, err
	}
	var err error
	if rule.PricePercentage, err = decimal.NewFromString(price); err != nil {
		return pricing.Rule{}, fmt.Errorf("price_percentage %q: %w", price, err)
	}
	if rule.LabourPercentage, err = decimal.NewFromString(labour); err != nil {
		return pricing.Rule{}, fmt.Errorf("labour_percentage %q: %w", labour, err)
	}
	return rule, nil
}
