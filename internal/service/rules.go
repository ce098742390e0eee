package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

var minPricePercentage = decimal.NewFromInt(-100)

// RuleInput is the editable part of a pricing rule.
type RuleInput struct {
	ComplaintNodeID  string          `json:"complaint_node_id"`
	PricePercentage  decimal.Decimal `json:"price_percentage"`
	LabourPercentage decimal.Decimal `json:"labour_percentage"`
}

// PricingRuleService manages rules keyed by top-level complaint categories.
type PricingRuleService struct {
	db       db.DBTX
	uow      db.UnitOfWork
	observer UseCaseObserver
}

func NewPricingRuleService(database db.DBTX, uow db.UnitOfWork, observers ...UseCaseObserver) *PricingRuleService {
	return &PricingRuleService{db: database, uow: uow, observer: useCaseObserverOrNoop(observers)}
}

func (s *PricingRuleService) List(ctx context.Context) ([]pricing.Rule, error) {
	return store.NewPricingRuleRepo(s.db).List(ctx)
}

// RuleSet returns the indexed rules.
func (s *PricingRuleService) RuleSet(ctx context.Context) (*pricing.RuleSet, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.NewRuleSet(rules)
}

func (s *PricingRuleService) Create(ctx context.Context, in RuleInput) (_ pricing.Rule, err error) {
	defer observe(ctx, s.observer, "pricing.create_rule", time.Now(), &err, map[string]any{"complaint_node_id": in.ComplaintNodeID})

	rule := pricing.Rule{
		ID:               uuid.NewString(),
		ComplaintNodeID:  in.ComplaintNodeID,
		PricePercentage:  in.PricePercentage,
		LabourPercentage: in.LabourPercentage,
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := validateRule(ctx, tx, in); err != nil {
			return err
		}
		return store.NewPricingRuleRepo(tx).Create(ctx, rule)
	})
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("create pricing rule: %w", err)
	}
	return rule, nil
}

func (s *PricingRuleService) Update(ctx context.Context, id string, in RuleInput) (_ pricing.Rule, err error) {
	defer observe(ctx, s.observer, "pricing.update_rule", time.Now(), &err, map[string]any{"rule_id": id})

	rule := pricing.Rule{
		ID:               id,
		ComplaintNodeID:  in.ComplaintNodeID,
		PricePercentage:  in.PricePercentage,
		LabourPercentage: in.LabourPercentage,
	}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := validateRule(ctx, tx, in); err != nil {
			return err
		}
		return store.NewPricingRuleRepo(tx).Update(ctx, rule)
	})
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("update pricing rule %s: %w", id, err)
	}
	return rule, nil
}

func (s *PricingRuleService) Delete(ctx context.Context, id string) (err error) {
	defer observe(ctx, s.observer, "pricing.delete_rule", time.Now(), &err, map[string]any{"rule_id": id})
	return store.NewPricingRuleRepo(s.db).Delete(ctx, id)
}

func validateRule(ctx context.Context, tx db.DBTX, in RuleInput) error {
	if in.LabourPercentage.IsNegative() {
		return fmt.Errorf("%w: labour_percentage must not be negative", ErrInvalidInput)
	}
	if in.PricePercentage.LessThan(minPricePercentage) {
		return fmt.Errorf("%w: price_percentage must be at least -100", ErrInvalidInput)
	}
	n, err := store.NewNodeRepo(tx).Get(ctx, taxonomy.Complaints, in.ComplaintNodeID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: complaint category %q does not exist", ErrInvalidInput, in.ComplaintNodeID)
	}
	if err != nil {
		return err
	}
	if !n.IsRoot() {
		return fmt.Errorf("%w: pricing rules apply to top-level complaint categories", ErrInvalidInput)
	}
	return nil
}
