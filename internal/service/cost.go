package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

const defaultCurrency = "INR"

// CostService computes breakdowns and owns the rate card.
type CostService struct {
	db       db.DBTX
	fallback pricing.RateCard
	observer UseCaseObserver
}

// NewCostService uses fallback whenever no rate card has been stored.
func NewCostService(database db.DBTX, fallback pricing.RateCard, observers ...UseCaseObserver) *CostService {
	if fallback.Currency == "" {
		fallback.Currency = defaultCurrency
	}
	return &CostService{db: database, fallback: fallback, observer: useCaseObserverOrNoop(observers)}
}

func (s *CostService) RateCard(ctx context.Context) (pricing.RateCard, error) {
	card, err := store.NewRateCardRepo(s.db).Get(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.fallback, nil
	}
	return card, err
}

func (s *CostService) UpdateRateCard(ctx context.Context, card pricing.RateCard) (_ pricing.RateCard, err error) {
	defer observe(ctx, s.observer, "cost.update_rate_card", time.Now(), &err, nil)

	if card.UCPRate.IsNegative() || card.DefaultLabourPercentage.IsNegative() {
		return pricing.RateCard{}, fmt.Errorf("%w: rates must not be negative", ErrInvalidInput)
	}
	if card.DefaultPricePercentage.LessThan(minPricePercentage) {
		return pricing.RateCard{}, fmt.Errorf("%w: default_price_percentage must be at least -100", ErrInvalidInput)
	}
	if card.Currency == "" {
		card.Currency = defaultCurrency
	}
	if err := store.NewRateCardRepo(s.db).Put(ctx, card); err != nil {
		return pricing.RateCard{}, err
	}
	return card, nil
}

// CalculateCost prices the selected complaints of sel. Unknown complaint ids
// are rejected; unknown spare parts count as no part.
func (s *CostService) CalculateCost(ctx context.Context, sel selection.JobIssueSelection) (_ pricing.Breakdown, err error) {
	defer observe(ctx, s.observer, "cost.calculate", time.Now(), &err, map[string]any{"complaints": len(sel.ComplaintNodeIDs)})

	tree, err := loadTree(ctx, s.db, taxonomy.Complaints)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	rules, err := store.NewPricingRuleRepo(s.db).List(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	ruleSet, err := pricing.NewRuleSet(rules)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	parts, err := NewCatalogService(s.db).Catalog(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	card, err := s.RateCard(ctx)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	sel = selection.Reconcile(sel, nil)
	complaints := make([]pricing.Complaint, 0, len(sel.ComplaintNodeIDs))
	for _, id := range sel.ComplaintNodeIDs {
		if _, ok := tree.FindNode(id); !ok {
			return pricing.Breakdown{}, fmt.Errorf("%w: unknown complaint %s", ErrInvalidInput, id)
		}
		complaints = append(complaints, pricing.Complaint{ID: id, SparePartID: sel.ComplaintSpareParts[id].SparePartID})
	}

	lines := pricing.ResolveLines(complaints, tree, ruleSet, parts, card)
	return pricing.Calculate(lines, card), nil
}
