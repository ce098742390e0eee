package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

var ErrDuplicateRule = errors.New("a pricing rule already exists for this complaint category")

// Rule holds the percentage adjustments for one complaint category.
type Rule struct {
	ID               string          `json:"id"`
	ComplaintNodeID  string          `json:"complaint_node_id"`
	PricePercentage  decimal.Decimal `json:"price_percentage"`
	LabourPercentage decimal.Decimal `json:"labour_percentage"`
}

// RuleSet indexes rules by complaint node id.
type RuleSet struct {
	byComplaint map[string]Rule
}

// NewRuleSet indexes rules, allowing at most one rule per complaint node.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	s := &RuleSet{byComplaint: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if _, dup := s.byComplaint[r.ComplaintNodeID]; dup {
			return nil, fmt.Errorf("complaint %s: %w", r.ComplaintNodeID, ErrDuplicateRule)
		}
		s.byComplaint[r.ComplaintNodeID] = r
	}
	return s, nil
}

// RuleFor returns the rule keyed by a complaint category id.
func (s *RuleSet) RuleFor(complaintRootID string) (Rule, bool) {
	r, ok := s.byComplaint[complaintRootID]
	return r, ok
}

// RuleForComplaint resolves the rule governing a selected complaint: its own
// rule if present, otherwise the nearest ancestor's, up to the root category.
func (s *RuleSet) RuleForComplaint(tree *taxonomy.Tree, complaintID string) (Rule, bool) {
	if r, ok := s.RuleFor(complaintID); ok {
		return r, true
	}
	if tree == nil {
		return Rule{}, false
	}
	for _, id := range tree.Ancestors(complaintID) {
		if r, ok := s.RuleFor(id); ok {
			return r, true
		}
	}
	return Rule{}, false
}

func (s *RuleSet) Len() int { return len(s.byComplaint) }
