// Package pricing derives a job's cost breakdown from its selected complaints,
// the pricing rules of their categories and the shop's rate card.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

var hundred = decimal.NewFromInt(100)

// RateCard holds the shop-wide pricing parameters.
type RateCard struct {
	UCPRate                 decimal.Decimal `json:"ucp_rate"`
	DefaultLabourPercentage decimal.Decimal `json:"default_labour_percentage"`
	DefaultPricePercentage  decimal.Decimal `json:"default_price_percentage"`
	Currency                string          `json:"currency"`
}

// LineInput is one selected complaint with everything the calculation needs
// already resolved.
type LineInput struct {
	ComplaintNodeID  string
	LabourPercentage decimal.Decimal
	PricePercentage  decimal.Decimal
	HasPart          bool
	PartUnitPrice    decimal.Decimal
	PartDeliveryDays int
}

// Line is the per-complaint share of the breakdown.
type Line struct {
	ComplaintNodeID string          `json:"complaint_node_id"`
	LabourCost      decimal.Decimal `json:"labour_cost"`
	PartsCost       decimal.Decimal `json:"parts_cost"`
	DeliveryDays    int             `json:"delivery_days"`
}

// Breakdown is the server-computed cost and delivery summary of a job.
type Breakdown struct {
	EstimatedTotal           decimal.Decimal `json:"estimated_total"`
	TotalLabourCost          decimal.Decimal `json:"total_labour_cost"`
	TotalPartsCost           decimal.Decimal `json:"total_parts_cost"`
	UCPRate                  decimal.Decimal `json:"ucp_rate"`
	MaxEstimatedDeliveryDays int             `json:"max_estimated_delivery_days"`
	Lines                    []Line          `json:"lines"`
}

// Calculate computes the breakdown. Labour per complaint is the UCP rate
// scaled by the labour percentage; parts carry their unit price marked up by
// the price percentage. Delivery is gated by the slowest implicated part.
func Calculate(lines []LineInput, card RateCard) Breakdown {
	b := Breakdown{
		TotalLabourCost: decimal.Zero,
		TotalPartsCost:  decimal.Zero,
		UCPRate:         card.UCPRate,
		Lines:           make([]Line, 0, len(lines)),
	}

	for _, in := range lines {
		labourCost := card.UCPRate.Mul(in.LabourPercentage).Div(hundred)
		partsCost := decimal.Zero
		if in.HasPart {
			partsCost = in.PartUnitPrice.Mul(hundred.Add(in.PricePercentage)).Div(hundred)
		}

		b.TotalLabourCost = b.TotalLabourCost.Add(labourCost)
		b.TotalPartsCost = b.TotalPartsCost.Add(partsCost)
		if in.HasPart && in.PartDeliveryDays > b.MaxEstimatedDeliveryDays {
			b.MaxEstimatedDeliveryDays = in.PartDeliveryDays
		}

		b.Lines = append(b.Lines, Line{
			ComplaintNodeID: in.ComplaintNodeID,
			LabourCost:      labourCost,
			PartsCost:       partsCost,
			DeliveryDays:    in.PartDeliveryDays,
		})
	}

	b.EstimatedTotal = b.TotalLabourCost.Add(b.TotalPartsCost)
	return b
}

// Complaint is a selected complaint and the part chosen for it, if any.
type Complaint struct {
	ID          string
	SparePartID *string
}

// ResolveLines looks up the rule and part of every complaint. Complaints
// without a rule fall back to the rate card defaults; unknown parts are
// treated as no part.
func ResolveLines(complaints []Complaint, tree *taxonomy.Tree, rules *RuleSet, parts *catalog.Catalog, card RateCard) []LineInput {
	lines := make([]LineInput, 0, len(complaints))
	for _, c := range complaints {
		in := LineInput{
			ComplaintNodeID:  c.ID,
			LabourPercentage: card.DefaultLabourPercentage,
			PricePercentage:  card.DefaultPricePercentage,
		}
		if rule, ok := rules.RuleForComplaint(tree, c.ID); ok {
			in.LabourPercentage = rule.LabourPercentage
			in.PricePercentage = rule.PricePercentage
		}
		if c.SparePartID != nil {
			if part, ok := parts.Part(*c.SparePartID); ok {
				in.HasPart = true
				in.PartUnitPrice = part.UnitPrice
				in.PartDeliveryDays, _ = parts.DeliveryDaysFor(part.ID)
			}
		}
		lines = append(lines, in)
	}
	return lines
}
