// Package estimate produces the live figures shown while a job is edited:
// the final total, the delivery estimate, and the guarded breakdown request.
package estimate

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/selection"
)

// DeliveryLookup resolves a part's delivery estimate. *catalog.Catalog
// satisfies it.
type DeliveryLookup interface {
	DeliveryDaysFor(partID string) (int, bool)
}

// FinalTotal is parts + labour + additional charge - deduction. Blank or
// non-numeric inputs count as zero and nothing is rounded.
func FinalTotal(sel selection.JobIssueSelection) decimal.Decimal {
	return sel.EstimatedPartsCost.Decimal().
		Add(sel.EstimatedLabourCost.Decimal()).
		Add(sel.AdditionalCharge.Decimal()).
		Sub(sel.Deduction.Decimal())
}

// DeliveryDays is the slowest delivery among selected complaints that need a
// part ordered. Parts without an estimate count as zero days; with no
// qualifying complaint the result is zero.
func DeliveryDays(sel selection.JobIssueSelection, lookup DeliveryLookup) int {
	maxDays := 0
	for _, id := range sel.ComplaintNodeIDs {
		choice, ok := sel.ComplaintSpareParts[id]
		if !ok || !choice.IndentRequired || choice.SparePartID == nil {
			continue
		}
		days, _ := lookup.DeliveryDaysFor(*choice.SparePartID)
		if days > maxDays {
			maxDays = days
		}
	}
	return maxDays
}

// ShowDeliveryBanner reports whether a delivery estimate should be displayed.
func ShowDeliveryBanner(days int) bool {
	return days > 0
}
