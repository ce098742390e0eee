package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/estimate"
	"github.com/Simplici0/watchdesk/internal/money"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

// Text renders a plain-text summary of the job suitable for messaging the
// customer.
func (s *JobService) Text(ctx context.Context, id string) (string, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	complaints, err := loadTree(ctx, s.db, taxonomy.Complaints)
	if err != nil {
		return "", err
	}
	conditions, err := loadTree(ctx, s.db, taxonomy.Conditions)
	if err != nil {
		return "", err
	}
	parts, err := NewCatalogService(s.db).Catalog(ctx)
	if err != nil {
		return "", err
	}
	card, err := s.cost.RateCard(ctx)
	if err != nil {
		return "", err
	}
	return renderJobText(job, complaints, conditions, parts, card.Currency), nil
}

func renderJobText(job store.Job, complaints, conditions *taxonomy.Tree, parts *catalog.Catalog, currency string) string {
	var b strings.Builder
	sel := job.Selection

	fmt.Fprintf(&b, "Job: %s\n", job.Title)
	if job.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", job.CustomerName)
	}

	if len(sel.ConditionNodeIDs) > 0 {
		b.WriteString("\nCondition on receipt:\n")
		for _, id := range sel.ConditionNodeIDs {
			fmt.Fprintf(&b, "- %s\n", label(conditions, id))
		}
	}

	if len(sel.ComplaintNodeIDs) > 0 {
		b.WriteString("\nComplaints:\n")
		for _, id := range sel.ComplaintNodeIDs {
			line := "- " + label(complaints, id)
			if choice, ok := sel.ComplaintSpareParts[id]; ok && choice.SparePartID != nil {
				name := *choice.SparePartID
				if p, ok := parts.Part(name); ok {
					name = p.PartName
				}
				line += " (part: " + name
				if choice.IndentRequired {
					line += ", to order"
				}
				line += ")"
			}
			b.WriteString(line + "\n")
		}
	}
	if sel.OtherIssue != "" {
		fmt.Fprintf(&b, "Other: %s\n", sel.OtherIssue)
	}

	b.WriteString("\nEstimate:\n")
	writeAmount(&b, "Parts", sel.EstimatedPartsCost.Decimal(), currency, "")
	writeAmount(&b, "Labour", sel.EstimatedLabourCost.Decimal(), currency, "")
	if d := sel.AdditionalCharge.Decimal(); !d.IsZero() {
		writeAmount(&b, "Additional", d, currency, sel.AdditionalChargeNote)
	}
	if d := sel.Deduction.Decimal(); !d.IsZero() {
		writeAmount(&b, "Deduction", d.Neg(), currency, sel.DeductionNote)
	}
	writeAmount(&b, "Total", estimate.FinalTotal(sel), currency, "")

	if days := estimate.DeliveryDays(sel, parts); estimate.ShowDeliveryBanner(days) {
		fmt.Fprintf(&b, "\nParts expected in %d day(s).\n", days)
	}
	if sel.EstimatedDelivery != nil {
		fmt.Fprintf(&b, "Estimated delivery: %s\n", sel.EstimatedDelivery.String())
	}
	if job.AcceptedAt != nil {
		fmt.Fprintf(&b, "Accepted: %s\n", job.AcceptedAt.Format("2006-01-02"))
	}
	return b.String()
}

func writeAmount(b *strings.Builder, name string, amount decimal.Decimal, currency, note string) {
	fmt.Fprintf(b, "%-11s %s %s", name+":", currency, money.FormatGrouped(amount))
	if note != "" {
		fmt.Fprintf(b, " (%s)", note)
	}
	b.WriteString("\n")
}

func label(tree *taxonomy.Tree, id string) string {
	n, ok := tree.FindNode(id)
	if !ok {
		return id
	}
	if parent := n.ParentID; parent != nil {
		if p, ok := tree.FindNode(*parent); ok {
			return p.Label + " / " + n.Label
		}
	}
	return n.Label
}
