// Package selection tracks which taxonomy nodes a job has selected and the
// spare part metadata attached to each selected complaint.
package selection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/watchdesk/internal/money"
)

const dateLayout = "2006-01-02"

// SparePartChoice is the per-complaint spare part metadata.
type SparePartChoice struct {
	IndentRequired bool    `json:"indent_required"`
	SparePartID    *string `json:"spare_part_id"`
}

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON reads a blank string as the zero Date, which a selection
// stores as no date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// JobIssueSelection is the editable issue section of a job.
type JobIssueSelection struct {
	ConditionNodeIDs     []string                   `json:"condition_node_ids"`
	ComplaintNodeIDs     []string                   `json:"complaint_node_ids"`
	ComplaintSpareParts  map[string]SparePartChoice `json:"complaint_spare_parts"`
	EstimatedPartsCost   money.Input                `json:"estimated_parts_cost"`
	EstimatedLabourCost  money.Input                `json:"estimated_labour_cost"`
	AdditionalCharge     money.Input                `json:"additional_charge"`
	Deduction            money.Input                `json:"deduction"`
	AdditionalChargeNote string                     `json:"additional_charge_note"`
	DeductionNote        string                     `json:"deduction_note"`
	OtherIssue           string                     `json:"other_issue"`
	EstimatedDelivery    *Date                      `json:"estimated_delivery"`
}

// Clone returns a deep copy.
func (s JobIssueSelection) Clone() JobIssueSelection {
	out := s
	out.ConditionNodeIDs = append([]string(nil), s.ConditionNodeIDs...)
	out.ComplaintNodeIDs = append([]string(nil), s.ComplaintNodeIDs...)
	out.ComplaintSpareParts = make(map[string]SparePartChoice, len(s.ComplaintSpareParts))
	for id, c := range s.ComplaintSpareParts {
		if c.SparePartID != nil {
			part := *c.SparePartID
			c.SparePartID = &part
		}
		out.ComplaintSpareParts[id] = c
	}
	if s.EstimatedDelivery != nil {
		d := *s.EstimatedDelivery
		out.EstimatedDelivery = &d
	}
	return out
}

// UnmarshalJSON tolerates a missing or null metadata map and a blank
// delivery date.
func (s *JobIssueSelection) UnmarshalJSON(data []byte) error {
	type plain JobIssueSelection
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.ComplaintSpareParts == nil {
		p.ComplaintSpareParts = map[string]SparePartChoice{}
	}
	if p.EstimatedDelivery != nil && p.EstimatedDelivery.IsZero() {
		p.EstimatedDelivery = nil
	}
	*s = JobIssueSelection(p)
	return nil
}

// DefaultPartResolver yields the default spare part of a complaint node.
// *taxonomy.Tree satisfies it.
type DefaultPartResolver interface {
	DefaultSparePartFor(complaintID string) (string, bool)
}

// Reconcile is evaluated after every change of the selected sets. It drops
// metadata of complaints no longer selected and fills in
// {indent_required: true, spare_part_id: default} for selected complaints
// that have no entry yet and resolve to a default part. Existing entries are
// never touched, so an operator's edit survives; deselecting removes the
// entry, so reselecting evaluates the default again.
func Reconcile(sel JobIssueSelection, resolver DefaultPartResolver) JobIssueSelection {
	out := sel.Clone()
	out.ConditionNodeIDs = dedupe(out.ConditionNodeIDs)
	out.ComplaintNodeIDs = dedupe(out.ComplaintNodeIDs)

	parts := make(map[string]SparePartChoice, len(out.ComplaintNodeIDs))
	for _, id := range out.ComplaintNodeIDs {
		if existing, ok := out.ComplaintSpareParts[id]; ok {
			parts[id] = existing
			continue
		}
		if resolver == nil {
			continue
		}
		if partID, ok := resolver.DefaultSparePartFor(id); ok {
			parts[id] = SparePartChoice{IndentRequired: true, SparePartID: &partID}
		}
	}
	out.ComplaintSpareParts = parts
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
