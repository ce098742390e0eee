package selection

import (
	"errors"
	"fmt"

	"github.com/Simplici0/watchdesk/internal/money"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

var (
	ErrComplaintNotSelected = errors.New("complaint is not selected")
	ErrUnknownField         = errors.New("unknown field")
	ErrInvalidFieldValue    = errors.New("invalid field value")
)

// Field names an editable part of a complaint's spare part metadata.
type Field string

const (
	FieldIndentRequired Field = "indent_required"
	FieldSparePartID    Field = "spare_part_id"
)

// AmountField names one of the four monetary inputs.
type AmountField string

const (
	EstimatedPartsCost  AmountField = "estimated_parts_cost"
	EstimatedLabourCost AmountField = "estimated_labour_cost"
	AdditionalCharge    AmountField = "additional_charge"
	Deduction           AmountField = "deduction"
)

// NoteField names one of the free text inputs.
type NoteField string

const (
	AdditionalChargeNote NoteField = "additional_charge_note"
	DeductionNote        NoteField = "deduction_note"
	OtherIssue           NoteField = "other_issue"
)

// State is the mutable selection of one job edit. It is not safe for
// concurrent use; edits arrive one event at a time.
type State struct {
	sel      JobIssueSelection
	resolver DefaultPartResolver
}

// NewState starts from initial, reconciled against resolver.
func NewState(initial JobIssueSelection, resolver DefaultPartResolver) *State {
	s := &State{resolver: resolver}
	s.sel = Reconcile(initial, resolver)
	return s
}

// Selection returns a copy of the current selection.
func (s *State) Selection() JobIssueSelection {
	return s.sel.Clone()
}

// SetResolver swaps the complaint tree snapshot and re-evaluates defaults.
func (s *State) SetResolver(resolver DefaultPartResolver) {
	s.resolver = resolver
	s.sel = Reconcile(s.sel, resolver)
}

// IsSelected reports whether nodeID is in the selection set of kind.
func (s *State) IsSelected(kind taxonomy.Kind, nodeID string) bool {
	return indexOf(s.ids(kind), nodeID) >= 0
}

// Toggle flips membership of nodeID in the set of kind and reports whether
// it is selected afterwards.
func (s *State) Toggle(kind taxonomy.Kind, nodeID string) bool {
	ids := s.ids(kind)
	selected := false
	if i := indexOf(ids, nodeID); i >= 0 {
		ids = append(ids[:i:i], ids[i+1:]...)
	} else {
		ids = append(ids, nodeID)
		selected = true
	}
	s.setIDs(kind, ids)
	return selected
}

// SetComplaints replaces the selected complaints wholesale.
func (s *State) SetComplaints(ids []string) {
	s.setIDs(taxonomy.Complaints, append([]string(nil), ids...))
}

// SetConditions replaces the selected conditions wholesale.
func (s *State) SetConditions(ids []string) {
	s.setIDs(taxonomy.Conditions, append([]string(nil), ids...))
}

// SetSparePartField edits one complaint's metadata, creating the entry on
// first edit. FieldIndentRequired takes a bool; FieldSparePartID takes a
// string, *string or nil.
func (s *State) SetSparePartField(complaintID string, field Field, value any) error {
	if indexOf(s.sel.ComplaintNodeIDs, complaintID) < 0 {
		return fmt.Errorf("complaint %s: %w", complaintID, ErrComplaintNotSelected)
	}
	choice := s.sel.ComplaintSpareParts[complaintID]
	switch field {
	case FieldIndentRequired:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%s=%v: %w", field, value, ErrInvalidFieldValue)
		}
		choice.IndentRequired = v
	case FieldSparePartID:
		switch v := value.(type) {
		case nil:
			choice.SparePartID = nil
		case string:
			choice.SparePartID = optionalID(v)
		case *string:
			if v == nil {
				choice.SparePartID = nil
			} else {
				choice.SparePartID = optionalID(*v)
			}
		default:
			return fmt.Errorf("%s=%v: %w", field, value, ErrInvalidFieldValue)
		}
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	if s.sel.ComplaintSpareParts == nil {
		s.sel.ComplaintSpareParts = map[string]SparePartChoice{}
	}
	s.sel.ComplaintSpareParts[complaintID] = choice
	return nil
}

// SetAmount stores raw text for a monetary field. Any text is accepted.
func (s *State) SetAmount(field AmountField, raw string) error {
	switch field {
	case EstimatedPartsCost:
		s.sel.EstimatedPartsCost = money.Input(raw)
	case EstimatedLabourCost:
		s.sel.EstimatedLabourCost = money.Input(raw)
	case AdditionalCharge:
		s.sel.AdditionalCharge = money.Input(raw)
	case Deduction:
		s.sel.Deduction = money.Input(raw)
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return nil
}

// SetNote stores free text.
func (s *State) SetNote(field NoteField, text string) error {
	switch field {
	case AdditionalChargeNote:
		s.sel.AdditionalChargeNote = text
	case DeductionNote:
		s.sel.DeductionNote = text
	case OtherIssue:
		s.sel.OtherIssue = text
	default:
		return fmt.Errorf("%q: %w", field, ErrUnknownField)
	}
	return nil
}

// SetEstimatedDelivery stores the authoritative delivery date; nil clears it.
func (s *State) SetEstimatedDelivery(d *Date) {
	if d == nil {
		s.sel.EstimatedDelivery = nil
		return
	}
	v := *d
	s.sel.EstimatedDelivery = &v
}

func (s *State) ids(kind taxonomy.Kind) []string {
	if kind == taxonomy.Conditions {
		return s.sel.ConditionNodeIDs
	}
	return s.sel.ComplaintNodeIDs
}

func (s *State) setIDs(kind taxonomy.Kind, ids []string) {
	if kind == taxonomy.Conditions {
		s.sel.ConditionNodeIDs = ids
	} else {
		s.sel.ComplaintNodeIDs = ids
	}
	s.sel = Reconcile(s.sel, s.resolver)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
