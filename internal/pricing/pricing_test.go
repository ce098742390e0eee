package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func equalDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestCalculate_TotalIsLabourPlusParts(t *testing.T) {
	card := RateCard{UCPRate: dec("40")}
	lines := []LineInput{
		{ComplaintNodeID: "stopped", LabourPercentage: dec("150"), PricePercentage: dec("20"), HasPart: true, PartUnitPrice: dec("25"), PartDeliveryDays: 12},
		{ComplaintNodeID: "slow", LabourPercentage: dec("50")},
	}

	b := Calculate(lines, card)

	equalDecimal(t, "labour", b.TotalLabourCost, "80")
	equalDecimal(t, "parts", b.TotalPartsCost, "30")
	equalDecimal(t, "total", b.EstimatedTotal, "110")
	equalDecimal(t, "ucp", b.UCPRate, "40")
	if b.MaxEstimatedDeliveryDays != 12 {
		t.Fatalf("max delivery = %d, want 12", b.MaxEstimatedDeliveryDays)
	}
	if len(b.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(b.Lines))
	}
	equalDecimal(t, "stopped labour", b.Lines[0].LabourCost, "60")
}

func TestCalculate_DeliveryIsMaxNotSum(t *testing.T) {
	lines := []LineInput{
		{HasPart: true, PartDeliveryDays: 5},
		{HasPart: true, PartDeliveryDays: 12},
		{HasPart: true, PartDeliveryDays: 3},
	}

	b := Calculate(lines, RateCard{})
	if b.MaxEstimatedDeliveryDays != 12 {
		t.Fatalf("max delivery = %d, want 12", b.MaxEstimatedDeliveryDays)
	}
}

func TestCalculate_KeepsFullPrecision(t *testing.T) {
	card := RateCard{UCPRate: dec("10")}
	lines := []LineInput{
		{LabourPercentage: dec("33.333")},
		{LabourPercentage: dec("33.333")},
		{LabourPercentage: dec("33.333")},
	}

	b := Calculate(lines, card)
	equalDecimal(t, "labour", b.TotalLabourCost, "9.9999")
}

func TestCalculate_NoLines(t *testing.T) {
	b := Calculate(nil, RateCard{UCPRate: dec("40")})
	equalDecimal(t, "total", b.EstimatedTotal, "0")
	if b.MaxEstimatedDeliveryDays != 0 {
		t.Fatalf("max delivery = %d, want 0", b.MaxEstimatedDeliveryDays)
	}
}

func TestNewRuleSet_RejectsDuplicateComplaint(t *testing.T) {
	_, err := NewRuleSet([]Rule{
		{ID: "r1", ComplaintNodeID: "movement"},
		{ID: "r2", ComplaintNodeID: "movement"},
	})
	if !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("err = %v, want ErrDuplicateRule", err)
	}
}

func testTree(t *testing.T) *taxonomy.Tree {
	t.Helper()
	parent := "movement"
	tree, err := taxonomy.New(taxonomy.Complaints, []taxonomy.Node{
		{ID: "movement", Label: "Movement"},
		{ID: "stopped", Label: "Stopped", ParentID: &parent},
		{ID: "case", Label: "Case"},
	})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return tree
}

func TestRuleForComplaint_WalksToRootCategory(t *testing.T) {
	rules, err := NewRuleSet([]Rule{{ID: "r1", ComplaintNodeID: "movement", LabourPercentage: dec("120")}})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	tree := testTree(t)

	rule, ok := rules.RuleForComplaint(tree, "stopped")
	if !ok || rule.ID != "r1" {
		t.Fatalf("RuleForComplaint(stopped) = %+v, %v", rule, ok)
	}
	if _, ok := rules.RuleForComplaint(tree, "case"); ok {
		t.Fatalf("expected no rule for case")
	}
}

func TestResolveLines_FallsBackToRateCardDefaults(t *testing.T) {
	rules, _ := NewRuleSet([]Rule{{ComplaintNodeID: "movement", LabourPercentage: dec("120"), PricePercentage: dec("10")}})
	days := 7
	parts := catalog.New([]catalog.SparePart{{ID: "mainspring", PartName: "Mainspring", UnitPrice: dec("50"), EstimatedDeliveryDays: &days}})
	card := RateCard{UCPRate: dec("40"), DefaultLabourPercentage: dec("100"), DefaultPricePercentage: dec("0")}
	part := "mainspring"
	ghost := "ghost"

	lines := ResolveLines([]Complaint{
		{ID: "stopped", SparePartID: &part},
		{ID: "case", SparePartID: &ghost},
	}, testTree(t), rules, parts, card)

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	equalDecimal(t, "stopped labour%", lines[0].LabourPercentage, "120")
	if !lines[0].HasPart || lines[0].PartDeliveryDays != 7 {
		t.Fatalf("unexpected stopped line: %+v", lines[0])
	}
	equalDecimal(t, "case labour%", lines[1].LabourPercentage, "100")
	if lines[1].HasPart {
		t.Fatalf("unknown part must not count: %+v", lines[1])
	}

	b := Calculate(lines, card)
	equalDecimal(t, "parts", b.TotalPartsCost, "55")
	equalDecimal(t, "labour", b.TotalLabourCost, "88")
}
