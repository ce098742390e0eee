package estimate

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/money"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestFinalTotal(t *testing.T) {
	sel := selection.JobIssueSelection{
		EstimatedPartsCost:  "100",
		EstimatedLabourCost: "50",
		AdditionalCharge:    "",
		Deduction:           "20",
	}
	assert.Equal(t, "130.00", money.Format(FinalTotal(sel)))

	sel.AdditionalCharge = "abc"
	sel.Deduction = "not a number"
	assert.Equal(t, "150.00", money.Format(FinalTotal(sel)))

	assert.True(t, FinalTotal(selection.JobIssueSelection{}).IsZero())
}

func TestFinalTotal_NoIntermediateRounding(t *testing.T) {
	sel := selection.JobIssueSelection{
		EstimatedPartsCost:  "0.004",
		EstimatedLabourCost: "0.004",
		AdditionalCharge:    "0.004",
	}
	total := FinalTotal(sel)
	assert.True(t, total.Equal(decimal.RequireFromString("0.012")))
	assert.Equal(t, "0.01", money.Format(total))
}

func deliveryCatalog() *catalog.Catalog {
	return catalog.New([]catalog.SparePart{
		{ID: "crystal", PartName: "Crystal", EstimatedDeliveryDays: intp(5)},
		{ID: "mainspring", PartName: "Mainspring", EstimatedDeliveryDays: intp(12)},
		{ID: "gasket", PartName: "Gasket"},
	})
}

func TestDeliveryDays_IsMaxOfIndentedParts(t *testing.T) {
	parts := deliveryCatalog()
	sel := selection.JobIssueSelection{
		ComplaintNodeIDs: []string{"a", "b"},
		ComplaintSpareParts: map[string]selection.SparePartChoice{
			"a": {IndentRequired: true, SparePartID: strp("crystal")},
			"b": {IndentRequired: true, SparePartID: strp("mainspring")},
		},
	}
	assert.Equal(t, 12, DeliveryDays(sel, parts))
	assert.Equal(t, 12, DeliveryDays(sel, parts))

	sel.ComplaintSpareParts["b"] = selection.SparePartChoice{IndentRequired: false, SparePartID: strp("mainspring")}
	assert.Equal(t, 5, DeliveryDays(sel, parts))

	sel.ComplaintSpareParts["a"] = selection.SparePartChoice{IndentRequired: false, SparePartID: strp("crystal")}
	days := DeliveryDays(sel, parts)
	assert.Equal(t, 0, days)
	assert.False(t, ShowDeliveryBanner(days))
}

func TestDeliveryDays_IgnoresUnselectedAndUnknownParts(t *testing.T) {
	sel := selection.JobIssueSelection{
		ComplaintNodeIDs: []string{"a", "c"},
		ComplaintSpareParts: map[string]selection.SparePartChoice{
			"a": {IndentRequired: true, SparePartID: strp("gasket")},
			"b": {IndentRequired: true, SparePartID: strp("mainspring")},
			"c": {IndentRequired: true},
		},
	}
	assert.Equal(t, 0, DeliveryDays(sel, deliveryCatalog()))
	assert.True(t, ShowDeliveryBanner(1))
}

type blockingCalc struct {
	started chan struct{}
	release chan struct{}
	result  pricing.Breakdown
	err     error
}

func newBlockingCalc() *blockingCalc {
	return &blockingCalc{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (c *blockingCalc) CalculateCost(ctx context.Context, _ selection.JobIssueSelection) (pricing.Breakdown, error) {
	c.started <- struct{}{}
	<-c.release
	return c.result, c.err
}

func TestEstimator_RejectsOverlappingRequests(t *testing.T) {
	calc := newBlockingCalc()
	calc.result = pricing.Breakdown{EstimatedTotal: decimal.NewFromInt(110), MaxEstimatedDeliveryDays: 12}
	e := NewEstimator(calc, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Calculate(context.Background(), selection.JobIssueSelection{})
		done <- err
	}()
	<-calc.started
	assert.True(t, e.Busy())

	_, err := e.Calculate(context.Background(), selection.JobIssueSelection{})
	assert.ErrorIs(t, err, ErrCalculationInFlight)
	assert.Equal(t, apierr.FallbackCalculateInBusy, e.LastError())

	close(calc.release)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
	assert.Empty(t, e.LastError())

	b, ok := e.Breakdown()
	require.True(t, ok)
	assert.Equal(t, 12, b.MaxEstimatedDeliveryDays)
}

func TestEstimator_DiscardsResponseAfterSelectionChange(t *testing.T) {
	calc := newBlockingCalc()
	calc.result = pricing.Breakdown{EstimatedTotal: decimal.NewFromInt(110)}
	e := NewEstimator(calc, nil)

	done := make(chan error, 1)
	go func() {
		_, err := e.Calculate(context.Background(), selection.JobIssueSelection{})
		done <- err
	}()
	<-calc.started
	e.Invalidate()
	close(calc.release)

	assert.ErrorIs(t, <-done, ErrStaleResult)
	_, ok := e.Breakdown()
	assert.False(t, ok)
	assert.False(t, e.Busy())
}

func TestEstimator_TokenTakenAtBeginDecidesStaleness(t *testing.T) {
	e := NewEstimator(nil, nil)

	token, err := e.Begin()
	require.NoError(t, err)
	e.Invalidate()
	_, err = e.Finish(token, pricing.Breakdown{EstimatedTotal: decimal.NewFromInt(50)}, nil)
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.False(t, e.Busy())

	e.Invalidate()
	token, err = e.Begin()
	require.NoError(t, err)
	b, err := e.Finish(token, pricing.Breakdown{EstimatedTotal: decimal.NewFromInt(50)}, nil)
	require.NoError(t, err)
	assert.True(t, b.EstimatedTotal.Equal(decimal.NewFromInt(50)))

	applied, ok := e.Breakdown()
	require.True(t, ok)
	assert.True(t, applied.EstimatedTotal.Equal(decimal.NewFromInt(50)))
}

type fixedCalc struct {
	result pricing.Breakdown
	err    error
}

func (c *fixedCalc) CalculateCost(context.Context, selection.JobIssueSelection) (pricing.Breakdown, error) {
	return c.result, c.err
}

func TestEstimator_FailureKeepsPreviousBreakdown(t *testing.T) {
	calc := &fixedCalc{result: pricing.Breakdown{EstimatedTotal: decimal.NewFromInt(80)}}
	e := NewEstimator(calc, nil)

	_, err := e.Calculate(context.Background(), selection.JobIssueSelection{})
	require.NoError(t, err)

	calc.err = errors.New("connection reset")
	_, err = e.Calculate(context.Background(), selection.JobIssueSelection{})
	require.Error(t, err)
	assert.Equal(t, apierr.FallbackCalculateCost, e.LastError())
	assert.False(t, e.Busy())

	b, ok := e.Breakdown()
	require.True(t, ok)
	assert.True(t, b.EstimatedTotal.Equal(decimal.NewFromInt(80)))

	calc.err = apierr.NewValidation("Unknown complaint id")
	_, err = e.Calculate(context.Background(), selection.JobIssueSelection{})
	require.Error(t, err)
	assert.Equal(t, "Unknown complaint id", e.LastError())

	calc.err = nil
	_, err = e.Calculate(context.Background(), selection.JobIssueSelection{})
	require.NoError(t, err)
	assert.Empty(t, e.LastError())
}
