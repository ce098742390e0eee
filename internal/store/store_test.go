package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/money"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
	"github.com/Simplici0/watchdesk/internal/testutil"
)

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestNodeRepo_CRUD(t *testing.T) {
	database := testutil.NewTestDB(t)
	nodes := NewNodeRepo(database)
	parts := NewSparePartRepo(database)
	ctx := context.Background()

	require.NoError(t, parts.Create(ctx, catalog.SparePart{ID: "crystal", PartName: "Crystal", UnitPrice: decimal.NewFromInt(300)}))

	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "case", Label: "Case", Position: 0}))
	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{
		ID: "glass", Label: "Broken glass", ParentID: strp("case"), DefaultSparePartID: strp("crystal"),
	}))
	require.NoError(t, nodes.Create(ctx, taxonomy.Conditions, taxonomy.Node{ID: "scratched", Label: "Scratched"}))

	list, err := nodes.List(ctx, taxonomy.Complaints)
	require.NoError(t, err)
	require.Len(t, list, 2)

	got, err := nodes.Get(ctx, taxonomy.Complaints, "glass")
	require.NoError(t, err)
	assert.Equal(t, "case", *got.ParentID)
	assert.Equal(t, "crystal", *got.DefaultSparePartID)

	_, err = nodes.Get(ctx, taxonomy.Complaints, "scratched")
	assert.ErrorIs(t, err, ErrNotFound)

	got.Label = "Cracked glass"
	require.NoError(t, nodes.Update(ctx, taxonomy.Complaints, got))
	require.NoError(t, nodes.ClearDefaultParts(ctx, taxonomy.Complaints, []string{"glass"}))
	got, err = nodes.Get(ctx, taxonomy.Complaints, "glass")
	require.NoError(t, err)
	assert.Equal(t, "Cracked glass", got.Label)
	assert.Nil(t, got.DefaultSparePartID)

	assert.ErrorIs(t, nodes.Update(ctx, taxonomy.Complaints, taxonomy.Node{ID: "ghost", Label: "x"}), ErrNotFound)
	assert.ErrorIs(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "case", Label: "dup"}), ErrConflict)
	assert.ErrorIs(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "orphan", Label: "x", ParentID: strp("ghost")}), ErrInvalidReference)
}

func TestNodeRepo_DeleteCascadesToSubtreeAndRules(t *testing.T) {
	database := testutil.NewTestDB(t)
	nodes := NewNodeRepo(database)
	rules := NewPricingRuleRepo(database)
	ctx := context.Background()

	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "movement", Label: "Movement"}))
	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "slow", Label: "Running slow", ParentID: strp("movement")}))
	require.NoError(t, rules.Create(ctx, pricing.Rule{ID: uuid.NewString(), ComplaintNodeID: "movement", LabourPercentage: decimal.NewFromInt(120)}))

	require.NoError(t, nodes.Delete(ctx, taxonomy.Complaints, "movement"))

	list, err := nodes.List(ctx, taxonomy.Complaints)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := rules.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, nodes.Delete(ctx, taxonomy.Complaints, "movement"), ErrNotFound)
}

func TestSparePartRepo_DeleteClearsNodeDefaults(t *testing.T) {
	database := testutil.NewTestDB(t)
	nodes := NewNodeRepo(database)
	parts := NewSparePartRepo(database)
	ctx := context.Background()

	part := catalog.SparePart{
		ID: "mainspring", PartName: "Mainspring", Description: "ETA 2824",
		EstimatedDeliveryDays: intp(12), UnitPrice: decimal.RequireFromString("450.50"),
	}
	require.NoError(t, parts.Create(ctx, part))
	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "stopped", Label: "Stopped", DefaultSparePartID: strp("mainspring")}))

	got, err := parts.Get(ctx, "mainspring")
	require.NoError(t, err)
	assert.Equal(t, 12, *got.EstimatedDeliveryDays)
	assert.True(t, got.UnitPrice.Equal(part.UnitPrice))

	got.EstimatedDeliveryDays = nil
	require.NoError(t, parts.Update(ctx, got))
	got, err = parts.Get(ctx, "mainspring")
	require.NoError(t, err)
	assert.Nil(t, got.EstimatedDeliveryDays)

	require.NoError(t, parts.Delete(ctx, "mainspring"))
	n, err := nodes.Get(ctx, taxonomy.Complaints, "stopped")
	require.NoError(t, err)
	assert.Nil(t, n.DefaultSparePartID)

	_, err = parts.Get(ctx, "mainspring")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPricingRuleRepo_OneRulePerComplaint(t *testing.T) {
	database := testutil.NewTestDB(t)
	nodes := NewNodeRepo(database)
	rules := NewPricingRuleRepo(database)
	ctx := context.Background()

	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "movement", Label: "Movement"}))
	require.NoError(t, nodes.Create(ctx, taxonomy.Complaints, taxonomy.Node{ID: "case", Label: "Case"}))

	rule := pricing.Rule{
		ID: uuid.NewString(), ComplaintNodeID: "movement",
		PricePercentage: decimal.NewFromInt(10), LabourPercentage: decimal.NewFromInt(150),
	}
	require.NoError(t, rules.Create(ctx, rule))

	dup := rule
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, rules.Create(ctx, dup), ErrConflict)

	other := pricing.Rule{ID: uuid.NewString(), ComplaintNodeID: "case", PricePercentage: decimal.Zero, LabourPercentage: decimal.NewFromInt(80)}
	require.NoError(t, rules.Create(ctx, other))
	other.ComplaintNodeID = "movement"
	assert.ErrorIs(t, rules.Update(ctx, other), ErrConflict)

	got, err := rules.Get(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, got.LabourPercentage.Equal(decimal.NewFromInt(150)))

	require.NoError(t, rules.Delete(ctx, rule.ID))
	_, err = rules.Get(ctx, rule.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRateCardRepo_PutAndGet(t *testing.T) {
	database := testutil.NewTestDB(t)
	cards := NewRateCardRepo(database)
	ctx := context.Background()

	_, err := cards.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	card := pricing.RateCard{
		UCPRate:                 decimal.RequireFromString("650.25"),
		DefaultLabourPercentage: decimal.NewFromInt(100),
		DefaultPricePercentage:  decimal.Zero,
		Currency:                "INR",
	}
	require.NoError(t, cards.Put(ctx, card))
	card.UCPRate = decimal.NewFromInt(700)
	require.NoError(t, cards.Put(ctx, card))

	got, err := cards.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.UCPRate.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, "INR", got.Currency)

	exists, err := cards.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestJobRepo_RoundTripAcceptAndSearch(t *testing.T) {
	database := testutil.NewTestDB(t)
	jobs := NewJobRepo(database)
	ctx := context.Background()

	sel := selection.JobIssueSelection{
		ComplaintNodeIDs: []string{"stopped"},
		ComplaintSpareParts: map[string]selection.SparePartChoice{
			"stopped": {IndentRequired: true, SparePartID: strp("mainspring")},
		},
		EstimatedPartsCost: money.Input("450"),
		Deduction:          money.Input("abc"),
	}
	job := &Job{ID: uuid.NewString(), Title: "Seiko 5 service", CustomerName: "R. Iyer", Selection: sel}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.Create(ctx, &Job{ID: uuid.NewString(), Title: "Strap swap", Notes: "100%_leather"}))

	got, err := jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Seiko 5 service", got.Title)
	assert.Equal(t, "abc", string(got.Selection.Deduction))
	assert.True(t, got.Selection.ComplaintSpareParts["stopped"].IndentRequired)
	assert.Nil(t, got.Breakdown)
	assert.Nil(t, got.AcceptedAt)

	b := pricing.Breakdown{EstimatedTotal: decimal.RequireFromString("1045.5"), MaxEstimatedDeliveryDays: 12}
	require.NoError(t, jobs.Accept(ctx, job.ID, b, time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)))
	got, err = jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Breakdown)
	assert.True(t, got.Breakdown.EstimatedTotal.Equal(b.EstimatedTotal))
	require.NotNil(t, got.AcceptedAt)
	assert.Equal(t, 2026, got.AcceptedAt.Year())

	found, err := jobs.List(ctx, "seiko")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, job.ID, found[0].ID)

	found, err = jobs.List(ctx, "iyer")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = jobs.List(ctx, "%_")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	all, err := jobs.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got.Title = "Seiko 5 full service"
	require.NoError(t, jobs.Update(ctx, &got))
	assert.ErrorIs(t, jobs.Update(ctx, &Job{ID: "ghost"}), ErrNotFound)
	assert.ErrorIs(t, jobs.Accept(ctx, "ghost", b, time.Now()), ErrNotFound)

	require.NoError(t, jobs.Delete(ctx, job.ID))
	_, err = jobs.Get(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo(t *testing.T) {
	database := testutil.NewTestDB(t)
	users := NewUserRepo(database)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, "admin@watchdesk.test", "hash"))
	assert.ErrorIs(t, users.Create(ctx, "admin@watchdesk.test", "other"), ErrConflict)

	hash, err := users.PasswordHash(ctx, "admin@watchdesk.test")
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)

	_, err = users.PasswordHash(ctx, "nobody@watchdesk.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
