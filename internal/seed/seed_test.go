package seed

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/service"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
	"github.com/Simplici0/watchdesk/internal/testutil"
)

func testConfig() Config {
	return Config{
		AdminEmail:    "admin@watchdesk.test",
		AdminPassword: "12345",
		RateCard: pricing.RateCard{
			UCPRate:                 decimal.NewFromInt(500),
			DefaultLabourPercentage: decimal.NewFromInt(100),
			DefaultPricePercentage:  decimal.Zero,
		},
		SampleData: true,
	}
}

func count(t *testing.T, database *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(query, args...).Scan(&n))
	return n
}

func TestRunIsIdempotent(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		stats, err := Run(ctx, database, testConfig())
		require.NoError(t, err, "iteration %d", i)
		if i == 0 {
			assert.Equal(t, 26, stats.Inserts)
			continue
		}
		assert.Zero(t, stats.Inserts, "iteration %d", i)
	}

	assert.Equal(t, 1, count(t, database, `SELECT COUNT(*) FROM users WHERE email = ?`, "admin@watchdesk.test"))
	assert.Equal(t, 1, count(t, database, `SELECT COUNT(*) FROM rate_card`))
	assert.Equal(t, 5, count(t, database, `SELECT COUNT(*) FROM spare_parts`))
	assert.Equal(t, 10, count(t, database, `SELECT COUNT(*) FROM taxonomy_nodes WHERE kind = 'complaints'`))
	assert.Equal(t, 7, count(t, database, `SELECT COUNT(*) FROM taxonomy_nodes WHERE kind = 'conditions'`))
	assert.Equal(t, 2, count(t, database, `SELECT COUNT(*) FROM pricing_rules`))

	hash, err := store.NewUserRepo(database).PasswordHash(ctx, "admin@watchdesk.test")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("12345")))
}

func TestRun_KeepsExistingRateCard(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	custom := pricing.RateCard{UCPRate: decimal.NewFromInt(750), DefaultLabourPercentage: decimal.NewFromInt(80), DefaultPricePercentage: decimal.NewFromInt(5), Currency: "INR"}
	require.NoError(t, store.NewRateCardRepo(database).Put(ctx, custom))

	_, err := Run(ctx, database, Config{RateCard: testConfig().RateCard})
	require.NoError(t, err)

	card, err := store.NewRateCardRepo(database).Get(ctx)
	require.NoError(t, err)
	assert.True(t, card.UCPRate.Equal(decimal.NewFromInt(750)))
	assert.Zero(t, count(t, database, `SELECT COUNT(*) FROM users`))
	assert.Zero(t, count(t, database, `SELECT COUNT(*) FROM spare_parts`))
}

func TestSampleCatalog_PricesThroughCostService(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	_, err := Run(ctx, database, testConfig())
	require.NoError(t, err)

	nodes, err := store.NewNodeRepo(database).List(ctx, taxonomy.Complaints)
	require.NoError(t, err)
	tree, err := taxonomy.New(taxonomy.Complaints, nodes)
	require.NoError(t, err)

	var stopped string
	for _, n := range tree.Flatten() {
		if n.Label == "Stopped" {
			stopped = n.ID
		}
	}
	require.NotEmpty(t, stopped)
	_, hasDefault := tree.DefaultSparePartFor(stopped)
	require.True(t, hasDefault)

	sel := selection.Reconcile(selection.JobIssueSelection{ComplaintNodeIDs: []string{stopped}}, tree)
	b, err := service.NewCostService(database, testConfig().RateCard).CalculateCost(ctx, sel)
	require.NoError(t, err)

	assert.True(t, b.TotalLabourCost.Equal(decimal.NewFromInt(750)), b.TotalLabourCost.String())
	assert.True(t, b.TotalPartsCost.Equal(decimal.NewFromInt(440)), b.TotalPartsCost.String())
	assert.Equal(t, 12, b.MaxEstimatedDeliveryDays)
}

func TestFixtureParses(t *testing.T) {
	cfg := testConfig()
	cfg.AdminEmail = ""
	stats, err := Run(context.Background(), testutil.NewTestDB(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Inserts)
}
