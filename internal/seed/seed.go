// Package seed loads the startup data: the admin user, the rate card and,
// on an empty catalog, a sample repair taxonomy.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	RateCard      pricing.RateCard
	// SampleData loads the embedded taxonomy when the catalog is empty.
	SampleData bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type fixture struct {
	SpareParts []fixturePart `yaml:"spare_parts"`
	Complaints []fixtureNode `yaml:"complaints"`
	Conditions []fixtureNode `yaml:"conditions"`
}

type fixturePart struct {
	Key                   string `yaml:"key"`
	PartName              string `yaml:"part_name"`
	Description           string `yaml:"description"`
	EstimatedDeliveryDays *int   `yaml:"estimated_delivery_days"`
	UnitPrice             string `yaml:"unit_price"`
}

type fixtureNode struct {
	Label            string        `yaml:"label"`
	DefaultPart      string        `yaml:"default_part"`
	LabourPercentage string        `yaml:"labour_percentage"`
	PricePercentage  string        `yaml:"price_percentage"`
	Children         []fixtureNode `yaml:"children"`
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, database *sql.DB, cfg Config) (Stats, error) {
	var fx fixture
	if cfg.SampleData {
		if err := yaml.Unmarshal(defaultFixture, &fx); err != nil {
			return Stats{}, fmt.Errorf("parse seed fixture: %w", err)
		}
	}

	stats := Stats{}
	err := db.NewTxRunner(database).WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := seedAdmin(ctx, tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
			return err
		}
		if err := ensureRateCard(ctx, tx, cfg.RateCard, &stats); err != nil {
			return err
		}
		if cfg.SampleData {
			return ensureSampleCatalog(ctx, tx, fx, &stats)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func seedAdmin(ctx context.Context, tx db.DBTX, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}
	users := store.NewUserRepo(tx)
	exists, err := users.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := users.Create(ctx, email, string(hash)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureRateCard(ctx context.Context, tx db.DBTX, card pricing.RateCard, stats *Stats) error {
	cards := store.NewRateCardRepo(tx)
	exists, err := cards.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check rate card existence: %w", err)
	}
	if exists {
		return nil
	}
	if card.Currency == "" {
		card.Currency = "INR"
	}
	if err := cards.Put(ctx, card); err != nil {
		return fmt.Errorf("insert rate card: %w", err)
	}
	stats.Inserts++
	return nil
}

// ensureSampleCatalog only touches a catalog with no parts and no complaint
// categories, so operator data is never mixed with the sample.
func ensureSampleCatalog(ctx context.Context, tx db.DBTX, fx fixture, stats *Stats) error {
	parts := store.NewSparePartRepo(tx)
	nodes := store.NewNodeRepo(tx)

	existingParts, err := parts.List(ctx)
	if err != nil {
		return fmt.Errorf("list spare parts: %w", err)
	}
	existingComplaints, err := nodes.List(ctx, taxonomy.Complaints)
	if err != nil {
		return fmt.Errorf("list complaint categories: %w", err)
	}
	if len(existingParts) > 0 || len(existingComplaints) > 0 {
		return nil
	}

	partIDs := make(map[string]string, len(fx.SpareParts))
	for _, fp := range fx.SpareParts {
		price, err := decimal.NewFromString(fp.UnitPrice)
		if err != nil {
			return fmt.Errorf("spare part %s: unit_price: %w", fp.Key, err)
		}
		p := catalog.SparePart{
			ID:                    uuid.NewString(),
			PartName:              fp.PartName,
			Description:           fp.Description,
			EstimatedDeliveryDays: fp.EstimatedDeliveryDays,
			UnitPrice:             price,
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("spare part %s: %w", fp.Key, err)
		}
		if err := parts.Create(ctx, p); err != nil {
			return fmt.Errorf("insert spare part %s: %w", fp.Key, err)
		}
		partIDs[fp.Key] = p.ID
		stats.Inserts++
	}

	s := &nodeSeeder{nodes: nodes, rules: store.NewPricingRuleRepo(tx), partIDs: partIDs, stats: stats}
	if err := s.insert(ctx, taxonomy.Complaints, nil, fx.Complaints); err != nil {
		return err
	}
	return s.insert(ctx, taxonomy.Conditions, nil, fx.Conditions)
}

type nodeSeeder struct {
	nodes   *store.NodeRepo
	rules   *store.PricingRuleRepo
	partIDs map[string]string
	stats   *Stats
}

func (s *nodeSeeder) insert(ctx context.Context, kind taxonomy.Kind, parent *string, in []fixtureNode) error {
	for i, fn := range in {
		n := taxonomy.Node{ID: uuid.NewString(), Label: fn.Label, ParentID: parent, Position: i}
		if fn.DefaultPart != "" && kind == taxonomy.Complaints && len(fn.Children) == 0 {
			id, ok := s.partIDs[fn.DefaultPart]
			if !ok {
				return fmt.Errorf("category %q: unknown default part %q", fn.Label, fn.DefaultPart)
			}
			n.DefaultSparePartID = &id
		}
		if err := s.nodes.Create(ctx, kind, n); err != nil {
			return fmt.Errorf("insert %s category %q: %w", kind, fn.Label, err)
		}
		s.stats.Inserts++

		if kind == taxonomy.Complaints && parent == nil && (fn.LabourPercentage != "" || fn.PricePercentage != "") {
			rule, err := fixtureRule(n.ID, fn)
			if err != nil {
				return fmt.Errorf("category %q: %w", fn.Label, err)
			}
			if err := s.rules.Create(ctx, rule); err != nil {
				return fmt.Errorf("insert pricing rule for %q: %w", fn.Label, err)
			}
			s.stats.Inserts++
		}

		id := n.ID
		if err := s.insert(ctx, kind, &id, fn.Children); err != nil {
			return err
		}
	}
	return nil
}

func fixtureRule(nodeID string, fn fixtureNode) (pricing.Rule, error) {
	labour, price := decimal.NewFromInt(100), decimal.Zero
	var err error
	if fn.LabourPercentage != "" {
		if labour, err = decimal.NewFromString(fn.LabourPercentage); err != nil {
			return pricing.Rule{}, fmt.Errorf("labour_percentage: %w", err)
		}
	}
	if fn.PricePercentage != "" {
		if price, err = decimal.NewFromString(fn.PricePercentage); err != nil {
			return pricing.Rule{}, fmt.Errorf("price_percentage: %w", err)
		}
	}
	return pricing.Rule{
		ID:               uuid.NewString(),
		ComplaintNodeID:  nodeID,
		PricePercentage:  price,
		LabourPercentage: labour,
	}, nil
}
