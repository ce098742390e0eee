package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

// TaxonomyService edits the category trees. Every write loads the current
// tree inside its transaction, validates against it and persists the node
// together with its side effects on other nodes.
type TaxonomyService struct {
	db       db.DBTX
	uow      db.UnitOfWork
	policy   taxonomy.ParentPolicy
	observer UseCaseObserver
}

func NewTaxonomyService(database db.DBTX, uow db.UnitOfWork, policy taxonomy.ParentPolicy, observers ...UseCaseObserver) *TaxonomyService {
	if policy == nil {
		policy = taxonomy.RootsOnly
	}
	return &TaxonomyService{db: database, uow: uow, policy: policy, observer: useCaseObserverOrNoop(observers)}
}

// Tree loads the arena of kind.
func (s *TaxonomyService) Tree(ctx context.Context, kind taxonomy.Kind) (*taxonomy.Tree, error) {
	return loadTree(ctx, s.db, kind)
}

// FetchTree returns the nested projection of kind.
func (s *TaxonomyService) FetchTree(ctx context.Context, kind taxonomy.Kind) ([]taxonomy.NestedNode, error) {
	tree, err := s.Tree(ctx, kind)
	if err != nil {
		return nil, err
	}
	return tree.Nested(), nil
}

// PotentialParents lists the nodes nodeID may be moved under ("" for a new
// node).
func (s *TaxonomyService) PotentialParents(ctx context.Context, kind taxonomy.Kind, nodeID string) ([]taxonomy.Node, error) {
	tree, err := s.Tree(ctx, kind)
	if err != nil {
		return nil, err
	}
	if nodeID != "" {
		if _, ok := tree.FindNode(nodeID); !ok {
			return nil, fmt.Errorf("node %s: %w", nodeID, taxonomy.ErrNodeNotFound)
		}
	}
	return tree.ListPotentialParents(nodeID, s.policy), nil
}

func (s *TaxonomyService) CreateNode(ctx context.Context, kind taxonomy.Kind, in taxonomy.NodeInput) (_ taxonomy.Node, err error) {
	defer observe(ctx, s.observer, "taxonomy.create_node", time.Now(), &err, map[string]any{"kind": string(kind)})

	var created taxonomy.Node
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tree, err := loadTree(ctx, tx, kind)
		if err != nil {
			return err
		}
		n, change, err := tree.PrepareCreate(in, s.policy)
		if err != nil {
			return err
		}
		if err := checkPartExists(ctx, tx, n.DefaultSparePartID); err != nil {
			return err
		}
		n.ID = uuid.NewString()

		nodes := store.NewNodeRepo(tx)
		if err := nodes.ClearDefaultParts(ctx, kind, change.ClearedDefaults); err != nil {
			return err
		}
		if err := nodes.Create(ctx, kind, n); err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return taxonomy.Node{}, fmt.Errorf("create %s node: %w", kind, err)
	}
	return created, nil
}

func (s *TaxonomyService) UpdateNode(ctx context.Context, kind taxonomy.Kind, id string, patch taxonomy.NodePatch) (_ taxonomy.Node, err error) {
	defer observe(ctx, s.observer, "taxonomy.update_node", time.Now(), &err, map[string]any{"kind": string(kind), "node_id": id})

	var updated taxonomy.Node
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tree, err := loadTree(ctx, tx, kind)
		if err != nil {
			return err
		}
		n, change, err := tree.PrepareUpdate(id, patch, s.policy)
		if err != nil {
			return err
		}
		if patch.DefaultSparePartID.Set {
			if err := checkPartExists(ctx, tx, n.DefaultSparePartID); err != nil {
				return err
			}
		}
		if kind == taxonomy.Complaints && !n.IsRoot() {
			if err := checkNoRule(ctx, tx, id); err != nil {
				return err
			}
		}

		nodes := store.NewNodeRepo(tx)
		if err := nodes.ClearDefaultParts(ctx, kind, change.ClearedDefaults); err != nil {
			return err
		}
		if err := nodes.Update(ctx, kind, n); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return taxonomy.Node{}, fmt.Errorf("update %s node %s: %w", kind, id, err)
	}
	return updated, nil
}

// DeleteNode removes id with its subtree and returns every removed id.
func (s *TaxonomyService) DeleteNode(ctx context.Context, kind taxonomy.Kind, id string) (_ []string, err error) {
	defer observe(ctx, s.observer, "taxonomy.delete_node", time.Now(), &err, map[string]any{"kind": string(kind), "node_id": id})

	var removed []string
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		tree, err := loadTree(ctx, tx, kind)
		if err != nil {
			return err
		}
		if removed, err = tree.Remove(id); err != nil {
			return err
		}
		return store.NewNodeRepo(tx).Delete(ctx, kind, id)
	})
	if err != nil {
		return nil, fmt.Errorf("delete %s node %s: %w", kind, id, err)
	}
	return removed, nil
}

func loadTree(ctx context.Context, d db.DBTX, kind taxonomy.Kind) (*taxonomy.Tree, error) {
	nodes, err := store.NewNodeRepo(d).List(ctx, kind)
	if err != nil {
		return nil, err
	}
	tree, err := taxonomy.New(kind, nodes)
	if err != nil {
		return nil, fmt.Errorf("load %s tree: %w", kind, err)
	}
	return tree, nil
}

func checkPartExists(ctx context.Context, d db.DBTX, partID *string) error {
	if partID == nil {
		return nil
	}
	_, err := store.NewSparePartRepo(d).Get(ctx, *partID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: spare part %s does not exist", ErrInvalidInput, *partID)
	}
	return err
}

// checkNoRule keeps pricing rules keyed on top-level complaints: a category
// carrying a rule cannot be moved under another one.
func checkNoRule(ctx context.Context, d db.DBTX, nodeID string) error {
	ok, err := store.NewPricingRuleRepo(d).ExistsForNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: category has a pricing rule, move or delete its pricing rule first", ErrInvalidInput)
	}
	return nil
}
