package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

const nodeColumns = `id, label, parent_id, default_spare_part_id, position`

// NodeRepo stores the nodes of both category trees.
type NodeRepo struct {
	db db.DBTX
}

func NewNodeRepo(d db.DBTX) *NodeRepo {
	return &NodeRepo{db: d}
}

// List returns every node of kind in display order.
func (r *NodeRepo) List(ctx context.Context, kind taxonomy.Kind) ([]taxonomy.Node, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE kind = ? ORDER BY position, created_at, id`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s nodes: %w", kind, err)
	}
	defer rows.Close()

	var nodes []taxonomy.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s node: %w", kind, err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s nodes: %w", kind, err)
	}
	return nodes, nil
}

func (r *NodeRepo) Get(ctx context.Context, kind taxonomy.Kind, id string) (taxonomy.Node, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM taxonomy_nodes WHERE kind = ? AND id = ?`,
		string(kind), id)
	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return taxonomy.Node{}, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return taxonomy.Node{}, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

func (r *NodeRepo) Create(ctx context.Context, kind taxonomy.Kind, n taxonomy.Node) error {
	now := nowUTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO taxonomy_nodes (id, kind, label, parent_id, default_spare_part_id, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(kind), n.Label, nullableString(n.ParentID), nullableString(n.DefaultSparePartID),
		n.Position, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert node: %w", classify(err))
	}
	return nil
}

func (r *NodeRepo) Update(ctx context.Context, kind taxonomy.Kind, n taxonomy.Node) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE taxonomy_nodes
		SET label = ?, parent_id = ?, default_spare_part_id = ?, position = ?, updated_at = ?
		WHERE kind = ? AND id = ?`,
		n.Label, nullableString(n.ParentID), nullableString(n.DefaultSparePartID), n.Position, nowUTC(),
		string(kind), n.ID,
	)
	if err != nil {
		return fmt.Errorf("update node: %w", classify(err))
	}
	return requireAffected(res, "node "+n.ID)
}

// Delete removes a node; its subtree and pricing rules go with it.
func (r *NodeRepo) Delete(ctx context.Context, kind taxonomy.Kind, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM taxonomy_nodes WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	return requireAffected(res, "node "+id)
}

// ClearDefaultParts nulls the default spare part of the given nodes.
func (r *NodeRepo) ClearDefaultParts(ctx context.Context, kind taxonomy.Kind, ids []string) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, `
			UPDATE taxonomy_nodes SET default_spare_part_id = NULL, updated_at = ?
			WHERE kind = ? AND id = ?`, nowUTC(), string(kind), id); err != nil {
			return fmt.Errorf("clear default part of %s: %w", id, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(s rowScanner) (taxonomy.Node, error) {
	var n taxonomy.Node
	var parentID, partID sql.NullString
	if err := s.Scan(&n.ID, &n.Label, &parentID, &partID, &n.Position); err != nil {
		return taxonomy.Node{}, err
	}
	n.ParentID = stringPtr(parentID)
	n.DefaultSparePartID = stringPtr(partID)
	return n, nil
}
