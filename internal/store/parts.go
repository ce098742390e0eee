package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/db"
)

const sparePartColumns = `id, part_name, description, estimated_delivery_days, unit_price`

type SparePartRepo struct {
	db db.DBTX
}

func NewSparePartRepo(d db.DBTX) *SparePartRepo {
	return &SparePartRepo{db: d}
}

func (r *SparePartRepo) List(ctx context.Context) ([]catalog.SparePart, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sparePartColumns+` FROM spare_parts ORDER BY part_name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("list spare parts: %w", err)
	}
	defer rows.Close()

	var parts []catalog.SparePart
	for rows.Next() {
		p, err := scanSparePart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spare part: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spare parts: %w", err)
	}
	return parts, nil
}

func (r *SparePartRepo) Get(ctx context.Context, id string) (catalog.SparePart, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sparePartColumns+` FROM spare_parts WHERE id = ?`, id)
	p, err := scanSparePart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.SparePart{}, fmt.Errorf("spare part %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return catalog.SparePart{}, fmt.Errorf("get spare part %s: %w", id, err)
	}
	return p, nil
}

func (r *SparePartRepo) Create(ctx context.Context, p catalog.SparePart) error {
	now := nowUTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spare_parts (id, part_name, description, estimated_delivery_days, unit_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PartName, p.Description, nullableInt(p.EstimatedDeliveryDays), p.UnitPrice.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert spare part: %w", classify(err))
	}
	return nil
}

func (r *SparePartRepo) Update(ctx context.Context, p catalog.SparePart) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE spare_parts
		SET part_name = ?, description = ?, estimated_delivery_days = ?, unit_price = ?, updated_at = ?
		WHERE id = ?`,
		p.PartName, p.Description, nullableInt(p.EstimatedDeliveryDays), p.UnitPrice.String(), nowUTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update spare part: %w", classify(err))
	}
	return requireAffected(res, "spare part "+p.ID)
}

// Delete removes a part; nodes defaulting to it lose their default.
func (r *SparePartRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM spare_parts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete spare part: %w", err)
	}
	return requireAffected(res, "spare part "+id)
}

func scanSparePart(s rowScanner) (catalog.SparePart, error) {
	var p catalog.SparePart
	var days sql.NullInt64
	var price string
	if err := s.Scan(&p.ID, &p.PartName, &p.Description, &days, &price); err != nil {
		return catalog.SparePart{}, err
	}
	if days.Valid {
		d := int(days.Int64)
		p.EstimatedDeliveryDays = &d
	}
	unit, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.SparePart{}, fmt.Errorf("unit_price %q: %w", price, err)
	}
	p.UnitPrice = unit
	return p, nil
}
