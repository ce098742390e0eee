package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Simplici0/watchdesk/internal/db"
)

// UserRepo stores operator accounts.
type UserRepo struct {
	db db.DBTX
}

func NewUserRepo(d db.DBTX) *UserRepo {
	return &UserRepo{db: d}
}

// PasswordHash returns the stored hash for email.
func (r *UserRepo) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE email = ?`, email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query user credentials: %w", err)
	}
	return hash, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return exists, nil
}

func (r *UserRepo) Create(ctx context.Context, email, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), email, passwordHash, nowUTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", classify(err))
	}
	return nil
}
