package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
)

const jobColumns = `id, title, customer_name, notes, selection_json, breakdown_json, accepted_at, created_at, updated_at`

// Job is a repair job: its issue selection and, once accepted, the breakdown
// the customer agreed to.
type Job struct {
	ID           string                      `json:"id"`
	Title        string                      `json:"title"`
	CustomerName string                      `json:"customer_name"`
	Notes        string                      `json:"notes"`
	Selection    selection.JobIssueSelection `json:"selection"`
	Breakdown    *pricing.Breakdown          `json:"breakdown"`
	AcceptedAt   *time.Time                  `json:"accepted_at"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

type JobRepo struct {
	db db.DBTX
}

func NewJobRepo(d db.DBTX) *JobRepo {
	return &JobRepo{db: d}
}

func (r *JobRepo) Create(ctx context.Context, j *Job) error {
	sel, err := json.Marshal(j.Selection)
	if err != nil {
		return fmt.Errorf("encode job selection: %w", err)
	}
	now := time.Now().UTC()
	j.CreatedAt, j.UpdatedAt = now, now
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, title, customer_name, notes, selection_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Title, j.CustomerName, j.Notes, string(sel), now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", classify(err))
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// List returns jobs newest first. A non-empty search matches title, customer
// name or notes case-insensitively.
func (r *JobRepo) List(ctx context.Context, search string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		query += ` WHERE lower(title) LIKE ? ESCAPE '\' OR lower(customer_name) LIKE ? ESCAPE '\' OR lower(notes) LIKE ? ESCAPE '\'`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Update writes the editable fields and the selection.
func (r *JobRepo) Update(ctx context.Context, j *Job) error {
	sel, err := json.Marshal(j.Selection)
	if err != nil {
		return fmt.Errorf("encode job selection: %w", err)
	}
	j.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET title = ?, customer_name = ?, notes = ?, selection_json = ?, updated_at = ?
		WHERE id = ?`,
		j.Title, j.CustomerName, j.Notes, string(sel), j.UpdatedAt.Format(timeLayout), j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return requireAffected(res, "job "+j.ID)
}

// Accept stores the breakdown snapshot the customer agreed to.
func (r *JobRepo) Accept(ctx context.Context, id string, b pricing.Breakdown, at time.Time) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode job breakdown: %w", err)
	}
	ts := at.UTC().Format(timeLayout)
	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET breakdown_json = ?, accepted_at = ?, updated_at = ? WHERE id = ?`,
		string(raw), ts, ts, id)
	if err != nil {
		return fmt.Errorf("accept job: %w", err)
	}
	return requireAffected(res, "job "+id)
}

func (r *JobRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireAffected(res, "job "+id)
}

func scanJob(s rowScanner) (Job, error) {
	var j Job
	var sel string
	var breakdown, acceptedAt sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&j.ID, &j.Title, &j.CustomerName, &j.Notes, &sel, &breakdown, &acceptedAt, &createdAt, &updatedAt); err != nil {
		return Job{}, err
	}
	if err := json.Unmarshal([]byte(sel), &j.Selection); err != nil {
		return Job{}, fmt.Errorf("decode job selection: %w", err)
	}
	if breakdown.Valid {
		var b pricing.Breakdown
		if err := json.Unmarshal([]byte(breakdown.String), &b); err != nil {
			return Job{}, fmt.Errorf("decode job breakdown: %w", err)
		}
		j.Breakdown = &b
	}
	j.AcceptedAt = parseNullableTime(acceptedAt)
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return j, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
