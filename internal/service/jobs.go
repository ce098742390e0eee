package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

// ErrJobAccepted is returned when editing a job whose estimate was accepted.
var ErrJobAccepted = errors.New("job estimate already accepted")

// JobInput is the editable part of a job.
type JobInput struct {
	Title        string                      `json:"title"`
	CustomerName string                      `json:"customer_name"`
	Notes        string                      `json:"notes"`
	Selection    selection.JobIssueSelection `json:"selection"`
}

type JobService struct {
	db       db.DBTX
	uow      db.UnitOfWork
	cost     *CostService
	now      func() time.Time
	observer UseCaseObserver
}

func NewJobService(database db.DBTX, uow db.UnitOfWork, cost *CostService, observers ...UseCaseObserver) *JobService {
	return &JobService{db: database, uow: uow, cost: cost, now: time.Now, observer: useCaseObserverOrNoop(observers)}
}

func (s *JobService) Get(ctx context.Context, id string) (store.Job, error) {
	return store.NewJobRepo(s.db).Get(ctx, id)
}

func (s *JobService) List(ctx context.Context, search string) ([]store.Job, error) {
	return store.NewJobRepo(s.db).List(ctx, search)
}

// Create stores a new job. Its selection is reconciled against the current
// complaint tree, so default parts are filled in for fresh complaints.
func (s *JobService) Create(ctx context.Context, in JobInput) (_ store.Job, err error) {
	defer observe(ctx, s.observer, "jobs.create", time.Now(), &err, nil)

	job := store.Job{ID: uuid.NewString()}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := applyJobInput(ctx, tx, &job, in); err != nil {
			return err
		}
		return store.NewJobRepo(tx).Create(ctx, &job)
	})
	if err != nil {
		return store.Job{}, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *JobService) Update(ctx context.Context, id string, in JobInput) (_ store.Job, err error) {
	defer observe(ctx, s.observer, "jobs.update", time.Now(), &err, map[string]any{"job_id": id})

	var job store.Job
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		jobs := store.NewJobRepo(tx)
		current, err := jobs.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.AcceptedAt != nil {
			return ErrJobAccepted
		}
		job = current
		if err := applyJobInput(ctx, tx, &job, in); err != nil {
			return err
		}
		return jobs.Update(ctx, &job)
	})
	if err != nil {
		return store.Job{}, fmt.Errorf("update job %s: %w", id, err)
	}
	return job, nil
}

// Accept freezes the current breakdown of the job's selection.
func (s *JobService) Accept(ctx context.Context, id string) (_ store.Job, err error) {
	defer observe(ctx, s.observer, "jobs.accept", time.Now(), &err, map[string]any{"job_id": id})

	jobs := store.NewJobRepo(s.db)
	job, err := jobs.Get(ctx, id)
	if err != nil {
		return store.Job{}, err
	}
	if job.AcceptedAt != nil {
		return store.Job{}, fmt.Errorf("accept job %s: %w", id, ErrJobAccepted)
	}
	b, err := s.cost.CalculateCost(ctx, job.Selection)
	if err != nil {
		return store.Job{}, fmt.Errorf("accept job %s: %w", id, err)
	}
	at := s.now().UTC()
	if err := jobs.Accept(ctx, id, b, at); err != nil {
		return store.Job{}, err
	}
	job.Breakdown = &b
	job.AcceptedAt = &at
	return job, nil
}

func (s *JobService) Delete(ctx context.Context, id string) (err error) {
	defer observe(ctx, s.observer, "jobs.delete", time.Now(), &err, map[string]any{"job_id": id})
	return store.NewJobRepo(s.db).Delete(ctx, id)
}

func applyJobInput(ctx context.Context, tx db.DBTX, job *store.Job, in JobInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	tree, err := loadTree(ctx, tx, taxonomy.Complaints)
	if err != nil {
		return err
	}
	job.Title = title
	job.CustomerName = strings.TrimSpace(in.CustomerName)
	job.Notes = strings.TrimSpace(in.Notes)
	job.Selection = selection.Reconcile(in.Selection, tree)
	return nil
}
