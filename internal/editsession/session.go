// Package editsession holds one in-progress job edit: immutable snapshots of
// the category trees, spare parts and pricing rules, the mutable selection,
// and the live and server-side estimates derived from them.
package editsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/catalog"
	"github.com/Simplici0/watchdesk/internal/estimate"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
	"github.com/Simplici0/watchdesk/internal/service"
	"github.com/Simplici0/watchdesk/internal/store"
	"github.com/Simplici0/watchdesk/internal/taxonomy"
)

// ErrNoJob is returned by Save on a session not opened from a job.
var ErrNoJob = errors.New("edit session is not bound to a job")

// Backend is the remote collaborator a session reads from. *client.Client
// satisfies it.
type Backend interface {
	FetchTree(ctx context.Context, kind taxonomy.Kind) ([]taxonomy.NestedNode, error)
	ListSpareParts(ctx context.Context) ([]catalog.SparePart, error)
	ListPricingRules(ctx context.Context) ([]pricing.Rule, error)
	CalculateCost(ctx context.Context, sel selection.JobIssueSelection) (pricing.Breakdown, error)
}

// JobBackend adds job persistence to Backend.
type JobBackend interface {
	Backend
	GetJob(ctx context.Context, id string) (store.Job, error)
	UpdateJob(ctx context.Context, id string, in service.JobInput) (store.Job, error)
}

// Snapshot is the reference data of a session, replaced only wholesale.
type Snapshot struct {
	Complaints *taxonomy.Tree
	Conditions *taxonomy.Tree
	Parts      *catalog.Catalog
	Rules      *pricing.RuleSet
}

// Session is one job edit. Edits are expected one at a time, but Calculate
// may run concurrently with them.
type Session struct {
	backend   Backend
	logger    *zap.Logger
	estimator *estimate.Estimator

	mu        sync.Mutex
	snap      Snapshot
	state     *selection.State
	loadError string

	jobs      JobBackend
	job       *store.Job
	saveError string
}

// Open loads the snapshots and starts editing initial. A nil logger discards
// logs.
func Open(ctx context.Context, backend Backend, initial selection.JobIssueSelection, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	snap, err := load(ctx, backend)
	if err != nil {
		return nil, err
	}
	return &Session{
		backend:   backend,
		logger:    logger,
		estimator: estimate.NewEstimator(backend, logger),
		snap:      snap,
		state:     selection.NewState(initial, snap.Complaints),
	}, nil
}

// OpenJob loads a job and starts editing its selection. Save writes it back.
func OpenJob(ctx context.Context, backend JobBackend, jobID string, logger *zap.Logger) (*Session, error) {
	job, err := backend.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	s, err := Open(ctx, backend, job.Selection, logger)
	if err != nil {
		return nil, err
	}
	s.jobs = backend
	s.job = &job
	return s, nil
}

// Job returns the job as last loaded or saved.
func (s *Session) Job() (store.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job == nil {
		return store.Job{}, false
	}
	return *s.job, true
}

// Save persists the current selection onto the bound job. On failure the
// edit is kept and SaveError carries the message.
func (s *Session) Save(ctx context.Context) (store.Job, error) {
	s.mu.Lock()
	if s.job == nil {
		s.mu.Unlock()
		return store.Job{}, ErrNoJob
	}
	in := service.JobInput{
		Title:        s.job.Title,
		CustomerName: s.job.CustomerName,
		Notes:        s.job.Notes,
		Selection:    s.state.Selection(),
	}
	id := s.job.ID
	s.mu.Unlock()

	saved, err := s.jobs.UpdateJob(ctx, id, in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.saveError = apierr.MessageFor(err, apierr.FallbackSaveJob)
		s.logger.Warn("save job", zap.String("job_id", id), zap.Error(err))
		return store.Job{}, err
	}
	s.saveError = ""
	s.job = &saved
	return saved, nil
}

// SaveError is the message of the last failed save.
func (s *Session) SaveError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveError
}

// Reload refetches every snapshot. On failure the previous snapshots stay in
// place and LoadError carries the message.
func (s *Session) Reload(ctx context.Context) error {
	snap, err := load(ctx, s.backend)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loadError = failureMessage(err)
		s.logger.Warn("reload edit session", zap.Error(err))
		return err
	}
	s.loadError = ""
	s.snap = snap
	s.state.SetResolver(snap.Complaints)
	s.estimator.Invalidate()
	s.logger.Debug("edit session reloaded",
		zap.Int("complaints", snap.Complaints.Len()),
		zap.Int("conditions", snap.Conditions.Len()),
		zap.Int("rules", snap.Rules.Len()),
	)
	return nil
}

// LoadError is the message of the last failed reload.
func (s *Session) LoadError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadError
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Session) Selection() selection.JobIssueSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Selection()
}

func (s *Session) IsSelected(kind taxonomy.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsSelected(kind, id)
}

// Toggle flips id in the selection of kind. The breakdown is invalidated.
func (s *Session) Toggle(kind taxonomy.Kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.estimator.Invalidate()
	return s.state.Toggle(kind, id)
}

// SetSparePartField edits a complaint's part metadata. The breakdown is
// invalidated.
func (s *Session) SetSparePartField(complaintID string, field selection.Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.SetSparePartField(complaintID, field, value); err != nil {
		return err
	}
	s.estimator.Invalidate()
	return nil
}

func (s *Session) SetAmount(field selection.AmountField, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetAmount(field, raw)
}

func (s *Session) SetNote(field selection.NoteField, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetNote(field, text)
}

func (s *Session) SetEstimatedDelivery(d *selection.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetEstimatedDelivery(d)
}

// FinalTotal is recomputed from the current amounts on every call.
func (s *Session) FinalTotal() decimal.Decimal {
	return estimate.FinalTotal(s.Selection())
}

// DeliveryDays is the live delivery estimate of the current selection.
func (s *Session) DeliveryDays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return estimate.DeliveryDays(s.state.Selection(), s.snap.Parts)
}

// SuggestedRule returns the pricing rule shown next to a selected complaint.
func (s *Session) SuggestedRule(complaintID string) (pricing.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Rules.RuleForComplaint(s.snap.Complaints, complaintID)
}

// EditableDefaultPart is the default part an edit form shows for a complaint
// node. Branches show none.
func (s *Session) EditableDefaultPart(nodeID string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Complaints.EditableDefaultPart(nodeID)
}

// Calculate requests the server-side breakdown of the current selection.
// The selection and its generation are captured together, so an edit made
// while the request runs always marks the response stale.
func (s *Session) Calculate(ctx context.Context) (pricing.Breakdown, error) {
	s.mu.Lock()
	sel := s.state.Selection()
	token, err := s.estimator.Begin()
	s.mu.Unlock()
	if err != nil {
		return pricing.Breakdown{}, err
	}
	b, err := s.backend.CalculateCost(ctx, sel)
	return s.estimator.Finish(token, b, err)
}

func (s *Session) Breakdown() (pricing.Breakdown, bool) { return s.estimator.Breakdown() }

func (s *Session) Busy() bool { return s.estimator.Busy() }

// CalculateError is the message of the last failed calculation.
func (s *Session) CalculateError() string { return s.estimator.LastError() }

type loadFailure struct {
	err      error
	fallback string
}

func (f *loadFailure) Error() string { return f.err.Error() }
func (f *loadFailure) Unwrap() error { return f.err }

func failureMessage(err error) string {
	var f *loadFailure
	if errors.As(err, &f) {
		return apierr.MessageFor(f.err, f.fallback)
	}
	return apierr.MessageFor(err, apierr.FallbackLoadTree)
}

func load(ctx context.Context, backend Backend) (Snapshot, error) {
	var (
		complaints, conditions []taxonomy.NestedNode
		parts                  []catalog.SparePart
		rules                  []pricing.Rule
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if complaints, err = backend.FetchTree(gctx, taxonomy.Complaints); err != nil {
			return &loadFailure{fmt.Errorf("fetch complaint tree: %w", err), apierr.FallbackLoadTree}
		}
		return nil
	})
	g.Go(func() (err error) {
		if conditions, err = backend.FetchTree(gctx, taxonomy.Conditions); err != nil {
			return &loadFailure{fmt.Errorf("fetch condition tree: %w", err), apierr.FallbackLoadTree}
		}
		return nil
	})
	g.Go(func() (err error) {
		if parts, err = backend.ListSpareParts(gctx); err != nil {
			return &loadFailure{fmt.Errorf("fetch spare parts: %w", err), apierr.FallbackLoadParts}
		}
		return nil
	})
	g.Go(func() (err error) {
		if rules, err = backend.ListPricingRules(gctx); err != nil {
			return &loadFailure{fmt.Errorf("fetch pricing rules: %w", err), apierr.FallbackLoadRules}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	var err error
	if snap.Complaints, err = taxonomy.FromNested(taxonomy.Complaints, complaints); err != nil {
		return Snapshot{}, &loadFailure{fmt.Errorf("build complaint tree: %w", err), apierr.FallbackLoadTree}
	}
	if snap.Conditions, err = taxonomy.FromNested(taxonomy.Conditions, conditions); err != nil {
		return Snapshot{}, &loadFailure{fmt.Errorf("build condition tree: %w", err), apierr.FallbackLoadTree}
	}
	if snap.Rules, err = pricing.NewRuleSet(rules); err != nil {
		return Snapshot{}, &loadFailure{fmt.Errorf("index pricing rules: %w", err), apierr.FallbackLoadRules}
	}
	snap.Parts = catalog.New(parts)
	return snap, nil
}
