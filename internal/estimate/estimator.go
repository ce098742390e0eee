package estimate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Simplici0/watchdesk/internal/apierr"
	"github.com/Simplici0/watchdesk/internal/pricing"
	"github.com/Simplici0/watchdesk/internal/selection"
)

var (
	ErrCalculationInFlight = errors.New("an estimate calculation is already in flight")
	ErrStaleResult         = errors.New("estimate result is stale: selection changed while calculating")
)

// Calculator is the remote breakdown calculation.
type Calculator interface {
	CalculateCost(ctx context.Context, sel selection.JobIssueSelection) (pricing.Breakdown, error)
}

// Estimator holds the latest breakdown of one edit session. At most one
// calculation runs at a time, and a response is applied only if no selection
// change happened since its request was issued.
type Estimator struct {
	calc   Calculator
	logger *zap.Logger

	mu         sync.Mutex
	busy       bool
	generation uint64
	breakdown  *pricing.Breakdown
	lastError  string
}

// NewEstimator returns an Estimator backed by calc. A nil logger discards logs.
func NewEstimator(calc Calculator, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Estimator{calc: calc, logger: logger}
}

// Invalidate marks the selection as changed: the current breakdown is
// dropped and any in-flight response will be discarded.
func (e *Estimator) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.breakdown = nil
}

// Busy reports whether a calculation is in flight.
func (e *Estimator) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Breakdown returns the applied breakdown, if any.
func (e *Estimator) Breakdown() (pricing.Breakdown, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.breakdown == nil {
		return pricing.Breakdown{}, false
	}
	return *e.breakdown, true
}

// LastError is the operator-facing message of the last failed calculation.
func (e *Estimator) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Token identifies the selection generation a request was issued for.
type Token uint64

// Begin claims the busy flag and returns the current generation. It fails
// fast with ErrCalculationInFlight while another request runs. Callers that
// guard their selection with their own lock take the selection snapshot and
// the token under that lock, so no change can slip between the two.
func (e *Estimator) Begin() (Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		e.lastError = apierr.FallbackCalculateInBusy
		return 0, ErrCalculationInFlight
	}
	e.busy = true
	e.lastError = ""
	return Token(e.generation), nil
}

// Finish releases the busy flag and applies the outcome of the request
// issued under token. On failure the previous breakdown is kept and
// LastError is set; a result for an older generation is discarded.
func (e *Estimator) Finish(token Token, b pricing.Breakdown, err error) (pricing.Breakdown, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false

	if err != nil {
		e.lastError = apierr.MessageFor(err, apierr.FallbackCalculateCost)
		e.logger.Warn("estimate calculation failed", zap.Error(err), zap.Uint64("generation", uint64(token)))
		return pricing.Breakdown{}, err
	}
	e.lastError = ""
	if uint64(token) != e.generation {
		e.logger.Debug("discarding stale estimate",
			zap.Uint64("requested_generation", uint64(token)),
			zap.Uint64("current_generation", e.generation),
		)
		return pricing.Breakdown{}, ErrStaleResult
	}

	e.breakdown = &b
	return b, nil
}

// Calculate requests a breakdown for sel through the estimator's calculator.
func (e *Estimator) Calculate(ctx context.Context, sel selection.JobIssueSelection) (pricing.Breakdown, error) {
	token, err := e.Begin()
	if err != nil {
		return pricing.Breakdown{}, err
	}
	b, err := e.calc.CalculateCost(ctx, sel)
	return e.Finish(token, b, err)
}
