package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
)

type stubRunner struct {
	candidatesFn  func(ctx context.Context) ([]uuid.UUID, error)
	evaluateFn    func(ctx context.Context, authorID uuid.UUID) (*domain.Payout, error)
	listPendingFn func(ctx context.Context) ([]domain.Payout, error)
	submitFn      func(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)

	evaluated []uuid.UUID
	submitted []uuid.UUID
}

func (r *stubRunner) AutoPayoutCandidates(ctx context.Context) ([]uuid.UUID, error) {
	if r.candidatesFn != nil {
		return r.candidatesFn(ctx)
	}
	return nil, nil
}

func (r *stubRunner) EvaluateAutoPayout(ctx context.Context, authorID uuid.UUID) (*domain.Payout, error) {
	r.evaluated = append(r.evaluated, authorID)
	if r.evaluateFn != nil {
		return r.evaluateFn(ctx, authorID)
	}
	return nil, nil
}

func (r *stubRunner) ListPendingPayouts(ctx context.Context) ([]domain.Payout, error) {
	if r.listPendingFn != nil {
		return r.listPendingFn(ctx)
	}
	return nil, nil
}

func (r *stubRunner) SubmitPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
	r.submitted = append(r.submitted, payoutID)
	if r.submitFn != nil {
		return r.submitFn(ctx, payoutID)
	}
	return &domain.Payout{ID: payoutID}, nil
}

func (r *stubRunner) StalePendingPayouts(ctx context.Context) ([]domain.Payout, error) {
	return nil, nil
}

func TestProcessAutoPayouts_ContinuesAfterAuthorFailure(t *testing.T) {
	failing := uuid.New()
	healthy := uuid.New()
	runner := &stubRunner{
		candidatesFn: func(ctx context.Context) ([]uuid.UUID, error) {
			return []uuid.UUID{failing, healthy}, nil
		},
		evaluateFn: func(ctx context.Context, authorID uuid.UUID) (*domain.Payout, error) {
			if authorID == failing {
				return nil, errors.New("author settings corrupted")
			}
			return &domain.Payout{ID: uuid.New(), AuthorID: authorID}, nil
		},
	}
	jobs := NewJobs(runner, discardLogger())

	jobs.ProcessAutoPayouts()

	if len(runner.evaluated) != 2 {
		t.Fatalf("expected both authors evaluated despite the failure, got %d", len(runner.evaluated))
	}
	if runner.evaluated[1] != healthy {
		t.Errorf("expected the healthy author to still be evaluated, got %s", runner.evaluated[1])
	}
}

func TestProcessAutoPayouts_NoCandidates(t *testing.T) {
	runner := &stubRunner{}
	jobs := NewJobs(runner, discardLogger())

	jobs.ProcessAutoPayouts()

	if len(runner.evaluated) != 0 {
		t.Fatalf("expected no evaluations, got %d", len(runner.evaluated))
	}
}

func TestDispatchPendingPayouts_ContinuesAfterSubmitFailure(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	runner := &stubRunner{
		listPendingFn: func(ctx context.Context) ([]domain.Payout, error) {
			return []domain.Payout{{ID: first}, {ID: second}}, nil
		},
		submitFn: func(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error) {
			if payoutID == first {
				return nil, errors.New("provider unavailable")
			}
			return &domain.Payout{ID: payoutID}, nil
		},
	}
	jobs := NewJobs(runner, discardLogger())

	jobs.DispatchPendingPayouts()

	if len(runner.submitted) != 2 {
		t.Fatalf("expected both payouts submitted despite the failure, got %d", len(runner.submitted))
	}
}

func TestDispatchPendingPayouts_ListFailureAbortsRun(t *testing.T) {
	runner := &stubRunner{
		listPendingFn: func(ctx context.Context) ([]domain.Payout, error) {
			return nil, errors.New("database unavailable")
		},
	}
	jobs := NewJobs(runner, discardLogger())

	jobs.DispatchPendingPayouts()

	if len(runner.submitted) != 0 {
		t.Fatalf("expected no submissions after a list failure, got %d", len(runner.submitted))
	}
}
