package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

type stubRecorder struct {
	recordFn func(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error)
	calls    int
	last     domain.UnlockRecord
}

func (r *stubRecorder) RecordEarning(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error) {
	r.calls++
	r.last = rec
	if r.recordFn != nil {
		return r.recordFn(ctx, rec)
	}
	return &domain.Earning{ID: uuid.New()}, nil
}

func unlockEventBody(t *testing.T, event domain.ChapterUnlockEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestUnlockConsumer_RecordsEarning(t *testing.T) {
	recorder := &stubRecorder{}
	consumer := NewUnlockEventConsumer(recorder, discardLogger())

	event := domain.ChapterUnlockEvent{
		UnlockRecordID: uuid.New(),
		ReaderID:       uuid.New(),
		AuthorID:       uuid.New(),
		ChapterID:      uuid.New(),
		AmountMinor:    1000,
		Currency:       "USD",
		OccurredAt:     time.Now().UTC(),
	}

	if ack := consumer.HandleMessage(unlockEventBody(t, event)); !ack {
		t.Fatal("expected the message to be acked")
	}
	if recorder.calls != 1 {
		t.Fatalf("expected one RecordEarning call, got %d", recorder.calls)
	}
	if recorder.last.ID != event.UnlockRecordID {
		t.Errorf("expected unlock record id %s, got %s", event.UnlockRecordID, recorder.last.ID)
	}
	if recorder.last.GrossAmount.MinorUnits != 1000 || recorder.last.GrossAmount.Currency != "USD" {
		t.Errorf("unexpected gross amount %s", recorder.last.GrossAmount)
	}
}

func TestUnlockConsumer_MalformedPayloadIsDropped(t *testing.T) {
	recorder := &stubRecorder{}
	consumer := NewUnlockEventConsumer(recorder, discardLogger())

	if ack := consumer.HandleMessage([]byte("not json")); !ack {
		t.Fatal("malformed payloads must be acked, not requeued")
	}
	if recorder.calls != 0 {
		t.Error("malformed payloads must not reach the recorder")
	}
}

func TestUnlockConsumer_MissingRecordIDIsDropped(t *testing.T) {
	recorder := &stubRecorder{}
	consumer := NewUnlockEventConsumer(recorder, discardLogger())

	event := domain.ChapterUnlockEvent{AuthorID: uuid.New(), AmountMinor: 1000, Currency: "USD"}
	if ack := consumer.HandleMessage(unlockEventBody(t, event)); !ack {
		t.Fatal("events without an unlock record id must be acked")
	}
	if recorder.calls != 0 {
		t.Error("events without an unlock record id must not reach the recorder")
	}
}

func TestUnlockConsumer_ValidationFailureIsDropped(t *testing.T) {
	for _, permanent := range []error{money.ErrInvalidAmount, money.ErrCurrencyMismatch, store.ErrAuthorNotFound} {
		recorder := &stubRecorder{
			recordFn: func(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error) {
				return nil, permanent
			},
		}
		consumer := NewUnlockEventConsumer(recorder, discardLogger())

		event := domain.ChapterUnlockEvent{UnlockRecordID: uuid.New(), AuthorID: uuid.New(), AmountMinor: 1000, Currency: "USD"}
		if ack := consumer.HandleMessage(unlockEventBody(t, event)); !ack {
			t.Errorf("%v: permanent failures must be acked so they cannot poison the queue", permanent)
		}
	}
}

func TestUnlockConsumer_TransientFailureIsRequeued(t *testing.T) {
	recorder := &stubRecorder{
		recordFn: func(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error) {
			return nil, errors.New("database unavailable")
		},
	}
	consumer := NewUnlockEventConsumer(recorder, discardLogger())

	event := domain.ChapterUnlockEvent{UnlockRecordID: uuid.New(), AuthorID: uuid.New(), AmountMinor: 1000, Currency: "USD"}
	if ack := consumer.HandleMessage(unlockEventBody(t, event)); ack {
		t.Fatal("transient failures must be requeued")
	}
}

type stubOutcomeHandler struct {
	handleFn func(ctx context.Context, event domain.PayoutProviderEvent) error
	calls    int
}

func (h *stubOutcomeHandler) HandleProviderOutcome(ctx context.Context, event domain.PayoutProviderEvent) error {
	h.calls++
	if h.handleFn != nil {
		return h.handleFn(ctx, event)
	}
	return nil
}

func TestOutcomeConsumer_AppliesOutcome(t *testing.T) {
	handler := &stubOutcomeHandler{}
	consumer := NewPayoutOutcomeConsumer(handler, discardLogger())

	body, _ := json.Marshal(domain.PayoutProviderEvent{Reference: uuid.New().String(), Status: "successful"})
	if ack := consumer.HandleMessage(body); !ack {
		t.Fatal("expected the message to be acked")
	}
	if handler.calls != 1 {
		t.Fatalf("expected one handler call, got %d", handler.calls)
	}
}

func TestOutcomeConsumer_MissingReferenceIsDropped(t *testing.T) {
	handler := &stubOutcomeHandler{}
	consumer := NewPayoutOutcomeConsumer(handler, discardLogger())

	body, _ := json.Marshal(domain.PayoutProviderEvent{Status: "successful"})
	if ack := consumer.HandleMessage(body); !ack {
		t.Fatal("events with no payout reference must be acked")
	}
	if handler.calls != 0 {
		t.Error("events with no payout reference must not reach the handler")
	}
}

func TestOutcomeConsumer_UnknownPayoutIsDropped(t *testing.T) {
	handler := &stubOutcomeHandler{
		handleFn: func(ctx context.Context, event domain.PayoutProviderEvent) error {
			return store.ErrPayoutNotFound
		},
	}
	consumer := NewPayoutOutcomeConsumer(handler, discardLogger())

	body, _ := json.Marshal(domain.PayoutProviderEvent{Reference: uuid.New().String(), Status: "failed"})
	if ack := consumer.HandleMessage(body); !ack {
		t.Fatal("outcomes for unknown payouts must be acked, not requeued")
	}
}

func TestOutcomeConsumer_ConflictingTerminalOutcomeIsAcked(t *testing.T) {
	repo := &stubRepo{
		getPayoutFn: func(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
			return &domain.Payout{ID: id, Status: domain.PayoutStatusCompleted, TotalAmount: money.New(4000, "USD")}, nil
		},
		markFailedFn: func(ctx context.Context, id uuid.UUID, reason string) (*domain.Payout, error) {
			t.Error("a closed payout must never be failed by a late outcome")
			return nil, store.ErrInvalidPayoutTransition
		},
	}
	svc := newTestService(repo, &stubGateway{}, &stubPublisher{})
	consumer := NewPayoutOutcomeConsumer(svc, discardLogger())

	body, _ := json.Marshal(domain.PayoutProviderEvent{Reference: uuid.New().String(), Status: "failed"})
	if ack := consumer.HandleMessage(body); !ack {
		t.Fatal("a conflicting terminal outcome must be acked, not redelivered forever")
	}
}

func TestOutcomeConsumer_TransientFailureIsRequeued(t *testing.T) {
	handler := &stubOutcomeHandler{
		handleFn: func(ctx context.Context, event domain.PayoutProviderEvent) error {
			return errors.New("database unavailable")
		},
	}
	consumer := NewPayoutOutcomeConsumer(handler, discardLogger())

	body, _ := json.Marshal(domain.PayoutProviderEvent{Reference: uuid.New().String(), Status: "failed"})
	if ack := consumer.HandleMessage(body); ack {
		t.Fatal("transient failures must be requeued")
	}
}
