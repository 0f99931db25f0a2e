/**
 * @description
 * RabbitMQ message handlers: unlock events from the chapter-unlock subsystem
 * feed the earning ledger, and settlement outcome events from the payout
 * provider bridge drive the payout state machine. Handlers return true to ack
 * and false to requeue; malformed or permanently unprocessable payloads are
 * acked so they cannot poison the queue.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

const consumerTimeout = 15 * time.Second

// EarningRecorder is the slice of the service the unlock consumer needs.
type EarningRecorder interface {
	RecordEarning(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error)
}

// UnlockEventConsumer turns chapter-unlock events into earnings.
type UnlockEventConsumer struct {
	recorder EarningRecorder
	logger   *slog.Logger
}

// NewUnlockEventConsumer creates an UnlockEventConsumer.
func NewUnlockEventConsumer(recorder EarningRecorder, logger *slog.Logger) *UnlockEventConsumer {
	return &UnlockEventConsumer{recorder: recorder, logger: logger}
}

// HandleMessage processes one unlock event. Delivery is at-least-once; the
// ledger's unlock-record idempotency makes redelivery harmless.
func (c *UnlockEventConsumer) HandleMessage(body []byte) bool {
	var event domain.ChapterUnlockEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("unlock event unmarshal failed; dropping", "error", err)
		return true
	}
	if event.UnlockRecordID == uuid.Nil {
		c.logger.Error("unlock event missing unlock record id; dropping")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	_, err := c.recorder.RecordEarning(ctx, domain.UnlockRecord{
		ID:          event.UnlockRecordID,
		ReaderID:    event.ReaderID,
		AuthorID:    event.AuthorID,
		ChapterID:   event.ChapterID,
		GrossAmount: money.New(event.AmountMinor, event.Currency),
		AuthorTier:  event.AuthorTier,
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		// Validation failures will never succeed on redelivery.
		if errors.Is(err, money.ErrInvalidAmount) || errors.Is(err, money.ErrCurrencyMismatch) ||
			errors.Is(err, store.ErrAuthorNotFound) {
			c.logger.Error("unlock event rejected; dropping",
				"unlock_record_id", event.UnlockRecordID, "error", err)
			return true
		}
		c.logger.Error("unlock event processing failed; requeuing",
			"unlock_record_id", event.UnlockRecordID, "error", err)
		return false
	}
	return true
}

// OutcomeHandler is the slice of the service the outcome consumer needs.
type OutcomeHandler interface {
	HandleProviderOutcome(ctx context.Context, event domain.PayoutProviderEvent) error
}

// PayoutOutcomeConsumer applies provider settlement outcomes to payouts.
type PayoutOutcomeConsumer struct {
	handler OutcomeHandler
	logger  *slog.Logger
}

// NewPayoutOutcomeConsumer creates a PayoutOutcomeConsumer.
func NewPayoutOutcomeConsumer(handler OutcomeHandler, logger *slog.Logger) *PayoutOutcomeConsumer {
	return &PayoutOutcomeConsumer{handler: handler, logger: logger}
}

// HandleMessage processes one provider outcome event.
func (c *PayoutOutcomeConsumer) HandleMessage(body []byte) bool {
	var event domain.PayoutProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("provider outcome unmarshal failed; dropping", "error", err)
		return true
	}
	if event.Reference == "" && event.ProviderPayoutID == "" {
		c.logger.Error("provider outcome carries no payout reference; dropping")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumerTimeout)
	defer cancel()

	if err := c.handler.HandleProviderOutcome(ctx, event); err != nil {
		if errors.Is(err, store.ErrPayoutNotFound) {
			c.logger.Error("provider outcome for unknown payout; dropping",
				"provider_payout_id", event.ProviderPayoutID, "reference", event.Reference)
			return true
		}
		c.logger.Error("provider outcome processing failed; requeuing",
			"provider_payout_id", event.ProviderPayoutID, "error", err)
		return false
	}
	return true
}
