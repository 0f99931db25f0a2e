/**
 * @description
 * Core business logic for the monetization ledger. The `Service` struct owns
 * the earning ledger, the payout batcher, and the payout settlement state
 * machine, coordinating between the database repository, the payout provider
 * gateway, and the message broker.
 *
 * Key features:
 * - Idempotent conversion of chapter-unlock events into immutable earnings.
 * - Threshold-checked payout batching with atomic earning reservation.
 * - Publishes lifecycle events to RabbitMQ for dashboards and notifications.
 *
 * @dependencies
 * - github.com/google/uuid: For entity id generation.
 * - internal/domain, internal/money, internal/store: Domain models and data access.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/monetization-service/internal/domain"
	"github.com/inkwell/monetization-service/internal/money"
	"github.com/inkwell/monetization-service/internal/store"
)

// EventsExchange is the durable topic exchange all lifecycle events go to.
const EventsExchange = "inkwell.events"

// Routing keys for published lifecycle events.
const (
	routingEarningRecorded  = "earning.recorded"
	routingPayoutRequested  = "payout.requested"
	routingPayoutProcessing = "payout.processing"
	routingPayoutCompleted  = "payout.completed"
	routingPayoutFailed     = "payout.failed"
	routingPayoutCancelled  = "payout.cancelled"
)

// Repository defines the database operations the service needs.
type Repository interface {
	AuthorExists(ctx context.Context, authorID uuid.UUID) (bool, error)

	CreateEarning(ctx context.Context, earning *domain.Earning) (*domain.Earning, bool, error)
	UnpaidEarningsForAuthor(ctx context.Context, authorID uuid.UUID) ([]domain.Earning, error)
	EarningsInPeriod(ctx context.Context, authorID uuid.UUID, start, end time.Time) ([]domain.Earning, error)
	RecentEarnings(ctx context.Context, authorID uuid.UUID, limit int) ([]domain.Earning, error)
	EarningsByPayoutID(ctx context.Context, payoutID uuid.UUID) ([]domain.Earning, error)
	TotalUnpaid(ctx context.Context, authorID uuid.UUID) (int64, error)
	TotalLifetime(ctx context.Context, authorID uuid.UUID) (int64, error)
	TopEarningAuthors(ctx context.Context, since time.Time, limit int) ([]domain.AuthorEarningsTotal, error)

	GetOrCreatePayoutSettings(ctx context.Context, defaults domain.PayoutSettings) (*domain.PayoutSettings, error)
	UpdatePayoutSettings(ctx context.Context, settings *domain.PayoutSettings) error
	AutoPayoutCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	ReservePayoutBatch(ctx context.Context, params store.ReservePayoutBatchParams) (*domain.Payout, error)
	GetPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)
	FindPayoutByProviderID(ctx context.Context, providerPayoutID string) (*domain.Payout, error)
	RecentPayouts(ctx context.Context, authorID uuid.UUID, limit int) ([]domain.Payout, error)
	ListPayoutsByStatus(ctx context.Context, status domain.PayoutStatus, limit int) ([]domain.Payout, error)
	MarkPayoutProcessing(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)
	SetPayoutProviderID(ctx context.Context, payoutID uuid.UUID, providerPayoutID string) error
	MarkPayoutCompleted(ctx context.Context, payoutID uuid.UUID, providerPayoutID string) (*domain.Payout, error)
	MarkPayoutFailed(ctx context.Context, payoutID uuid.UUID, reason string) (*domain.Payout, error)
	CancelPayout(ctx context.Context, payoutID uuid.UUID) (*domain.Payout, error)
	StalePendingPayouts(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payout, error)
}

// ProviderGateway defines the interface for submitting payout transfers to the
// external payment provider. It returns the provider's transfer id.
type ProviderGateway interface {
	SubmitPayout(ctx context.Context, destination string, amountMinor int64, currency, reference string) (string, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Options carries the policy knobs the service is configured with.
type Options struct {
	DefaultCurrency           string
	DefaultMinimumPayoutMinor int64
	DefaultFrequency          domain.PayoutFrequency
	// AllowBelowMinimum permits an explicit requested amount to bypass the
	// author's minimum payout threshold. Off by default.
	AllowBelowMinimum bool
	// DispatchBatchSize caps how many PENDING payouts one dispatch pass submits.
	DispatchBatchSize int
	RecentLimit       int
}

// Service provides the business logic for the monetization ledger.
type Service struct {
	repo      Repository
	gateway   ProviderGateway
	publisher EventPublisher
	feePolicy FeePolicy
	logger    *slog.Logger
	opts      Options
}

// NewService creates a new monetization service instance.
func NewService(repo Repository, gateway ProviderGateway, publisher EventPublisher, feePolicy FeePolicy, logger *slog.Logger, opts Options) *Service {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.DefaultFrequency == "" {
		opts.DefaultFrequency = domain.PayoutFrequencyMonthly
	}
	if opts.DispatchBatchSize <= 0 {
		opts.DispatchBatchSize = 50
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 10
	}
	return &Service{
		repo:      repo,
		gateway:   gateway,
		publisher: publisher,
		feePolicy: feePolicy,
		logger:    logger,
		opts:      opts,
	}
}

// publish sends a lifecycle event, logging and swallowing broker failures so
// a flaky broker never rolls back committed ledger writes.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, EventsExchange, routingKey, body); err != nil {
		s.logger.Warn("event publish failed", "routing_key", routingKey, "error", err)
	}
}

// RecordEarning converts one unlock record into an immutable earning. Calling
// it again with the same unlock record id returns the existing earning
// unchanged: duplicate unlock notifications are not errors.
func (s *Service) RecordEarning(ctx context.Context, rec domain.UnlockRecord) (*domain.Earning, error) {
	if !rec.GrossAmount.IsPositive() {
		return nil, fmt.Errorf("%w: gross %s", money.ErrInvalidAmount, rec.GrossAmount)
	}
	// The ledger is single-currency: an earning recorded in any other currency
	// could never be batched into a payout and would strand the author's money.
	if rec.GrossAmount.Currency != s.opts.DefaultCurrency {
		return nil, fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, rec.GrossAmount.Currency, s.opts.DefaultCurrency)
	}
	if rec.ID == uuid.Nil || rec.AuthorID == uuid.Nil {
		return nil, errors.New("unlock record and author ids are required")
	}

	exists, err := s.repo.AuthorExists(ctx, rec.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("author lookup: %w", err)
	}
	if !exists {
		return nil, store.ErrAuthorNotFound
	}

	earnedAt := rec.OccurredAt
	if earnedAt.IsZero() {
		earnedAt = time.Now().UTC()
	}

	bps, fee, net, err := s.feePolicy.ComputeFee(rec.GrossAmount, earnedAt, rec.AuthorTier)
	if err != nil {
		return nil, err
	}

	earning := &domain.Earning{
		ID:             uuid.New(),
		AuthorID:       rec.AuthorID,
		ChapterID:      rec.ChapterID,
		UnlockRecordID: rec.ID,
		GrossAmount:    rec.GrossAmount,
		PlatformFeeBps: bps,
		PlatformFee:    fee,
		NetAmount:      net,
		EarnedAt:       earnedAt,
	}

	saved, created, err := s.repo.CreateEarning(ctx, earning)
	if err != nil {
		return nil, fmt.Errorf("create earning: %w", err)
	}
	if created {
		s.publish(ctx, routingEarningRecorded, domain.EarningRecordedEvent{
			EarningID:      saved.ID,
			AuthorID:       saved.AuthorID,
			ChapterID:      saved.ChapterID,
			UnlockRecordID: saved.UnlockRecordID,
			NetAmountMinor: saved.NetAmount.MinorUnits,
			Currency:       saved.NetAmount.Currency,
			Timestamp:      time.Now().UTC(),
		})
	}
	return saved, nil
}

func (s *Service) defaultSettings(authorID uuid.UUID) domain.PayoutSettings {
	return domain.PayoutSettings{
		AuthorID:      authorID,
		MinimumPayout: money.New(s.opts.DefaultMinimumPayoutMinor, s.opts.DefaultCurrency),
		Frequency:     s.opts.DefaultFrequency,
	}
}

// GetPayoutSettings returns the author's payout settings, creating the row
// with platform defaults on first access.
func (s *Service) GetPayoutSettings(ctx context.Context, authorID uuid.UUID) (*domain.PayoutSettings, error) {
	exists, err := s.repo.AuthorExists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrAuthorNotFound
	}
	return s.repo.GetOrCreatePayoutSettings(ctx, s.defaultSettings(authorID))
}

// UpdateSettingsParams carries the author-editable settings fields.
type UpdateSettingsParams struct {
	MinimumPayoutMinor *int64
	Frequency          *string
	AutoPayoutEnabled  *bool
	Destination        *string
}

// UpdatePayoutSettings applies author-facing settings changes. Enabling
// auto-payout without a configured destination is rejected.
func (s *Service) UpdatePayoutSettings(ctx context.Context, authorID uuid.UUID, params UpdateSettingsParams) (*domain.PayoutSettings, error) {
	settings, err := s.GetPayoutSettings(ctx, authorID)
	if err != nil {
		return nil, err
	}

	if params.MinimumPayoutMinor != nil {
		if *params.MinimumPayoutMinor <= 0 {
			return nil, fmt.Errorf("%w: minimum payout", money.ErrInvalidAmount)
		}
		settings.MinimumPayout = money.New(*params.MinimumPayoutMinor, s.opts.DefaultCurrency)
	}
	if params.Frequency != nil {
		frequency, ok := domain.ParsePayoutFrequency(*params.Frequency)
		if !ok {
			return nil, fmt.Errorf("unknown payout frequency %q", *params.Frequency)
		}
		settings.Frequency = frequency
	}
	if params.Destination != nil {
		settings.Destination = params.Destination
	}
	if params.AutoPayoutEnabled != nil {
		settings.AutoPayoutEnabled = *params.AutoPayoutEnabled
	}
	if settings.AutoPayoutEnabled && !settings.HasDestination() {
		return nil, store.ErrPayoutDestinationNotConfigured
	}

	if err := s.repo.UpdatePayoutSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// EarningsSummary returns the author's dashboard projection: lifetime and
// unpaid totals plus the most recent earnings.
func (s *Service) EarningsSummary(ctx context.Context, authorID uuid.UUID) (*domain.EarningsSummary, error) {
	exists, err := s.repo.AuthorExists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrAuthorNotFound
	}

	lifetime, err := s.repo.TotalLifetime(ctx, authorID)
	if err != nil {
		return nil, err
	}
	unpaid, err := s.repo.TotalUnpaid(ctx, authorID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentEarnings(ctx, authorID, s.opts.RecentLimit)
	if err != nil {
		return nil, err
	}

	return &domain.EarningsSummary{
		AuthorID:      authorID,
		TotalLifetime: money.New(lifetime, s.opts.DefaultCurrency),
		TotalUnpaid:   money.New(unpaid, s.opts.DefaultCurrency),
		Recent:        recent,
	}, nil
}

// EarningsInPeriod lists the author's earnings inside [start, end).
func (s *Service) EarningsInPeriod(ctx context.Context, authorID uuid.UUID, start, end time.Time) ([]domain.Earning, error) {
	return s.repo.EarningsInPeriod(ctx, authorID, start, end)
}

// UnpaidEarnings lists the author's unpaid earnings oldest-first, the same
// order the batcher will claim them in.
func (s *Service) UnpaidEarnings(ctx context.Context, authorID uuid.UUID) ([]domain.Earning, error) {
	exists, err := s.repo.AuthorExists(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrAuthorNotFound
	}
	return s.repo.UnpaidEarningsForAuthor(ctx, authorID)
}

// PayoutDetails returns one payout with the earnings it batched. Other
// authors' payouts are reported as not found, never as forbidden.
func (s *Service) PayoutDetails(ctx context.Context, authorID, payoutID uuid.UUID) (*domain.Payout, []domain.Earning, error) {
	payout, err := s.repo.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, nil, err
	}
	if payout.AuthorID != authorID {
		return nil, nil, store.ErrPayoutNotFound
	}
	earnings, err := s.repo.EarningsByPayoutID(ctx, payoutID)
	if err != nil {
		return nil, nil, err
	}
	return payout, earnings, nil
}

// RecentPayouts lists the author's newest payout batches.
func (s *Service) RecentPayouts(ctx context.Context, authorID uuid.UUID) ([]domain.Payout, error) {
	return s.repo.RecentPayouts(ctx, authorID, s.opts.RecentLimit)
}

// TopEarningAuthors is the internal analytics projection over the ledger.
func (s *Service) TopEarningAuthors(ctx context.Context, since time.Time, limit int) ([]domain.AuthorEarningsTotal, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.TopEarningAuthors(ctx, since, limit)
}
