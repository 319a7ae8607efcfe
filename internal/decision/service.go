// Package decision turns a finished session's verdicts into one durable
// verification record.
//
// A record is written only after the aggregation call returns a valid
// decision. Each successful call writes exactly one new record; repeating the
// call writes another.
package decision

import (
	"context"
	"log/slog"
	"time"

	"kycbuster/internal/decision/metrics"
	"kycbuster/internal/decision/ports"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/requestcontext"
)

// SaveFailedMessage is reported when the record write fails, as opposed to
// the verification itself failing.
const SaveFailedMessage = "verification result could not be saved"

type Service struct {
	aggregator ports.Aggregator
	store      ports.RecordStore
	mirror     ports.Mirror
	auditor    ports.AuditPort
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(a ports.AuditPort) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMirror attaches a best-effort secondary sink.
func WithMirror(m ports.Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

func New(aggregator ports.Aggregator, store ports.RecordStore, opts ...Option) *Service {
	s := &Service{
		aggregator: aggregator,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Finalize aggregates the verdicts and persists the resulting record.
// Gateway errors are returned unchanged so callers can tell retryable
// failures from configuration problems.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (*models.VerificationRecord, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveFinalizeLatency(time.Since(start)) }()

	if err := in.Validate(); err != nil {
		s.metrics.IncrementFailure(metrics.FailureValidation)
		return nil, err
	}

	final, err := s.aggregator.Aggregate(ctx, in.DocumentVerdict, in.LivenessVerdict, in.VoiceVerdict)
	if err != nil {
		s.metrics.IncrementFailure(metrics.FailureAggregation)
		s.logger.WarnContext(ctx, "aggregation failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", in.UserID,
			"error", err,
		)
		return nil, err
	}
	if err := final.Validate(); err != nil {
		s.metrics.IncrementFailure(metrics.FailureAggregation)
		return nil, dErrors.Wrap(err, dErrors.CodeBadGateway, "aggregation returned an invalid decision")
	}

	return s.persist(ctx, in, *final)
}

// Persist stores a decision that was aggregated elsewhere, such as by a thin
// client calling the analysis capability itself. The decision is validated
// like any other input.
func (s *Service) Persist(ctx context.Context, in FinalizeInput, final evidence.FinalDecision) (*models.VerificationRecord, error) {
	if err := in.Validate(); err != nil {
		s.metrics.IncrementFailure(metrics.FailureValidation)
		return nil, err
	}
	if err := final.Validate(); err != nil {
		s.metrics.IncrementFailure(metrics.FailureValidation)
		return nil, err
	}
	return s.persist(ctx, in, final)
}

func (s *Service) persist(ctx context.Context, in FinalizeInput, final evidence.FinalDecision) (*models.VerificationRecord, error) {
	// Stores keep microsecond precision.
	createdAt := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	record := &models.VerificationRecord{
		ID:               id.NewRecordID(),
		UserID:           in.UserID,
		Status:           models.StatusFor(final.Decision),
		DocumentEvidence: in.documentEvidence(),
		DocumentVerdict:  *in.DocumentVerdict,
		LivenessVerdict:  *in.LivenessVerdict,
		VoiceVerdict:     *in.VoiceVerdict,
		FinalDecision:    final,
		CreatedAt:        createdAt,
	}

	// A caller that gave up, such as an abandoned session, gets no record.
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConflict, "verification was cancelled before it was saved")
	}
	if err := s.store.InsertRecord(ctx, record); err != nil {
		s.metrics.IncrementFailure(metrics.FailurePersistence)
		s.logger.ErrorContext(ctx, "failed to persist verification record",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", in.UserID,
			"record_id", record.ID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, SaveFailedMessage)
	}

	s.metrics.IncrementOutcome(string(record.Status))
	s.logger.InfoContext(ctx, "verification finalized",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", in.UserID,
		"record_id", record.ID,
		"status", record.Status,
		"risk_score", final.RiskScore,
	)
	s.emitAudit(ctx, record)
	if s.mirror != nil {
		s.mirror.Publish(ctx, *record)
	}
	return record, nil
}

// emitAudit records the decision. The record is already durable, so an audit
// failure is logged rather than returned.
func (s *Service) emitAudit(ctx context.Context, record *models.VerificationRecord) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		UserID:        record.UserID,
		Subject:       record.ID.String(),
		Action:        string(audit.EventVerificationFinalized),
		Decision:      string(record.Status),
		Reason:        record.FinalDecision.Explanation,
		RequestID:     requestcontext.RequestID(ctx),
		SubjectIDHash: evidence.HashIdentifier(record.DocumentEvidence.DocumentNumber),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"record_id", record.ID,
			"error", err,
		)
	}
}
