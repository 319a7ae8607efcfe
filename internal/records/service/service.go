// Package service answers read queries over persisted verification and video
// records: per-user history and the cross-user admin aggregate.
package service

import (
	"context"
	"log/slog"

	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/requestcontext"
)

// DefaultRecentLimit is the size of the recent-activity list in Stats.
const DefaultRecentLimit = 10

type Store interface {
	HistoryForUser(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error)
	VideoHistoryForUser(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error)
	AggregateStats(ctx context.Context, recentLimit int) (*models.Stats, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	auditPublisher AuditPublisher
	logger         *slog.Logger
	recentLimit    int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

// WithRecentLimit bounds the recent-activity list. Non-positive values keep
// the default.
func WithRecentLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, recentLimit: DefaultRecentLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the user's verification records, newest first.
func (s *Service) History(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	records, err := s.store.HistoryForUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to fetch history")
	}
	return records, nil
}

// VideoHistory returns the user's video analyses, newest first.
func (s *Service) VideoHistory(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	records, err := s.store.VideoHistoryForUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to fetch video history")
	}
	return records, nil
}

// Stats returns the cross-user aggregate. Callers must hold the admin role;
// the read itself is audited.
func (s *Service) Stats(ctx context.Context, actor id.UserID) (*models.Stats, error) {
	if !requestcontext.IsAdmin(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin role required")
	}
	stats, err := s.store.AggregateStats(ctx, s.recentLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to aggregate stats")
	}
	s.emitAudit(ctx, audit.Event{
		Action:    string(audit.EventAdminStatsViewed),
		UserID:    actor,
		ActorID:   actor.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return stats, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}
