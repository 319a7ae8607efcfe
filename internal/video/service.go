// Package video is the standalone deepfake pipeline. It is independent of
// the verification workflow: one upload, one analysis, one stored record.
package video

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	"kycbuster/internal/video/metrics"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/requestcontext"
)

// DefaultMaxBytes is the largest clip accepted for analysis.
const DefaultMaxBytes = 20 << 20

type Analyzer interface {
	AnalyzeVideo(ctx context.Context, video evidence.Media) (*evidence.VideoVerdict, error)
}

type Store interface {
	InsertVideoRecord(ctx context.Context, r *models.VideoAnalysisRecord) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	analyzer Analyzer
	store    Store
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxBytes int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(a AuditPublisher) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMaxBytes overrides DefaultMaxBytes. Non-positive values are ignored.
func WithMaxBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func New(analyzer Analyzer, store Store, opts ...Option) *Service {
	s := &Service{
		analyzer: analyzer,
		store:    store,
		logger:   slog.Default(),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxBytes is the upload limit in effect.
func (s *Service) MaxBytes() int { return s.maxBytes }

// Analyze checks the clip locally, sends it to the analysis capability and
// stores the verdict. Nothing reaches the analyzer if the clip is too large
// or not a video.
func (s *Service) Analyze(ctx context.Context, userID id.UserID, name string, clip evidence.Media) (*models.VideoAnalysisRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.checkClip(clip); err != nil {
		return nil, err
	}

	verdict, err := s.analyzer.AnalyzeVideo(ctx, clip)
	if err != nil {
		s.logger.WarnContext(ctx, "video analysis failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}
	return s.save(ctx, userID, name, *verdict)
}

// Save stores a verdict produced elsewhere, e.g. by a client that called the
// analysis capability itself.
func (s *Service) Save(ctx context.Context, userID id.UserID, name string, verdict evidence.VideoVerdict) (*models.VideoAnalysisRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := verdict.ValidateScores(); err != nil {
		return nil, err
	}
	return s.save(ctx, userID, name, verdict)
}

func (s *Service) checkClip(clip evidence.Media) error {
	if clip.Empty() {
		return dErrors.New(dErrors.CodeValidation, "video file is required")
	}
	if len(clip.Data) > s.maxBytes {
		s.metrics.IncrementRejection("too_large")
		return dErrors.New(dErrors.CodePayloadTooLarge,
			fmt.Sprintf("video must be at most %d MB", s.maxBytes>>20))
	}
	if !strings.HasPrefix(strings.ToLower(clip.MIMEType), "video/") {
		s.metrics.IncrementRejection("not_video")
		return dErrors.New(dErrors.CodeValidation, "file must be a video")
	}
	return nil
}

func (s *Service) save(ctx context.Context, userID id.UserID, name string, verdict evidence.VideoVerdict) (*models.VideoAnalysisRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "video"
	}
	record := &models.VideoAnalysisRecord{
		ID:              id.NewVideoRecordID(),
		UserID:          userID,
		VideoName:       name,
		IsDeepfake:      verdict.IsDeepfake,
		RiskLevel:       verdict.RiskLevel,
		ConfidenceScore: verdict.ConfidenceScore,
		AnalysisPayload: verdict,
		CreatedAt:       requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
	}
	if err := s.store.InsertVideoRecord(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to store video analysis",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "video analysis could not be saved")
	}

	s.metrics.IncrementAnalysis(string(record.RiskLevel), record.IsDeepfake)
	s.logger.InfoContext(ctx, "video analysis stored",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"video_record_id", record.ID,
		"risk_level", record.RiskLevel,
		"deepfake", record.IsDeepfake,
	)
	s.emitAudit(ctx, record)
	return record, nil
}

func (s *Service) emitAudit(ctx context.Context, r *models.VideoAnalysisRecord) {
	if s.auditor == nil {
		return
	}
	decision := "authentic"
	if r.IsDeepfake {
		decision = "deepfake"
	}
	err := s.auditor.Emit(ctx, audit.Event{
		UserID:    r.UserID,
		Subject:   r.ID.String(),
		Action:    string(audit.EventVideoAnalyzed),
		Decision:  decision,
		Reason:    string(r.RiskLevel),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", audit.EventVideoAnalyzed,
			"user_id", r.UserID,
			"error", err,
		)
	}
}
