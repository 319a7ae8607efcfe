package video

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"kycbuster/internal/evidence/analysis"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	"kycbuster/internal/records/store"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	auditmemory "kycbuster/pkg/platform/audit/store/memory"
)

type stubAnalyzer struct {
	verdict *evidence.VideoVerdict
	err     error
	calls   int
}

func (a *stubAnalyzer) AnalyzeVideo(context.Context, evidence.Media) (*evidence.VideoVerdict, error) {
	a.calls++
	return a.verdict, a.err
}

type failingStore struct{}

func (failingStore) InsertVideoRecord(context.Context, *models.VideoAnalysisRecord) error {
	return errors.New("database is locked")
}

type auditEmitter struct{ store *auditmemory.InMemoryStore }

func (e auditEmitter) Emit(ctx context.Context, event audit.Event) error {
	return e.store.Append(ctx, event)
}

type VideoServiceSuite struct {
	suite.Suite
	ctx      context.Context
	analyzer *stubAnalyzer
	store    *store.InMemory
	audit    *auditmemory.InMemoryStore
	service  *Service
	userID   id.UserID
}

func TestVideoServiceSuite(t *testing.T) {
	suite.Run(t, new(VideoServiceSuite))
}

func (s *VideoServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.analyzer = &stubAnalyzer{verdict: &evidence.VideoVerdict{
		IsDeepfake:        true,
		ConfidenceScore:   87,
		RiskLevel:         evidence.RiskHigh,
		DetectedAnomalies: []string{"lip sync drift"},
		Explanation:       "mouth movement does not match audio",
	}}
	s.store = store.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.service = New(s.analyzer, s.store,
		WithMaxBytes(1024),
		WithAuditPublisher(auditEmitter{s.audit}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.userID = id.UserID(uuid.New())
}

func clip(n int) evidence.Media {
	return evidence.Media{MIMEType: "video/mp4", Data: make([]byte, n)}
}

func (s *VideoServiceSuite) TestAnalyzeStoresRecord() {
	record, err := s.service.Analyze(s.ctx, s.userID, " interview.mp4 ", clip(512))
	s.Require().NoError(err)
	s.Equal("interview.mp4", record.VideoName)
	s.True(record.IsDeepfake)
	s.Equal(evidence.RiskHigh, record.RiskLevel)
	s.Equal([]string{"lip sync drift"}, record.AnalysisPayload.DetectedAnomalies)

	history, err := s.store.VideoHistoryForUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(record.ID, history[0].ID)

	events, err := s.audit.ListByUser(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventVideoAnalyzed), events[0].Action)
	s.Equal("deepfake", events[0].Decision)
}

func (s *VideoServiceSuite) TestLocalChecksRunBeforeTheAnalyzer() {
	tests := []struct {
		name string
		clip evidence.Media
		code dErrors.Code
	}{
		{"too large", clip(1025), dErrors.CodePayloadTooLarge},
		{"not a video", evidence.Media{MIMEType: "image/png", Data: []byte("png")}, dErrors.CodeValidation},
		{"empty", evidence.Media{MIMEType: "video/mp4"}, dErrors.CodeValidation},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Analyze(s.ctx, s.userID, "clip", tt.clip)
			s.True(dErrors.HasCode(err, tt.code), "got %v", err)
		})
	}
	s.Zero(s.analyzer.calls)
}

func (s *VideoServiceSuite) TestExactLimitIsAccepted() {
	_, err := s.service.Analyze(s.ctx, s.userID, "clip", clip(1024))
	s.NoError(err)
}

func (s *VideoServiceSuite) TestAnalyzerErrorIsReturnedUnchanged() {
	gatewayErr := dErrors.Wrap(analysis.NewError(analysis.CategoryRateLimited, "quota", nil), dErrors.CodeRateLimited, "rate limited")
	s.analyzer.err = gatewayErr
	s.analyzer.verdict = nil

	_, err := s.service.Analyze(s.ctx, s.userID, "clip", clip(10))
	s.ErrorIs(err, gatewayErr)

	history, _ := s.store.VideoHistoryForUser(s.ctx, s.userID)
	s.Empty(history)
}

func (s *VideoServiceSuite) TestSave() {
	s.Run("stores a client verdict", func() {
		rec, err := s.service.Save(s.ctx, s.userID, "selfie.webm", evidence.VideoVerdict{RiskLevel: evidence.RiskLow, ConfidenceScore: 91})
		s.Require().NoError(err)
		s.False(rec.IsDeepfake)
		s.Zero(s.analyzer.calls)
	})

	s.Run("rejects out-of-range confidence", func() {
		_, err := s.service.Save(s.ctx, s.userID, "selfie.webm", evidence.VideoVerdict{RiskLevel: evidence.RiskLow, ConfidenceScore: 101})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown risk level", func() {
		_, err := s.service.Save(s.ctx, s.userID, "selfie.webm", evidence.VideoVerdict{RiskLevel: "severe", ConfidenceScore: 50})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("requires a user", func() {
		_, err := s.service.Save(s.ctx, id.UserID{}, "selfie.webm", evidence.VideoVerdict{RiskLevel: evidence.RiskLow})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *VideoServiceSuite) TestStoreFailureIsPersistenceError() {
	svc := New(s.analyzer, failingStore{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := svc.Analyze(s.ctx, s.userID, "clip", clip(10))
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))
}

func (s *VideoServiceSuite) TestDefaultLimit() {
	s.Equal(DefaultMaxBytes, New(s.analyzer, s.store).MaxBytes())
	s.Equal(DefaultMaxBytes, New(s.analyzer, s.store, WithMaxBytes(0)).MaxBytes())
}
