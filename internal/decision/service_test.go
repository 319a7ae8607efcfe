package decision

//go:generate mockgen -source=ports/analysis.go -destination=ports/mocks/analysis.go -package=mocks
//go:generate mockgen -source=ports/records.go -destination=ports/mocks/records.go -package=mocks
//go:generate mockgen -source=ports/audit.go -destination=ports/mocks/audit.go -package=mocks
import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycbuster/internal/decision/ports/mocks"
	"kycbuster/internal/evidence/analysis"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/requestcontext"
)

type FinalizeSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	aggregator *mocks.MockAggregator
	store      *mocks.MockRecordStore
	mirror     *mocks.MockMirror
	auditor    *mocks.MockAuditPort
	service    *Service
	ctx        context.Context
	now        time.Time
	input      FinalizeInput
}

func TestFinalizeSuite(t *testing.T) {
	suite.Run(t, new(FinalizeSuite))
}

func (s *FinalizeSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.aggregator = mocks.NewMockAggregator(s.ctrl)
	s.store = mocks.NewMockRecordStore(s.ctrl)
	s.mirror = mocks.NewMockMirror(s.ctrl)
	s.auditor = mocks.NewMockAuditPort(s.ctrl)
	s.service = New(s.aggregator, s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMirror(s.mirror),
		WithAuditPublisher(s.auditor),
	)
	s.now = time.Date(2025, 5, 4, 12, 30, 0, 123456789, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.input = FinalizeInput{
		UserID:          id.UserID(uuid.New()),
		DocumentVerdict: &evidence.DocumentVerdict{Name: "Asha Rao", DocumentNumber: "1234 5678 9012", Confidence: 92},
		LivenessVerdict: &evidence.LivenessVerdict{IsLive: true, Confidence: 90, MatchScore: 88, RiskLevel: evidence.RiskLow},
		VoiceVerdict:    &evidence.VoiceVerdict{CodeVerified: true, IsNatural: true, RiskScore: 4, Confidence: 93},
	}
}

func (s *FinalizeSuite) TestFinalize() {
	s.Run("verified decision writes one verified record", func() {
		final := &evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 12, ConfidenceScore: 94, Explanation: "consistent"}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), s.input.DocumentVerdict, s.input.LivenessVerdict, s.input.VoiceVerdict).Return(final, nil)

		var stored *models.VerificationRecord
		s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, r *models.VerificationRecord) error {
				stored = r
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventVerificationFinalized), e.Action)
				s.Equal("verified", e.Decision)
				s.Equal(evidence.HashIdentifier("123456789012"), e.SubjectIDHash)
				return nil
			})
		s.mirror.EXPECT().Publish(gomock.Any(), gomock.Any())

		record, err := s.service.Finalize(s.ctx, s.input)
		s.Require().NoError(err)
		s.Same(stored, record)
		s.Equal(models.StatusVerified, record.Status)
		s.Equal(s.input.UserID, record.UserID)
		s.Equal(*final, record.FinalDecision)
		s.Equal("Asha Rao", record.DocumentEvidence.Name, "evidence falls back to the verdict's fields")
		s.Equal(s.now.Truncate(time.Microsecond), record.CreatedAt)
		s.False(record.ID.IsNil())
	})

	s.Run("content never blocks persistence", func() {
		s.input.LivenessVerdict = &evidence.LivenessVerdict{IsLive: false, Confidence: 80, RiskLevel: evidence.RiskHigh}
		final := &evidence.FinalDecision{Decision: evidence.DecisionFake, RiskScore: 91, ConfidenceScore: 85}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(final, nil)
		s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.mirror.EXPECT().Publish(gomock.Any(), gomock.Any())

		record, err := s.service.Finalize(s.ctx, s.input)
		s.Require().NoError(err)
		s.Equal(models.StatusFake, record.Status)
	})

	s.Run("gateway failure persists nothing and keeps its category", func() {
		gwErr := dErrors.Wrap(analysis.NewError(analysis.CategoryRateLimited, "quota exhausted", nil), dErrors.CodeRateLimited, "analysis rate limited")
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, gwErr)

		_, err := s.service.Finalize(s.ctx, s.input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
		s.True(analysis.IsRetryable(err))
	})

	s.Run("caller cancelled during aggregation persists nothing", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()
		final := &evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 12, ConfidenceScore: 94}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, *evidence.DocumentVerdict, *evidence.LivenessVerdict, *evidence.VoiceVerdict) (*evidence.FinalDecision, error) {
				cancel()
				return final, nil
			})

		record, err := s.service.Finalize(ctx, s.input)
		s.Require().Error(err)
		s.Nil(record)
		s.ErrorIs(err, context.Canceled)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("out-of-range aggregate is rejected before persistence", func() {
		final := &evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 140, ConfidenceScore: 90}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(final, nil)

		_, err := s.service.Finalize(s.ctx, s.input)
		s.True(dErrors.HasCode(err, dErrors.CodeBadGateway))
	})

	s.Run("store failure is reported as a save failure", func() {
		final := &evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 10, ConfidenceScore: 90}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(final, nil)
		s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(errors.New("database is locked"))

		_, err := s.service.Finalize(s.ctx, s.input)
		s.True(dErrors.HasCode(err, dErrors.CodePersistence))
		s.Equal(SaveFailedMessage, dErrors.MessageOf(err))
	})

	s.Run("audit failure does not undo the write", func() {
		final := &evidence.FinalDecision{Decision: evidence.DecisionSuspicious, RiskScore: 50, ConfidenceScore: 60}
		s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(final, nil)
		s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down"))
		s.mirror.EXPECT().Publish(gomock.Any(), gomock.Any())

		record, err := s.service.Finalize(s.ctx, s.input)
		s.Require().NoError(err)
		s.Equal(models.StatusSuspicious, record.Status)
	})
}

func (s *FinalizeSuite) TestFinalizeValidation() {
	tests := []struct {
		name   string
		mutate func(in *FinalizeInput)
	}{
		{"missing user", func(in *FinalizeInput) { in.UserID = id.UserID{} }},
		{"missing document verdict", func(in *FinalizeInput) { in.DocumentVerdict = nil }},
		{"missing liveness verdict", func(in *FinalizeInput) { in.LivenessVerdict = nil }},
		{"missing voice verdict", func(in *FinalizeInput) { in.VoiceVerdict = nil }},
		{"voice risk out of range", func(in *FinalizeInput) { in.VoiceVerdict = &evidence.VoiceVerdict{RiskScore: 101} }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			in := s.input
			tt.mutate(&in)
			// No gateway or store expectations: neither may be called.
			_, err := s.service.Finalize(s.ctx, in)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *FinalizeSuite) TestPersist() {
	s.Run("client-aggregated decision is stored as given", func() {
		s.input.DocumentEvidence = evidence.DocumentEvidence{Name: "A. Rao", Fingerprint: "abcd"}
		final := evidence.FinalDecision{Decision: evidence.DecisionSuspicious, RiskScore: 45, ConfidenceScore: 70}
		s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.mirror.EXPECT().Publish(gomock.Any(), gomock.Any())

		record, err := s.service.Persist(s.ctx, s.input, final)
		s.Require().NoError(err)
		s.Equal(models.StatusSuspicious, record.Status)
		s.Equal("abcd", record.DocumentEvidence.Fingerprint)
	})

	s.Run("unknown decision is a validation error", func() {
		_, err := s.service.Persist(s.ctx, s.input, evidence.FinalDecision{Decision: "approved", RiskScore: 1, ConfidenceScore: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("scores are not clamped", func() {
		_, err := s.service.Persist(s.ctx, s.input, evidence.FinalDecision{Decision: evidence.DecisionFake, RiskScore: -3, ConfidenceScore: 50})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *FinalizeSuite) TestEachCallWritesANewRecord() {
	final := &evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 10, ConfidenceScore: 90}
	s.aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(final, nil).Times(2)
	s.store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mirror.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(2)

	first, err := s.service.Finalize(s.ctx, s.input)
	s.Require().NoError(err)
	second, err := s.service.Finalize(s.ctx, s.input)
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
}

func TestNewWithoutOptionalCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)
	aggregator := mocks.NewMockAggregator(ctrl)
	store := mocks.NewMockRecordStore(ctrl)
	svc := New(aggregator, store)

	in := FinalizeInput{
		UserID:          id.UserID(uuid.New()),
		DocumentVerdict: &evidence.DocumentVerdict{Confidence: 90},
		LivenessVerdict: &evidence.LivenessVerdict{Confidence: 90},
		VoiceVerdict:    &evidence.VoiceVerdict{Confidence: 90},
	}
	aggregator.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 5, ConfidenceScore: 95}, nil)
	store.EXPECT().InsertRecord(gomock.Any(), gomock.Any()).Return(nil)

	record, err := svc.Finalize(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Status != models.StatusVerified {
		t.Fatalf("expected verified, got %s", record.Status)
	}
}
