package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/platform/sentinel"
)

type recordStore interface {
	InsertRecord(ctx context.Context, r *models.VerificationRecord) error
	HistoryForUser(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error)
	InsertVideoRecord(ctx context.Context, r *models.VideoAnalysisRecord) error
	VideoHistoryForUser(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error)
	AggregateStats(ctx context.Context, recentLimit int) (*models.Stats, error)
}

// StoreContractSuite runs the same behaviour checks against every store.
type StoreContractSuite struct {
	suite.Suite
	newStore func() recordStore
	store    recordStore
	ctx      context.Context
	base     time.Time
}

func (s *StoreContractSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
	s.base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreContractSuite) newRecord(userID id.UserID, status models.Status, at time.Time) *models.VerificationRecord {
	return &models.VerificationRecord{
		ID:     id.NewRecordID(),
		UserID: userID,
		Status: status,
		DocumentEvidence: evidence.DocumentEvidence{
			Name:           "Asha Rao",
			DocumentNumber: "1234 5678 9012",
			Fingerprint:    "ab12",
			MIMEType:       "image/jpeg",
			SizeBytes:      2048,
		},
		DocumentVerdict: evidence.DocumentVerdict{Name: "Asha Rao", Confidence: 92, Reasoning: "clean"},
		LivenessVerdict: evidence.LivenessVerdict{
			IsLive: true, HumanDetected: true, Confidence: 90, RiskLevel: evidence.RiskLow, MatchScore: 88,
			DetectedMovements: evidence.Movements{Blink: true, Smile: true, HeadTurn: true, DepthChange: true},
		},
		VoiceVerdict:  evidence.VoiceVerdict{CodeVerified: true, IsNatural: true, RiskScore: 5, Confidence: 91, Transcript: "My verification code is 4821"},
		FinalDecision: evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 12, ConfidenceScore: 94, Explanation: "consistent"},
		CreatedAt:     at,
	}
}

func (s *StoreContractSuite) newVideo(userID id.UserID, deepfake bool, at time.Time) *models.VideoAnalysisRecord {
	risk := evidence.RiskLow
	if deepfake {
		risk = evidence.RiskHigh
	}
	return &models.VideoAnalysisRecord{
		ID:              id.NewVideoRecordID(),
		UserID:          userID,
		VideoName:       "clip.mp4",
		IsDeepfake:      deepfake,
		RiskLevel:       risk,
		ConfidenceScore: 80,
		AnalysisPayload: evidence.VideoVerdict{
			IsDeepfake:        deepfake,
			ConfidenceScore:   80,
			RiskLevel:         risk,
			DetectedAnomalies: []string{"flicker"},
			FrameAnalysis:     []evidence.FrameFinding{{Timestamp: "00:02", Issue: "edge blur"}},
		},
		CreatedAt: at,
	}
}

func (s *StoreContractSuite) TestRecordRoundTrip() {
	userID := id.UserID(uuid.New())
	rec := s.newRecord(userID, models.StatusVerified, s.base)
	s.Require().NoError(s.store.InsertRecord(s.ctx, rec))

	history, err := s.store.HistoryForUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(*rec, history[0], "round-trip read equals the written value")
}

func (s *StoreContractSuite) TestRecordsAreNeverOverwritten() {
	userID := id.UserID(uuid.New())
	rec := s.newRecord(userID, models.StatusVerified, s.base)
	s.Require().NoError(s.store.InsertRecord(s.ctx, rec))

	again := *rec
	again.Status = models.StatusFake
	err := s.store.InsertRecord(s.ctx, &again)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	video := s.newVideo(userID, false, s.base)
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, video))
	s.Require().ErrorIs(s.store.InsertVideoRecord(s.ctx, video), sentinel.ErrConflict)

	history, err := s.store.HistoryForUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.StatusVerified, history[0].Status)
}

func (s *StoreContractSuite) TestHistoryNewestFirstAndScopedToUser() {
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	older := s.newRecord(alice, models.StatusSuspicious, s.base)
	newer := s.newRecord(alice, models.StatusVerified, s.base.Add(time.Minute))
	other := s.newRecord(bob, models.StatusFake, s.base.Add(2*time.Minute))
	for _, r := range []*models.VerificationRecord{older, newer, other} {
		s.Require().NoError(s.store.InsertRecord(s.ctx, r))
	}

	history, err := s.store.HistoryForUser(s.ctx, alice)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(newer.ID, history[0].ID)
	s.Equal(older.ID, history[1].ID)

	empty, err := s.store.HistoryForUser(s.ctx, id.UserID(uuid.New()))
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *StoreContractSuite) TestReadsDoNotExposeStoredState() {
	userID := id.UserID(uuid.New())
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, s.newVideo(userID, true, s.base)))

	first, err := s.store.VideoHistoryForUser(s.ctx, userID)
	s.Require().NoError(err)
	first[0].AnalysisPayload.DetectedAnomalies[0] = "tampered"
	first[0].VideoName = "renamed"

	second, err := s.store.VideoHistoryForUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal("flicker", second[0].AnalysisPayload.DetectedAnomalies[0])
	s.Equal("clip.mp4", second[0].VideoName)
}

func (s *StoreContractSuite) TestVideoHistory() {
	userID := id.UserID(uuid.New())
	older := s.newVideo(userID, false, s.base)
	newer := s.newVideo(userID, true, s.base.Add(time.Second))
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, older))
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, newer))

	history, err := s.store.VideoHistoryForUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(*newer, history[0])
	s.Equal(older.ID, history[1].ID)
}

func (s *StoreContractSuite) TestAggregateStats() {
	alice := id.UserID(uuid.New())
	bob := id.UserID(uuid.New())

	records := []*models.VerificationRecord{
		s.newRecord(alice, models.StatusVerified, s.base),
		s.newRecord(alice, models.StatusSuspicious, s.base.Add(1*time.Minute)),
		s.newRecord(bob, models.StatusFake, s.base.Add(2*time.Minute)),
		s.newRecord(bob, models.StatusVerified, s.base.Add(3*time.Minute)),
	}
	for _, r := range records {
		s.Require().NoError(s.store.InsertRecord(s.ctx, r))
	}
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, s.newVideo(alice, true, s.base)))
	s.Require().NoError(s.store.InsertVideoRecord(s.ctx, s.newVideo(bob, false, s.base)))

	stats, err := s.store.AggregateStats(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(map[models.Status]int{
		models.StatusPending:    0,
		models.StatusVerified:   2,
		models.StatusSuspicious: 1,
		models.StatusFake:       1,
	}, stats.StatusCounts)
	s.Equal(4, stats.TotalRecords)
	s.Equal(2, stats.DistinctUsers)
	s.Equal(2, stats.TotalVideos)
	s.Equal(1, stats.VideoDeepfakes)

	s.Require().Len(stats.Recent, 3)
	s.Equal(records[3].ID, stats.Recent[0].RecordID)
	s.Equal(records[1].ID, stats.Recent[2].RecordID)
	s.Equal("Asha Rao", stats.Recent[0].FullName)
}

func (s *StoreContractSuite) TestAggregateStatsNonPositiveRecentLimit() {
	user := id.UserID(uuid.New())
	s.Require().NoError(s.store.InsertRecord(s.ctx, s.newRecord(user, models.StatusVerified, s.base)))
	s.Require().NoError(s.store.InsertRecord(s.ctx, s.newRecord(user, models.StatusFake, s.base.Add(time.Minute))))

	for _, limit := range []int{0, -1} {
		stats, err := s.store.AggregateStats(s.ctx, limit)
		s.Require().NoError(err)
		s.Equal(2, stats.TotalRecords, "limit %d", limit)
		s.Equal(1, stats.DistinctUsers, "limit %d", limit)
		s.NotNil(stats.Recent, "limit %d", limit)
		s.Empty(stats.Recent, "limit %d", limit)
	}
}

func (s *StoreContractSuite) TestAggregateStatsEmpty() {
	stats, err := s.store.AggregateStats(s.ctx, 10)
	s.Require().NoError(err)
	s.Zero(stats.TotalRecords)
	s.Empty(stats.Recent)
	s.Len(stats.StatusCounts, len(models.Statuses))
}
