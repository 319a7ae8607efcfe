package handler

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	"kycbuster/internal/video/handler/mocks"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type VideoHandlerSuite struct {
	suite.Suite
	router  http.Handler
	service *mocks.MockService
	userID  id.UserID
}

func TestVideoHandlerSuite(t *testing.T) {
	suite.Run(t, new(VideoHandlerSuite))
}

func (s *VideoHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.service.EXPECT().MaxBytes().Return(20 << 20).AnyTimes()
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
	s.userID = id.UserID(uuid.New())
}

func (s *VideoHandlerSuite) TestAnalyze() {
	s.Run("decodes the clip and returns the record", func() {
		s.service.EXPECT().
			Analyze(gomock.Any(), s.userID, "clip.mp4", evidence.Media{MIMEType: "video/mp4", Data: []byte("mp4-bytes")}).
			Return(&models.VideoAnalysisRecord{ID: id.NewVideoRecordID(), UserID: s.userID, VideoName: "clip.mp4", RiskLevel: evidence.RiskLow}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analyze", map[string]any{
			"videoName": "clip.mp4",
			"video":     map[string]string{"data": "data:video/mp4;base64," + base64.StdEncoding.EncodeToString([]byte("mp4-bytes"))},
		})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, s.userID.String()))

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "videoName", "clip.mp4")
		testutil.AssertJSONContains(s.T(), rr, "riskLevel", "low")
	})

	s.Run("size rejection is 413", func() {
		s.service.EXPECT().Analyze(gomock.Any(), s.userID, "big.mp4", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodePayloadTooLarge, "video must be at most 20 MB"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analyze", map[string]any{
			"videoName": "big.mp4",
			"video":     map[string]string{"mimeType": "video/mp4", "data": base64.StdEncoding.EncodeToString([]byte("x"))},
		})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, s.userID.String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusRequestEntityTooLarge, "payload_too_large")
	})

	s.Run("requires authentication", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analyze", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *VideoHandlerSuite) TestSave() {
	s.Run("stores the client verdict", func() {
		s.service.EXPECT().
			Save(gomock.Any(), s.userID, "selfie.webm", evidence.VideoVerdict{
				IsDeepfake:        true,
				RiskLevel:         evidence.RiskHigh,
				ConfidenceScore:   77,
				DetectedAnomalies: []string{"blending edges"},
			}).
			Return(&models.VideoAnalysisRecord{}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analysis", map[string]any{
			"videoName":       "selfie.webm",
			"isDeepfake":      true,
			"riskLevel":       "HIGH",
			"confidenceScore": 77,
			"analysisPayload": map[string]any{"detectedAnomalies": []string{"blending edges"}},
		})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, s.userID.String()))

		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`{"success":true}`, rr.Body.String())
	})

	s.Run("out-of-range score never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analysis", map[string]any{
			"videoName":       "selfie.webm",
			"riskLevel":       "low",
			"confidenceScore": 140,
		})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, s.userID.String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("store failure is 500 with a description", func() {
		s.service.EXPECT().Save(gomock.Any(), s.userID, "selfie.webm", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodePersistence, "video analysis could not be saved"))

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/video/analysis", map[string]any{
			"videoName": "selfie.webm", "riskLevel": "low", "confidenceScore": 10,
		})
		rr := testutil.DoRequest(s.router, testutil.WithUserID(req, s.userID.String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "persistence_error")
	})
}
