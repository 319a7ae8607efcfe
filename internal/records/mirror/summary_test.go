package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
)

func TestMaskDocumentNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaced digits", "1234 5678 9012", "XXXX XXXX 9012"},
		{"alphanumeric", "AB12345C", "XXXX345C"},
		{"short value kept", "123", "123"},
		{"empty", "", ""},
		{"surrounding space trimmed", "  98765  ", "X8765"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskDocumentNumber(tt.in))
		})
	}
}

func TestSummaryFromOmitsSensitiveEvidence(t *testing.T) {
	r := models.VerificationRecord{
		ID:     id.NewRecordID(),
		UserID: id.UserID(uuid.New()),
		Status: models.StatusSuspicious,
		DocumentEvidence: evidence.DocumentEvidence{
			Name:           "Asha Rao",
			DocumentNumber: "1234 5678 9012",
			Address:        "12 MG Road, Bengaluru",
		},
		LivenessVerdict: evidence.LivenessVerdict{RiskLevel: evidence.RiskMedium},
		VoiceVerdict:    evidence.VoiceVerdict{RiskScore: 40},
		FinalDecision:   evidence.FinalDecision{Decision: evidence.DecisionSuspicious, RiskScore: 55, ConfidenceScore: 70},
		CreatedAt:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	summary := SummaryFrom(r)
	assert.Equal(t, "XXXX XXXX 9012", summary.DocumentNumber)
	assert.Equal(t, evidence.DecisionSuspicious, summary.Decision)
	assert.Equal(t, 55, summary.RiskScore)

	payload, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "MG Road")
	assert.NotContains(t, string(payload), "Asha")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = Noop{}
	assert.NotPanics(t, func() { p.Publish(context.Background(), models.VerificationRecord{}) })
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := NewKafka(context.Background(), Config{})
	assert.Error(t, err)
}
