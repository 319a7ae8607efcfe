//go:build integration

package mirror

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/testutil/containers"
)

func TestKafkaMirrorDeliversMaskedSummary(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t).Broker
	topic := "kyc.records.test." + uuid.NewString()[:8]

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pub, err := NewKafka(ctx, Config{Brokers: []string{broker}, Topic: topic})
	require.NoError(t, err)

	record := models.VerificationRecord{
		ID:               id.NewRecordID(),
		UserID:           id.UserID(uuid.New()),
		Status:           models.StatusVerified,
		DocumentEvidence: evidence.DocumentEvidence{DocumentNumber: "1234 5678 9012"},
		FinalDecision:    evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 8, ConfidenceScore: 95},
		CreatedAt:        time.Now().UTC(),
	}
	pub.Publish(ctx, record)
	require.NoError(t, pub.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, record.UserID.String(), string(records[0].Key))
	var got Summary
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, record.ID.String(), got.RecordID)
	assert.Equal(t, "XXXX XXXX 9012", got.DocumentNumber)
}
