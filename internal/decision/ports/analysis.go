package ports

import (
	"context"

	evidence "kycbuster/internal/evidence/models"
)

// Aggregator combines the three stage verdicts into one decision. It is the
// aggregate half of the analysis gateway.
type Aggregator interface {
	Aggregate(ctx context.Context, doc *evidence.DocumentVerdict, live *evidence.LivenessVerdict, voice *evidence.VoiceVerdict) (*evidence.FinalDecision, error)
}
