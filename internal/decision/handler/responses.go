package handler

import (
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
)

// FinalizeResponse echoes the stored decision together with the new record's
// identifier.
type FinalizeResponse struct {
	evidence.FinalDecision
	RecordID string        `json:"recordId"`
	Status   models.Status `json:"status"`
}

func FromRecord(r *models.VerificationRecord) *FinalizeResponse {
	return &FinalizeResponse{
		FinalDecision: r.FinalDecision,
		RecordID:      r.ID.String(),
		Status:        r.Status,
	}
}
