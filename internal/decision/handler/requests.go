package handler

import (
	"strings"

	"kycbuster/internal/decision"
	evidence "kycbuster/internal/evidence/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
)

// FinalizeRequest is the HTTP request body for POST /kyc/finalize.
//
// When FinalDecision is omitted the server aggregates the verdicts itself;
// otherwise the supplied decision is validated and stored as is.
type FinalizeRequest struct {
	UserID           string                     `json:"userId,omitempty"`
	DocumentEvidence *evidence.DocumentEvidence `json:"documentEvidence,omitempty"`
	DocumentVerdict  *evidence.DocumentVerdict  `json:"documentVerdict"`
	LivenessVerdict  *evidence.LivenessVerdict  `json:"livenessVerdict"`
	VoiceVerdict     *evidence.VoiceVerdict     `json:"voiceVerdict"`
	FinalDecision    *evidence.FinalDecision    `json:"finalDecision,omitempty"`
}

func (r *FinalizeRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.FinalDecision != nil {
		r.FinalDecision.Decision = evidence.Decision(strings.ToLower(strings.TrimSpace(string(r.FinalDecision.Decision))))
	}
}

// Validate implements httputil.Validatable.
func (r *FinalizeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.UserID != "" {
		if _, err := id.ParseUserID(r.UserID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "userId must be a valid UUID")
		}
	}
	if r.FinalDecision != nil {
		if err := r.FinalDecision.Validate(); err != nil {
			return err
		}
	}
	// The remaining checks need the caller's identity and live on
	// decision.FinalizeInput.
	return nil
}

// Input builds the finalizer input for the authenticated caller.
func (r *FinalizeRequest) Input(caller id.UserID) decision.FinalizeInput {
	in := decision.FinalizeInput{
		UserID:          caller,
		DocumentVerdict: r.DocumentVerdict,
		LivenessVerdict: r.LivenessVerdict,
		VoiceVerdict:    r.VoiceVerdict,
	}
	if r.DocumentEvidence != nil {
		in.DocumentEvidence = *r.DocumentEvidence
	}
	return in
}
