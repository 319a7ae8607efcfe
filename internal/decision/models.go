package decision

import (
	evidence "kycbuster/internal/evidence/models"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
)

// FinalizeInput is everything a finished session hands to the finalizer.
type FinalizeInput struct {
	UserID           id.UserID
	DocumentEvidence evidence.DocumentEvidence
	DocumentVerdict  *evidence.DocumentVerdict
	LivenessVerdict  *evidence.LivenessVerdict
	VoiceVerdict     *evidence.VoiceVerdict
}

// Validate rejects input that must never reach the analysis capability or the
// store: a missing owner, a missing verdict, or out-of-range scores.
func (in FinalizeInput) Validate() error {
	if in.UserID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if in.DocumentVerdict == nil {
		return dErrors.New(dErrors.CodeValidation, "documentVerdict is required")
	}
	if in.LivenessVerdict == nil {
		return dErrors.New(dErrors.CodeValidation, "livenessVerdict is required")
	}
	if in.VoiceVerdict == nil {
		return dErrors.New(dErrors.CodeValidation, "voiceVerdict is required")
	}
	if err := in.DocumentVerdict.ValidateScores(); err != nil {
		return err
	}
	if err := in.LivenessVerdict.ValidateScores(); err != nil {
		return err
	}
	return in.VoiceVerdict.ValidateScores()
}

// documentEvidence falls back to the verdict's extracted fields when the
// caller did not supply evidence of its own.
func (in FinalizeInput) documentEvidence() evidence.DocumentEvidence {
	if in.DocumentEvidence == (evidence.DocumentEvidence{}) {
		return evidence.DocumentEvidenceFrom(*in.DocumentVerdict)
	}
	return in.DocumentEvidence
}
