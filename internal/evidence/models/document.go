package models

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	dErrors "kycbuster/pkg/domain-errors"
)

// NewDocumentEvidence records what a document verdict extracted plus a
// fingerprint of the uploaded image. The image bytes are not kept.
func NewDocumentEvidence(v DocumentVerdict, image Media) DocumentEvidence {
	ev := DocumentEvidenceFrom(v)
	if !image.Empty() {
		sum := blake2b.Sum256(image.Data)
		ev.Fingerprint = hex.EncodeToString(sum[:])
		ev.MIMEType = image.MIMEType
		ev.SizeBytes = len(image.Data)
	}
	return ev
}

// DocumentEvidenceFrom copies the identity fields of a verdict.
func DocumentEvidenceFrom(v DocumentVerdict) DocumentEvidence {
	return DocumentEvidence{
		Name:           v.Name,
		DocumentNumber: v.DocumentNumber,
		DOB:            v.DOB,
		Address:        v.Address,
	}
}

// HashIdentifier returns a stable hex digest of an identifier such as a
// document number, ignoring case and whitespace. Empty input hashes to "".
func HashIdentifier(s string) string {
	normalized := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if normalized == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ValidateScores checks the 0-100 bounds of every score on the verdict.
func (v DocumentVerdict) ValidateScores() error {
	return ValidateScore("documentVerdict.confidence", v.Confidence)
}

func (v LivenessVerdict) ValidateScores() error {
	if v.RiskLevel != "" && !v.RiskLevel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "livenessVerdict.riskLevel must be one of low, medium, high")
	}
	if err := ValidateScore("livenessVerdict.confidence", v.Confidence); err != nil {
		return err
	}
	return ValidateScore("livenessVerdict.matchScore", v.MatchScore)
}

func (v VoiceVerdict) ValidateScores() error {
	if err := ValidateScore("voiceVerdict.riskScore", v.RiskScore); err != nil {
		return err
	}
	return ValidateScore("voiceVerdict.confidence", v.Confidence)
}

func (v VideoVerdict) ValidateScores() error {
	if !v.RiskLevel.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "riskLevel must be one of low, medium, high")
	}
	return ValidateScore("confidenceScore", v.ConfidenceScore)
}
