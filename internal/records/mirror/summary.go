// Package mirror publishes a minimised summary of each finalized record to a
// secondary sink. Delivery is best effort: a failed publish is logged and
// counted but never affects the primary write.
package mirror

import (
	"strings"
	"time"
	"unicode"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
)

// Summary is the mirrored view of a verification record. It carries no
// images, no address and only the last four characters of the document
// number.
type Summary struct {
	RecordID         string             `json:"recordId"`
	UserID           string             `json:"userId"`
	Status           models.Status      `json:"status"`
	Decision         evidence.Decision  `json:"decision"`
	RiskScore        int                `json:"riskScore"`
	ConfidenceScore  int                `json:"confidenceScore"`
	DocumentNumber   string             `json:"documentNumber,omitempty"`
	DocumentTampered bool               `json:"documentTampered"`
	LivenessRisk     evidence.RiskLevel `json:"livenessRisk"`
	VoiceRiskScore   int                `json:"voiceRiskScore"`
	CreatedAt        time.Time          `json:"createdAt"`
}

func SummaryFrom(r models.VerificationRecord) Summary {
	return Summary{
		RecordID:         r.ID.String(),
		UserID:           r.UserID.String(),
		Status:           r.Status,
		Decision:         r.FinalDecision.Decision,
		RiskScore:        r.FinalDecision.RiskScore,
		ConfidenceScore:  r.FinalDecision.ConfidenceScore,
		DocumentNumber:   MaskDocumentNumber(r.DocumentEvidence.DocumentNumber),
		DocumentTampered: r.DocumentVerdict.IsTampered,
		LivenessRisk:     r.LivenessVerdict.RiskLevel,
		VoiceRiskScore:   r.VoiceVerdict.RiskScore,
		CreatedAt:        r.CreatedAt,
	}
}

// MaskDocumentNumber replaces every letter or digit except the last four with
// 'X'. Separators are kept so the shape stays recognisable.
func MaskDocumentNumber(s string) string {
	runes := []rune(strings.TrimSpace(s))
	keep := 4
	for i := len(runes) - 1; i >= 0; i-- {
		r := runes[i]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if keep > 0 {
				keep--
			} else {
				runes[i] = 'X'
			}
		}
	}
	return string(runes)
}
