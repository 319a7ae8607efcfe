package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"kycbuster/internal/evidence/models"
	platformstrings "kycbuster/pkg/platform/strings"
)

// errShape is returned when a payload does not match the expected verdict.
var errShape = errors.New("response does not match verdict shape")

// Wire shapes use pointers so a missing field is distinguishable from a zero
// value. Risk-bearing fields are required; descriptive ones default to empty.

type documentWire struct {
	Name           *string  `json:"name"`
	DocumentNumber *string  `json:"documentNumber"`
	DOB            *string  `json:"dob"`
	Address        *string  `json:"address"`
	IsTampered     *bool    `json:"isTampered"`
	Confidence     *float64 `json:"confidence"`
	Reasoning      *string  `json:"reasoning"`
}

type movementsWire struct {
	Blink       *bool `json:"blink"`
	Smile       *bool `json:"smile"`
	HeadTurn    *bool `json:"headTurn"`
	DepthChange *bool `json:"depthChange"`
}

type livenessWire struct {
	IsLive            *bool          `json:"isLive"`
	HumanDetected     *bool          `json:"humanDetected"`
	Confidence        *float64       `json:"confidence"`
	RiskLevel         *string        `json:"riskLevel"`
	DetectedMovements *movementsWire `json:"detectedMovements"`
	MatchScore        *float64       `json:"matchScore"`
	Reasoning         *string        `json:"reasoning"`
	Explanation       *string        `json:"explanation"`
}

type voiceWire struct {
	MatchesText  *bool    `json:"matchesText"`
	CodeVerified *bool    `json:"codeVerified"`
	IsNatural    *bool    `json:"isNatural"`
	RiskScore    *float64 `json:"riskScore"`
	Reasoning    *string  `json:"reasoning"`
	Transcript   *string  `json:"transcript"`
	Confidence   *float64 `json:"confidence"`
}

type frameFindingWire struct {
	Timestamp *string `json:"timestamp"`
	Issue     *string `json:"issue"`
}

type videoWire struct {
	IsDeepfake        *bool              `json:"isDeepfake"`
	ConfidenceScore   *float64           `json:"confidenceScore"`
	RiskLevel         *string            `json:"riskLevel"`
	DetectedAnomalies []string           `json:"detectedAnomalies"`
	Explanation       *string            `json:"explanation"`
	FrameAnalysis     []frameFindingWire `json:"frameAnalysis"`
}

type decisionWire struct {
	Decision        *string  `json:"decision"`
	RiskScore       *float64 `json:"riskScore"`
	ConfidenceScore *float64 `json:"confidenceScore"`
	Explanation     *string  `json:"explanation"`
}

// ParseDocumentVerdict strictly parses a document analysis payload.
func ParseDocumentVerdict(raw string) (*models.DocumentVerdict, error) {
	var w documentWire
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if w.IsTampered == nil {
		return nil, missing("isTampered")
	}
	confidence, err := score("confidence", w.Confidence)
	if err != nil {
		return nil, err
	}
	return &models.DocumentVerdict{
		Name:           str(w.Name),
		DocumentNumber: str(w.DocumentNumber),
		DOB:            str(w.DOB),
		Address:        str(w.Address),
		IsTampered:     *w.IsTampered,
		Confidence:     confidence,
		Reasoning:      str(w.Reasoning),
	}, nil
}

// ParseLivenessVerdict strictly parses a liveness analysis payload.
func ParseLivenessVerdict(raw string) (*models.LivenessVerdict, error) {
	var w livenessWire
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if w.IsLive == nil {
		return nil, missing("isLive")
	}
	confidence, err := score("confidence", w.Confidence)
	if err != nil {
		return nil, err
	}
	matchScore, err := score("matchScore", w.MatchScore)
	if err != nil {
		return nil, err
	}
	risk, err := riskLevel(w.RiskLevel)
	if err != nil {
		return nil, err
	}
	v := &models.LivenessVerdict{
		IsLive:        *w.IsLive,
		HumanDetected: boolean(w.HumanDetected),
		Confidence:    confidence,
		RiskLevel:     risk,
		MatchScore:    matchScore,
		Reasoning:     str(w.Reasoning),
		Explanation:   str(w.Explanation),
	}
	if m := w.DetectedMovements; m != nil {
		v.DetectedMovements = models.Movements{
			Blink:       boolean(m.Blink),
			Smile:       boolean(m.Smile),
			HeadTurn:    boolean(m.HeadTurn),
			DepthChange: boolean(m.DepthChange),
		}
	}
	return v, nil
}

// ParseVoiceVerdict strictly parses a voice analysis payload.
func ParseVoiceVerdict(raw string) (*models.VoiceVerdict, error) {
	var w voiceWire
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if w.CodeVerified == nil {
		return nil, missing("codeVerified")
	}
	if w.IsNatural == nil {
		return nil, missing("isNatural")
	}
	riskScore, err := score("riskScore", w.RiskScore)
	if err != nil {
		return nil, err
	}
	confidence, err := score("confidence", w.Confidence)
	if err != nil {
		return nil, err
	}
	return &models.VoiceVerdict{
		MatchesText:  boolean(w.MatchesText),
		CodeVerified: *w.CodeVerified,
		IsNatural:    *w.IsNatural,
		RiskScore:    riskScore,
		Reasoning:    str(w.Reasoning),
		Transcript:   str(w.Transcript),
		Confidence:   confidence,
	}, nil
}

// ParseVideoVerdict strictly parses a video deepfake analysis payload.
func ParseVideoVerdict(raw string) (*models.VideoVerdict, error) {
	var w videoWire
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if w.IsDeepfake == nil {
		return nil, missing("isDeepfake")
	}
	confidence, err := score("confidenceScore", w.ConfidenceScore)
	if err != nil {
		return nil, err
	}
	risk, err := riskLevel(w.RiskLevel)
	if err != nil {
		return nil, err
	}
	anomalies := platformstrings.DedupeAndTrim(w.DetectedAnomalies)
	if anomalies == nil {
		anomalies = []string{}
	}
	v := &models.VideoVerdict{
		IsDeepfake:        *w.IsDeepfake,
		ConfidenceScore:   confidence,
		RiskLevel:         risk,
		DetectedAnomalies: anomalies,
		Explanation:       str(w.Explanation),
	}
	for _, f := range w.FrameAnalysis {
		v.FrameAnalysis = append(v.FrameAnalysis, models.FrameFinding{
			Timestamp: str(f.Timestamp),
			Issue:     str(f.Issue),
		})
	}
	return v, nil
}

// ParseFinalDecision strictly parses an aggregation payload.
func ParseFinalDecision(raw string) (*models.FinalDecision, error) {
	var w decisionWire
	if err := decodeObject(raw, &w); err != nil {
		return nil, err
	}
	if w.Decision == nil {
		return nil, missing("decision")
	}
	decision := models.Decision(strings.ToLower(strings.TrimSpace(*w.Decision)))
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: unknown decision %q", errShape, *w.Decision)
	}
	riskScore, err := score("riskScore", w.RiskScore)
	if err != nil {
		return nil, err
	}
	confidence, err := score("confidenceScore", w.ConfidenceScore)
	if err != nil {
		return nil, err
	}
	return &models.FinalDecision{
		Decision:        decision,
		RiskScore:       riskScore,
		ConfidenceScore: confidence,
		Explanation:     str(w.Explanation),
	}, nil
}

// decodeObject accepts a single JSON object, optionally wrapped in a Markdown
// code fence. Unknown fields are ignored.
func decodeObject(raw string, dst any) error {
	body := bytes.TrimSpace([]byte(stripFence(raw)))
	if len(body) == 0 || body[0] != '{' {
		return fmt.Errorf("%w: expected a JSON object", errShape)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errShape, err)
	}
	return nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func missing(field string) error {
	return fmt.Errorf("%w: missing required field %q", errShape, field)
}

func score(field string, v *float64) (int, error) {
	if v == nil {
		return 0, missing(field)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 100 {
		return 0, fmt.Errorf("%w: %s %v outside [0,100]", errShape, field, *v)
	}
	return int(math.Round(*v)), nil
}

func riskLevel(v *string) (models.RiskLevel, error) {
	if v == nil {
		return "", missing("riskLevel")
	}
	r := models.RiskLevel(strings.ToLower(strings.TrimSpace(*v)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown riskLevel %q", errShape, *v)
	}
	return r, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolean(p *bool) bool {
	return p != nil && *p
}
