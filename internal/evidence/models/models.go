// Package models defines the evidence collected by a verification session and
// the verdict variants returned by the analysis capability.
package models

import (
	"strings"

	dErrors "kycbuster/pkg/domain-errors"
)

// Kind identifies which analysis a verdict came from.
type Kind string

const (
	KindDocument  Kind = "document"
	KindLiveness  Kind = "liveness"
	KindVoice     Kind = "voice"
	KindVideo     Kind = "video"
	KindAggregate Kind = "aggregate"
)

// PersonalDetails are the identity claims typed by the user in the first stage.
type PersonalDetails struct {
	FullName string `json:"fullName" yaml:"fullName"`
	DOB      string `json:"dob" yaml:"dob"`
	Address  string `json:"address" yaml:"address"`
}

// Normalize trims surrounding whitespace from every field.
func (p *PersonalDetails) Normalize() {
	p.FullName = strings.TrimSpace(p.FullName)
	p.DOB = strings.TrimSpace(p.DOB)
	p.Address = strings.TrimSpace(p.Address)
}

// Validate requires every field to be present.
func (p PersonalDetails) Validate() error {
	switch {
	case strings.TrimSpace(p.FullName) == "":
		return dErrors.New(dErrors.CodeValidation, "full name is required")
	case strings.TrimSpace(p.DOB) == "":
		return dErrors.New(dErrors.CodeValidation, "date of birth is required")
	case strings.TrimSpace(p.Address) == "":
		return dErrors.New(dErrors.CodeValidation, "address is required")
	}
	return nil
}

// Media is an opaque binary payload with its MIME type.
type Media struct {
	MIMEType string
	Data     []byte
}

func (m Media) Empty() bool { return len(m.Data) == 0 }

// RiskLevel is the categorical risk indicator used by liveness and video verdicts.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Decision is the aggregated outcome of a verification.
type Decision string

const (
	DecisionVerified   Decision = "verified"
	DecisionSuspicious Decision = "suspicious"
	DecisionFake       Decision = "fake"
)

func (d Decision) IsValid() bool {
	switch d {
	case DecisionVerified, DecisionSuspicious, DecisionFake:
		return true
	}
	return false
}

// DocumentVerdict is the analysis of an identity document image.
type DocumentVerdict struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	DOB            string `json:"dob"`
	Address        string `json:"address"`
	IsTampered     bool   `json:"isTampered"`
	Confidence     int    `json:"confidence"`
	Reasoning      string `json:"reasoning"`
}

// Movements records which liveness cues were observed across the frames.
type Movements struct {
	Blink       bool `json:"blink"`
	Smile       bool `json:"smile"`
	HeadTurn    bool `json:"headTurn"`
	DepthChange bool `json:"depthChange"`
}

// LivenessVerdict is the analysis of a completed capture sequence.
type LivenessVerdict struct {
	IsLive            bool      `json:"isLive"`
	HumanDetected     bool      `json:"humanDetected"`
	Confidence        int       `json:"confidence"`
	RiskLevel         RiskLevel `json:"riskLevel"`
	DetectedMovements Movements `json:"detectedMovements"`
	MatchScore        int       `json:"matchScore"`
	Reasoning         string    `json:"reasoning"`
	Explanation       string    `json:"explanation"`
}

// VoiceVerdict is the analysis of a spoken verification code.
type VoiceVerdict struct {
	MatchesText  bool   `json:"matchesText"`
	CodeVerified bool   `json:"codeVerified"`
	IsNatural    bool   `json:"isNatural"`
	RiskScore    int    `json:"riskScore"`
	Reasoning    string `json:"reasoning"`
	Transcript   string `json:"transcript"`
	Confidence   int    `json:"confidence"`
}

// FrameFinding is a timestamped issue spotted in a video.
type FrameFinding struct {
	Timestamp string `json:"timestamp"`
	Issue     string `json:"issue"`
}

// VideoVerdict is the deepfake analysis of a standalone video clip.
type VideoVerdict struct {
	IsDeepfake        bool           `json:"isDeepfake"`
	ConfidenceScore   int            `json:"confidenceScore"`
	RiskLevel         RiskLevel      `json:"riskLevel"`
	DetectedAnomalies []string       `json:"detectedAnomalies"`
	Explanation       string         `json:"explanation"`
	FrameAnalysis     []FrameFinding `json:"frameAnalysis,omitempty"`
}

// FinalDecision is the aggregate verdict over document, liveness and voice.
type FinalDecision struct {
	Decision        Decision `json:"decision"`
	RiskScore       int      `json:"riskScore"`
	ConfidenceScore int      `json:"confidenceScore"`
	Explanation     string   `json:"explanation"`
}

// Validate rejects unknown decisions and out-of-range scores. Scores are never
// clamped.
func (d FinalDecision) Validate() error {
	if !d.Decision.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "decision must be one of verified, suspicious, fake")
	}
	if err := ValidateScore("riskScore", d.RiskScore); err != nil {
		return err
	}
	return ValidateScore("confidenceScore", d.ConfidenceScore)
}

// ValidateScore checks that a score lies in [0,100].
func ValidateScore(field string, v int) error {
	if v < 0 || v > 100 {
		return dErrors.New(dErrors.CodeValidation, field+" must be between 0 and 100")
	}
	return nil
}

// DocumentEvidence is what a verification record keeps about the uploaded
// document. The raw image is never persisted; only its fingerprint is.
type DocumentEvidence struct {
	Name           string `json:"name"`
	DocumentNumber string `json:"documentNumber"`
	DOB            string `json:"dob"`
	Address        string `json:"address"`
	Fingerprint    string `json:"fingerprint,omitempty"`
	MIMEType       string `json:"mimeType,omitempty"`
	SizeBytes      int    `json:"sizeBytes,omitempty"`
}
