// Package models defines the durable verification and video analysis records.
package models

import (
	"time"

	evidence "kycbuster/internal/evidence/models"
	id "kycbuster/pkg/domain"
)

// Status is the persisted outcome of a verification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusSuspicious Status = "suspicious"
	StatusFake       Status = "fake"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusVerified, StatusSuspicious, StatusFake}

// StatusFor maps an aggregated decision onto a record status.
func StatusFor(d evidence.Decision) Status {
	switch d {
	case evidence.DecisionVerified:
		return StatusVerified
	case evidence.DecisionSuspicious:
		return StatusSuspicious
	case evidence.DecisionFake:
		return StatusFake
	}
	return StatusPending
}

// VerificationRecord is an append-only finalized verification. Once inserted
// it is never updated or deleted.
type VerificationRecord struct {
	ID               id.RecordID               `json:"id"`
	UserID           id.UserID                 `json:"userId"`
	Status           Status                    `json:"status"`
	DocumentEvidence evidence.DocumentEvidence `json:"documentEvidence"`
	DocumentVerdict  evidence.DocumentVerdict  `json:"documentVerdict"`
	LivenessVerdict  evidence.LivenessVerdict  `json:"livenessVerdict"`
	VoiceVerdict     evidence.VoiceVerdict     `json:"voiceVerdict"`
	FinalDecision    evidence.FinalDecision    `json:"finalDecision"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// Clone returns a deep copy.
func (r VerificationRecord) Clone() VerificationRecord {
	return r
}

// VideoAnalysisRecord is a standalone deepfake analysis, independent of the
// verification workflow.
type VideoAnalysisRecord struct {
	ID              id.VideoRecordID      `json:"id"`
	UserID          id.UserID             `json:"userId"`
	VideoName       string                `json:"videoName"`
	IsDeepfake      bool                  `json:"isDeepfake"`
	RiskLevel       evidence.RiskLevel    `json:"riskLevel"`
	ConfidenceScore int                   `json:"confidenceScore"`
	AnalysisPayload evidence.VideoVerdict `json:"analysisPayload"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// Clone returns a deep copy; the payload's slices are not shared.
func (r VideoAnalysisRecord) Clone() VideoAnalysisRecord {
	out := r
	if r.AnalysisPayload.DetectedAnomalies != nil {
		out.AnalysisPayload.DetectedAnomalies = append([]string(nil), r.AnalysisPayload.DetectedAnomalies...)
	}
	if r.AnalysisPayload.FrameAnalysis != nil {
		out.AnalysisPayload.FrameAnalysis = append([]evidence.FrameFinding(nil), r.AnalysisPayload.FrameAnalysis...)
	}
	return out
}

// Activity is one line of recent cross-user activity.
type Activity struct {
	RecordID  id.RecordID `json:"recordId"`
	UserID    id.UserID   `json:"userId"`
	FullName  string      `json:"fullName"`
	Status    Status      `json:"status"`
	RiskScore int         `json:"riskScore"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Stats is a read-only aggregate over all users.
type Stats struct {
	StatusCounts   map[Status]int `json:"statusCounts"`
	TotalRecords   int            `json:"totalRecords"`
	DistinctUsers  int            `json:"distinctUsers"`
	TotalVideos    int            `json:"totalVideos"`
	VideoDeepfakes int            `json:"videoDeepfakes"`
	Recent         []Activity     `json:"recentActivity"`
}

// NewStats returns stats with every status present at zero.
func NewStats() *Stats {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	return &Stats{StatusCounts: counts, Recent: []Activity{}}
}

// ActivityFrom summarizes a record for the recent-activity list.
func ActivityFrom(r VerificationRecord) Activity {
	return Activity{
		RecordID:  r.ID,
		UserID:    r.UserID,
		FullName:  r.DocumentEvidence.Name,
		Status:    r.Status,
		RiskScore: r.FinalDecision.RiskScore,
		CreatedAt: r.CreatedAt,
	}
}
