// Package audit records who did what to verification data. Events are
// transport-agnostic so stores and sinks can fan out.
package audit

import (
	"context"
	"time"

	id "kycbuster/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as a
	// verification decision being recorded.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers privileged access and access violations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. an admin reading cross-user statistics.
	ActorID string
	// SubjectIDHash is a hash of the document number under verification, for
	// traceability without storing the raw identifier.
	SubjectIDHash string
}

type AuditEvent string

const (
	EventVerificationFinalized AuditEvent = "verification_finalized"
	EventVerificationAbandoned AuditEvent = "verification_abandoned"
	EventVideoAnalyzed         AuditEvent = "video_analyzed"
	EventAdminStatsViewed      AuditEvent = "admin_stats_viewed"
	EventAdminAccessDenied     AuditEvent = "admin_access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationFinalized: CategoryCompliance,
	EventVideoAnalyzed:         CategoryCompliance,

	EventAdminStatsViewed:  CategorySecurity,
	EventAdminAccessDenied: CategorySecurity,

	EventVerificationAbandoned: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}

// Emitter is what domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
