// Package domain holds typed identifiers shared across bounded contexts.
//
// Each identifier is a distinct named UUID type so the compiler rejects
// passing a RecordID where a UserID is expected. Construct them from external
// input only through the Parse* functions.
package domain

import (
	"github.com/google/uuid"

	dErrors "kycbuster/pkg/domain-errors"
)

type (
	// UserID identifies the authenticated caller that owns sessions and records.
	UserID uuid.UUID
	// SessionID identifies a transient verification session.
	SessionID uuid.UUID
	// RecordID identifies a persisted verification record.
	RecordID uuid.UUID
	// VideoRecordID identifies a persisted video analysis record.
	VideoRecordID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

// ParseUserID validates external input as a non-nil UUID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

// ParseSessionID validates external input as a non-nil UUID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session id", s)
	return SessionID(u), err
}

// ParseRecordID validates external input as a non-nil UUID.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID("record id", s)
	return RecordID(u), err
}

// ParseVideoRecordID validates external input as a non-nil UUID.
func ParseVideoRecordID(s string) (VideoRecordID, error) {
	u, err := parseUUID("video record id", s)
	return VideoRecordID(u), err
}

// NewSessionID returns a random session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewRecordID returns a time-ordered identifier so ties on created_at still
// sort by insertion order.
func NewRecordID() RecordID { return RecordID(mustV7()) }

// NewVideoRecordID returns a time-ordered identifier.
func NewVideoRecordID() VideoRecordID { return VideoRecordID(mustV7()) }

func mustV7() uuid.UUID {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return u
}

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id SessionID) String() string     { return uuid.UUID(id).String() }
func (id RecordID) String() string      { return uuid.UUID(id).String() }
func (id VideoRecordID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VideoRecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id RecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id VideoRecordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *VideoRecordID) UnmarshalText(b []byte) error {
	parsed, err := ParseVideoRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
