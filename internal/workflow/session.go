package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kycbuster/internal/evidence/analysis"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
)

// Session is one user's verification run. It is transient: nothing in it is
// persisted except through the finalizer, and an abandoned session leaves no
// trace in the record store.
//
// Only Engine mutates a session. busy admits one command at a time; mu guards
// the fields so views can be read while a command is in flight.
type Session struct {
	id     id.SessionID
	userID id.UserID

	busy atomic.Bool

	mu               sync.Mutex
	stage            Stage
	details          evidence.PersonalDetails
	documentImage    evidence.Media
	documentVerdict  *evidence.DocumentVerdict
	documentEvidence evidence.DocumentEvidence
	livenessVerdict  *evidence.LivenessVerdict
	voiceVerdict     *evidence.VoiceVerdict
	code             string
	record           *models.VerificationRecord
	abandoned        bool
	cancel           context.CancelFunc
	updatedAt        time.Time
}

// NewSession starts a session in the Details stage.
func NewSession(userID id.UserID, now time.Time) *Session {
	return &Session{
		id:        id.NewSessionID(),
		userID:    userID,
		stage:     StageDetails,
		updatedAt: now,
	}
}

func (s *Session) ID() id.SessionID { return s.id }

func (s *Session) UserID() id.UserID { return s.userID }

// Busy reports whether a command is in flight.
func (s *Session) Busy() bool { return s.busy.Load() }

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// View is a read-only snapshot of a session.
type View struct {
	ID               id.SessionID               `json:"id"`
	UserID           id.UserID                  `json:"userId"`
	Stage            Stage                      `json:"stage"`
	Busy             bool                       `json:"busy"`
	Details          evidence.PersonalDetails   `json:"personalDetails"`
	HasDocument      bool                       `json:"hasDocumentImage"`
	DocumentVerdict  *evidence.DocumentVerdict  `json:"documentVerdict,omitempty"`
	LivenessVerdict  *evidence.LivenessVerdict  `json:"livenessVerdict,omitempty"`
	VoiceVerdict     *evidence.VoiceVerdict     `json:"voiceVerdict,omitempty"`
	VerificationCode string                     `json:"verificationCode,omitempty"`
	ExpectedPhrase   string                     `json:"expectedPhrase,omitempty"`
	Record           *models.VerificationRecord `json:"record,omitempty"`
	UpdatedAt        time.Time                  `json:"updatedAt"`
}

// View copies the session state. The verification code is only exposed
// while the session is in the Voice stage.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:              s.id,
		UserID:          s.userID,
		Stage:           s.stage,
		Busy:            s.busy.Load(),
		Details:         s.details,
		HasDocument:     !s.documentImage.Empty(),
		DocumentVerdict: clonePtr(s.documentVerdict),
		LivenessVerdict: clonePtr(s.livenessVerdict),
		VoiceVerdict:    clonePtr(s.voiceVerdict),
		UpdatedAt:       s.updatedAt,
	}
	if s.stage == StageVoice && s.code != "" {
		v.VerificationCode = s.code
		v.ExpectedPhrase = analysis.ExpectedPhrase(s.code)
	}
	if s.record != nil {
		r := s.record.Clone()
		v.Record = &r
	}
	return v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// begin claims the session for one command. The returned context is
// cancelled by Abandon.
func (s *Session) begin(ctx context.Context) (context.Context, bool) {
	if !s.busy.CompareAndSwap(false, true) {
		return ctx, false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return ctx, true
}

func (s *Session) end() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.busy.Store(false)
}

// abandon marks the session dead and cancels any in-flight command. It
// reports false if the session was already abandoned.
func (s *Session) abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return false
	}
	s.abandoned = true
	if s.cancel != nil {
		s.cancel()
	}
	s.documentImage = evidence.Media{}
	return true
}

func (s *Session) isAbandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}
