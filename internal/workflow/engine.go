// Package workflow is the verification session state machine.
//
// A session moves Details -> Document -> Liveness -> Voice -> Result. Every
// mutation is a Command dispatched through Engine, which admits one command
// per session at a time and only advances a stage once that stage's evidence
// exists. Failures never advance the stage and never discard earlier
// evidence; the user retries the same command.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kycbuster/internal/decision"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	"kycbuster/internal/workflow/metrics"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/requestcontext"
)

// Analyzer is the part of the analysis gateway the stages call.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, details evidence.PersonalDetails, image evidence.Media) (*evidence.DocumentVerdict, error)
	AnalyzeLiveness(ctx context.Context, documentImage evidence.Media, capture *evidence.LivenessCapture) (*evidence.LivenessVerdict, error)
	AnalyzeVoice(ctx context.Context, code string, audio evidence.Media) (*evidence.VoiceVerdict, error)
}

// Finalizer aggregates the verdicts and writes the record.
type Finalizer interface {
	Finalize(ctx context.Context, in decision.FinalizeInput) (*models.VerificationRecord, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Engine struct {
	analyzer  Analyzer
	finalizer Finalizer
	codes     CodeGenerator
	auditor   AuditPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Engine)

// WithCodeGenerator replaces the random verification code source.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(e *Engine) { e.codes = g }
}

func WithAuditPublisher(a AuditPublisher) Option {
	return func(e *Engine) { e.auditor = a }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(analyzer Analyzer, finalizer Finalizer, opts ...Option) *Engine {
	e := &Engine{
		analyzer:  analyzer,
		finalizer: finalizer,
		codes:     RandomCode,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewSession starts a session for the user in the Details stage.
func (e *Engine) NewSession(userID id.UserID) (*Session, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return NewSession(userID, e.now()), nil
}

// Dispatch applies one command to the session and returns the resulting view.
// A second command arriving while one is in flight is rejected with a
// conflict rather than queued.
func (e *Engine) Dispatch(ctx context.Context, s *Session, cmd Command) (View, error) {
	if s.isAbandoned() {
		return s.View(), dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	ctx, ok := s.begin(ctx)
	if !ok {
		err := dErrors.New(dErrors.CodeConflict, "another action is in progress for this session")
		e.metrics.IncrementCommandFailure(cmd.commandName(), string(dErrors.CodeConflict))
		return s.View(), err
	}
	defer s.end()

	from := s.Stage()
	err := e.apply(ctx, s, cmd)
	to := s.Stage()

	if err != nil {
		e.metrics.IncrementCommandFailure(cmd.commandName(), string(dErrors.CodeOf(err)))
		e.logger.WarnContext(ctx, "workflow command failed",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", s.ID(),
			"user_id", s.UserID(),
			"command", cmd.commandName(),
			"stage", from,
			"error", err,
		)
	} else if from != to {
		e.metrics.IncrementTransition(string(from), string(to))
		e.logger.InfoContext(ctx, "workflow stage changed",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", s.ID(),
			"user_id", s.UserID(),
			"command", cmd.commandName(),
			"from", from,
			"to", to,
		)
	}
	return s.View(), err
}

func (e *Engine) apply(ctx context.Context, s *Session, cmd Command) error {
	switch c := cmd.(type) {
	case SubmitDetails:
		return e.submitDetails(s, c)
	case UploadDocument:
		return e.uploadDocument(s, c)
	case VerifyDocument:
		return e.verifyDocument(ctx, s)
	case VerifyLiveness:
		return e.verifyLiveness(ctx, s, c)
	case VerifyVoice:
		return e.verifyVoice(ctx, s, c)
	case Finalize:
		return e.finalize(ctx, s)
	case Next:
		return e.next(s)
	case Back:
		return e.back(s)
	default:
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown command %T", cmd))
	}
}

// Abandon ends the session without writing anything. An in-flight command is
// cancelled and its result discarded.
func (e *Engine) Abandon(ctx context.Context, s *Session) {
	stage := s.Stage()
	if !s.abandon() {
		return
	}
	e.logger.InfoContext(ctx, "workflow session abandoned",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", s.ID(),
		"user_id", s.UserID(),
		"stage", stage,
	)
	if e.auditor == nil || stage == StageResult {
		return
	}
	err := e.auditor.Emit(ctx, audit.Event{
		UserID:    s.UserID(),
		Subject:   s.ID().String(),
		Action:    string(audit.EventVerificationAbandoned),
		Reason:    string(stage),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", audit.EventVerificationAbandoned,
			"session_id", s.ID(),
			"error", err,
		)
	}
}

func (e *Engine) submitDetails(s *Session, c SubmitDetails) error {
	details := c.Details
	details.Normalize()
	if err := details.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := requireStage(s.stage, StageDetails, c); err != nil {
		return err
	}
	s.details = details
	s.moveTo(StageDocument, e.now())
	return nil
}

func (e *Engine) uploadDocument(s *Session, c UploadDocument) error {
	if c.Image.Empty() {
		return dErrors.New(dErrors.CodeValidation, "document image is required")
	}
	if !strings.HasPrefix(c.Image.MIMEType, "image/") {
		return dErrors.New(dErrors.CodeValidation, "document must be an image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := requireStage(s.stage, StageDocument, c); err != nil {
		return err
	}
	s.documentImage = evidence.Media{
		MIMEType: c.Image.MIMEType,
		Data:     append([]byte(nil), c.Image.Data...),
	}
	// A new image invalidates any verdict on the old one.
	s.documentVerdict = nil
	s.documentEvidence = evidence.DocumentEvidence{}
	s.updatedAt = e.now()
	return nil
}

func (e *Engine) verifyDocument(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if err := requireStage(s.stage, StageDocument, VerifyDocument{}); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.documentImage.Empty() {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, "upload a document image first")
	}
	details, image := s.details, s.documentImage
	s.mu.Unlock()

	verdict, err := e.analyzer.AnalyzeDocument(ctx, details, image)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return errAbandoned
	}
	s.documentVerdict = verdict
	s.documentEvidence = evidence.NewDocumentEvidence(*verdict, image)
	if addr := strings.TrimSpace(verdict.Address); addr != "" {
		s.details.Address = addr
	}
	s.moveTo(StageLiveness, e.now())
	return nil
}

func (e *Engine) verifyLiveness(ctx context.Context, s *Session, c VerifyLiveness) error {
	if c.Capture == nil {
		return dErrors.New(dErrors.CodeValidation, "a completed liveness capture is required")
	}

	s.mu.Lock()
	if err := requireStage(s.stage, StageLiveness, c); err != nil {
		s.mu.Unlock()
		return err
	}
	image := s.documentImage
	s.mu.Unlock()

	verdict, err := e.analyzer.AnalyzeLiveness(ctx, image, c.Capture)
	if err != nil {
		return err
	}
	code, err := e.codes()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue verification code")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		return errAbandoned
	}
	s.livenessVerdict = verdict
	s.enterVoice(code, e.now())
	return nil
}

// verifyVoice analyzes the recording against the session's code and then
// finalizes. If finalization fails the voice verdict is kept so Finalize can
// be retried without recording again.
func (e *Engine) verifyVoice(ctx context.Context, s *Session, c VerifyVoice) error {
	if c.Audio.Empty() {
		return dErrors.New(dErrors.CodeValidation, "voice recording is required")
	}

	s.mu.Lock()
	if err := requireStage(s.stage, StageVoice, c); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.documentVerdict == nil || s.livenessVerdict == nil {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeInvariantViolation, "voice verification requires document and liveness verdicts")
	}
	code := s.code
	s.mu.Unlock()

	verdict, err := e.analyzer.AnalyzeVoice(ctx, code, c.Audio)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return errAbandoned
	}
	s.voiceVerdict = verdict
	s.updatedAt = e.now()
	s.mu.Unlock()

	return e.finalize(ctx, s)
}

func (e *Engine) finalize(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.abandoned {
		s.mu.Unlock()
		return errAbandoned
	}
	if err := requireStage(s.stage, StageVoice, Finalize{}); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.voiceVerdict == nil {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeValidation, "verify the voice recording before finalizing")
	}
	in := decision.FinalizeInput{
		UserID:           s.userID,
		DocumentEvidence: s.documentEvidence,
		DocumentVerdict:  clonePtr(s.documentVerdict),
		LivenessVerdict:  clonePtr(s.livenessVerdict),
		VoiceVerdict:     clonePtr(s.voiceVerdict),
	}
	s.mu.Unlock()

	record, err := e.finalizer.Finalize(ctx, in)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abandoned {
		e.logger.WarnContext(ctx, "verification saved for a session abandoned during finalize",
			"session_id", s.id,
			"record_id", record.ID,
		)
		return errAbandoned
	}
	s.record = record
	s.documentImage = evidence.Media{}
	s.code = ""
	s.moveTo(StageResult, e.now())
	return nil
}

// next re-enters the following stage. Only allowed when the current stage's
// evidence is already held, which happens after navigating back.
func (e *Engine) next(s *Session) error {
	var code string
	if s.Stage() == StageLiveness {
		c, err := e.codes()
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue verification code")
		}
		code = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := e.now()
	switch s.stage {
	case StageDetails:
		if s.details.Validate() != nil {
			return missingEvidence(StageDetails)
		}
		s.moveTo(StageDocument, now)
	case StageDocument:
		if s.documentVerdict == nil {
			return missingEvidence(StageDocument)
		}
		s.moveTo(StageLiveness, now)
	case StageLiveness:
		if s.livenessVerdict == nil {
			return missingEvidence(StageLiveness)
		}
		if code == "" {
			return errStageChanged
		}
		s.enterVoice(code, now)
	case StageVoice:
		return dErrors.New(dErrors.CodeInvariantViolation, "the voice stage completes by finalizing")
	default:
		return errComplete
	}
	return nil
}

// back returns to the previous stage and discards only the evidence of the
// stage being left. Earlier evidence and the uploaded image are kept.
func (e *Engine) back(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage == StageResult {
		return errComplete
	}
	prev, ok := s.stage.Previous()
	if !ok {
		return dErrors.New(dErrors.CodeInvariantViolation, "already at the first stage")
	}
	switch s.stage {
	case StageDocument:
		s.documentVerdict = nil
		s.documentEvidence = evidence.DocumentEvidence{}
	case StageLiveness:
		s.livenessVerdict = nil
	case StageVoice:
		s.voiceVerdict = nil
		s.code = ""
	}
	s.moveTo(prev, e.now())
	return nil
}

// moveTo and enterVoice must be called with s.mu held.
func (s *Session) moveTo(stage Stage, now time.Time) {
	s.stage = stage
	s.updatedAt = now
}

func (s *Session) enterVoice(code string, now time.Time) {
	s.code = code
	s.voiceVerdict = nil
	s.moveTo(StageVoice, now)
}

var (
	errAbandoned    = dErrors.New(dErrors.CodeConflict, "session was abandoned")
	errComplete     = dErrors.New(dErrors.CodeConflict, "verification is already complete")
	errStageChanged = dErrors.New(dErrors.CodeConflict, "session stage changed, retry")
)

func requireStage(current, want Stage, cmd Command) error {
	if current == want {
		return nil
	}
	if current == StageResult {
		return errComplete
	}
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("%s is not allowed in the %s stage", cmd.commandName(), current))
}

func missingEvidence(stage Stage) error {
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("the %s stage has no evidence yet", stage))
}
