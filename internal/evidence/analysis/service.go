// Package analysis is the single seam to the external analysis capability.
//
// Every evidence kind goes through the same call path: build instructions,
// send them with the media to the Backend under a hard deadline, then parse
// the answer strictly into a verdict. Malformed answers are failures, never
// low-confidence successes. Nothing here persists state.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycbuster/internal/evidence/metrics"
	"kycbuster/internal/evidence/models"
	"kycbuster/pkg/platform/circuit"
)

// Request is one call to the analysis capability.
type Request struct {
	Kind         models.Kind
	Instructions string
	Media        []models.Media
}

// Backend sends a request and returns the raw text answer. Implementations
// return *Error to classify failures; anything else is treated as transport.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Gateway is the contract the workflow, finalizer and video pipeline use.
type Gateway interface {
	AnalyzeDocument(ctx context.Context, details models.PersonalDetails, image models.Media) (*models.DocumentVerdict, error)
	AnalyzeLiveness(ctx context.Context, documentImage models.Media, capture *models.LivenessCapture) (*models.LivenessVerdict, error)
	AnalyzeVoice(ctx context.Context, code string, audio models.Media) (*models.VoiceVerdict, error)
	AnalyzeVideo(ctx context.Context, video models.Media) (*models.VideoVerdict, error)
	Aggregate(ctx context.Context, doc *models.DocumentVerdict, live *models.LivenessVerdict, voice *models.VoiceVerdict) (*models.FinalDecision, error)
}

const defaultTimeout = 60 * time.Second

// Service implements Gateway on top of a Backend.
type Service struct {
	backend Backend
	timeout time.Duration
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreaker fails calls fast while the backend is unhealthy.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New builds a gateway. A nil backend yields a gateway whose every call fails
// with CategoryUnconfigured.
func New(backend Backend, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		timeout: defaultTimeout,
		tracer:  otel.Tracer("kycbuster/analysis"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AnalyzeDocument(ctx context.Context, details models.PersonalDetails, image models.Media) (*models.DocumentVerdict, error) {
	return call(ctx, s, Request{
		Kind:         models.KindDocument,
		Instructions: documentInstructions(details),
		Media:        []models.Media{image},
	}, ParseDocumentVerdict)
}

// AnalyzeLiveness sends the document photo first, followed by the five frames
// in pose order, so the backend can score the face match.
func (s *Service) AnalyzeLiveness(ctx context.Context, documentImage models.Media, capture *models.LivenessCapture) (*models.LivenessVerdict, error) {
	media := make([]models.Media, 0, models.FrameCount+1)
	media = append(media, documentImage)
	for _, f := range capture.Frames() {
		media = append(media, f.Image)
	}
	return call(ctx, s, Request{
		Kind:         models.KindLiveness,
		Instructions: livenessInstructions(),
		Media:        media,
	}, ParseLivenessVerdict)
}

func (s *Service) AnalyzeVoice(ctx context.Context, code string, audio models.Media) (*models.VoiceVerdict, error) {
	return call(ctx, s, Request{
		Kind:         models.KindVoice,
		Instructions: voiceInstructions(code),
		Media:        []models.Media{audio},
	}, ParseVoiceVerdict)
}

func (s *Service) AnalyzeVideo(ctx context.Context, video models.Media) (*models.VideoVerdict, error) {
	return call(ctx, s, Request{
		Kind:         models.KindVideo,
		Instructions: videoInstructions(),
		Media:        []models.Media{video},
	}, ParseVideoVerdict)
}

func (s *Service) Aggregate(ctx context.Context, doc *models.DocumentVerdict, live *models.LivenessVerdict, voice *models.VoiceVerdict) (*models.FinalDecision, error) {
	return call(ctx, s, Request{
		Kind:         models.KindAggregate,
		Instructions: aggregateInstructions(doc, live, voice),
	}, ParseFinalDecision)
}

func call[V any](ctx context.Context, s *Service, req Request, parse func(string) (*V, error)) (*V, error) {
	kind := string(req.Kind)
	ctx, span := s.tracer.Start(ctx, "analysis."+kind, trace.WithAttributes(
		attribute.String("analysis.kind", kind),
		attribute.Int("analysis.media_count", len(req.Media)),
	))
	defer span.End()

	raw, err := s.generate(ctx, req)
	if err != nil {
		return nil, s.fail(ctx, span, req.Kind, err)
	}
	v, err := parse(raw)
	if err != nil {
		return nil, s.fail(ctx, span, req.Kind, &Error{
			Category: CategoryInvalidResponse,
			Message:  "malformed verdict",
			Err:      err,
		})
	}
	s.metrics.IncrementOutcome(kind, "ok")
	return v, nil
}

// generate runs one backend call under the deadline and the breaker.
func (s *Service) generate(ctx context.Context, req Request) (string, error) {
	if s.backend == nil {
		return "", &Error{Category: CategoryUnconfigured, Message: "no analysis backend configured"}
	}
	if s.breaker != nil && !s.breaker.Allow() {
		s.metrics.IncrementCircuitRejection(string(req.Kind))
		return "", &Error{Category: CategoryTransport, Message: "analysis capability temporarily unavailable"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.backend.Generate(ctx, req)
	s.metrics.ObserveCallLatency(string(req.Kind), time.Since(start))
	if err != nil {
		ae := classify(ctx, err)
		if ae.Category == CategoryTransport || ae.Category == CategoryRateLimited {
			s.recordFailure(ctx, req.Kind)
		}
		return "", ae
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
	return raw, nil
}

func (s *Service) recordFailure(ctx context.Context, kind models.Kind) {
	if s.breaker == nil {
		return
	}
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "analysis circuit opened",
			"breaker", s.breaker.Name(),
			"kind", kind,
		)
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, kind models.Kind, err error) error {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = &Error{Category: CategoryTransport, Message: "analysis call failed", Err: err}
	}
	ae.Kind = kind
	span.RecordError(ae)
	span.SetStatus(codes.Error, string(ae.Category))
	s.metrics.IncrementOutcome(string(kind), string(ae.Category))
	s.logger.WarnContext(ctx, "analysis call failed",
		"kind", kind,
		"category", ae.Category,
		"error", ae,
	)
	return toDomain(ae)
}

// classify keeps a backend's own classification and maps everything else to
// a transport failure, flagging deadline expiry.
func classify(ctx context.Context, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Category == CategoryTransport && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			ae.Timeout = true
		}
		return ae
	}
	return &Error{
		Category: CategoryTransport,
		Message:  "analysis call failed",
		Timeout:  errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded),
		Err:      err,
	}
}
