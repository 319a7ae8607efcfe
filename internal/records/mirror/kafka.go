package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"kycbuster/internal/records/metrics"
	"kycbuster/internal/records/models"
)

// DefaultTopic receives record summaries when no topic is configured.
const DefaultTopic = "kyc.records.finalized"

// Publisher mirrors finalized records. Publish must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, r models.VerificationRecord)
}

// Noop drops every summary. Used when no mirror is configured.
type Noop struct{}

func (Noop) Publish(context.Context, models.VerificationRecord) {}

// Config addresses the Kafka-compatible broker set.
type Config struct {
	Brokers []string
	Topic   string
}

// Kafka produces summaries asynchronously with franz-go. Records are keyed
// by user so one user's summaries stay ordered within a partition.
type Kafka struct {
	client  *kgo.Client
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Kafka)

func WithLogger(logger *slog.Logger) Option {
	return func(k *Kafka) { k.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(k *Kafka) { k.metrics = m }
}

// NewKafka connects to the brokers and makes sure the topic exists.
func NewKafka(ctx context.Context, cfg Config, opts ...Option) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("mirror requires at least one broker")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create mirror client: %w", err)
	}

	k := &Kafka{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(k)
	}

	if err := ensureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	return k, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create mirror topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create mirror topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish hands the summary to the producer and returns immediately. The
// request context only contributes values: cancellation after the response
// is written must not abort delivery.
func (k *Kafka) Publish(ctx context.Context, r models.VerificationRecord) {
	summary := SummaryFrom(r)
	payload, err := json.Marshal(summary)
	if err != nil {
		k.metrics.IncrementMirrorFailure()
		k.logger.ErrorContext(ctx, "failed to encode mirror summary",
			"record_id", summary.RecordID,
			"error", err,
		)
		return
	}

	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(summary.UserID),
		Value: payload,
	}
	k.client.TryProduce(context.WithoutCancel(ctx), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			k.metrics.IncrementMirrorFailure()
			k.logger.Warn("mirror publish failed",
				"record_id", summary.RecordID,
				"topic", k.topic,
				"error", err,
			)
			return
		}
		k.metrics.IncrementMirrorPublished()
	})
}

// Close flushes buffered summaries and disconnects.
func (k *Kafka) Close(ctx context.Context) error {
	err := k.client.Flush(ctx)
	k.client.Close()
	return err
}
