package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

const maxBackoff = 30 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes JSON ticks from a topic. Messages are keyed by device
// id so each device's ticks arrive in order.
type KafkaSource struct {
	topic  string
	reader messageReader
	handle Handler
	log    *slog.Logger
}

func NewKafkaSource(cfg config.KafkaConfig, handle Handler, log *slog.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if strings.TrimSpace(cfg.TickTopic) == "" {
		return nil, errors.New("tick topic must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.TickTopic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaSource(cfg.TickTopic, reader, handle, log), nil
}

func newKafkaSource(topic string, r messageReader, handle Handler, log *slog.Logger) *KafkaSource {
	return &KafkaSource{
		topic:  topic,
		reader: r,
		handle: handle,
		log:    log.With(slog.String("source", SourceKafka), slog.String("topic", topic)),
	}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed and
// skipped; a busy handler is retried with backoff before committing.
func (k *KafkaSource) Run(ctx context.Context) error {
	defer func() {
		if err := k.reader.Close(); err != nil {
			k.log.Error("reader_close", slog.Any("err", err))
		}
	}()
	k.log.Info("consumer_start")

	backoff := time.Second
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				k.log.Info("consumer_stop")
				return nil
			}
			k.log.Error("fetch_err", slog.Any("err", err))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = next(backoff)
			continue
		}
		backoff = time.Second

		if err := k.deliver(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := k.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			k.log.Error("commit_err", slog.Any("err", err), slog.Int64("offset", msg.Offset))
		}
	}
}

func (k *KafkaSource) deliver(ctx context.Context, msg kafka.Message) error {
	t, err := models.DecodeTick(msg.Value, string(msg.Key))
	if err != nil {
		k.log.Warn("decode_err", slog.Any("err", err), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))
		return nil
	}

	backoff := 100 * time.Millisecond
	for {
		err := k.handle(SourceKafka, t)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrBusy) {
			return fmt.Errorf("handle tick at offset %d: %w", msg.Offset, err)
		}
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		backoff = next(backoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func next(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
