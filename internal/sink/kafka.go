package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"rcx-service/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes fault rows as JSON, keyed by device so a device's
// rows stay ordered within a partition.
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("fault topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{topic: topic, writer: w}, nil
}

type faultMessage struct {
	Table string `json:"table"`
	models.FaultRecord
}

func encodeFault(table string, rec models.FaultRecord) (kafka.Message, error) {
	value, err := json.Marshal(faultMessage{Table: table, FaultRecord: rec})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode fault %s: %w", rec.ID, err)
	}
	return kafka.Message{
		Key:   []byte(rec.DeviceID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "diagnostic", Value: []byte(rec.DiagnosticName)},
			{Key: "color", Value: []byte(rec.Color)},
		},
	}, nil
}

func (p *KafkaPublisher) InsertRow(ctx context.Context, table string, rec models.FaultRecord) error {
	msg, err := encodeFault(table, rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
