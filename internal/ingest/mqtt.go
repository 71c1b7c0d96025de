package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"rcx-service/internal/config"
	"rcx-service/internal/models"
)

// MQTTSource subscribes to tick topics such as rcx/ticks/{device}. The last
// topic segment names the device when the payload does not.
type MQTTSource struct {
	client mqtt.Client
	topic  string
	qos    byte
	handle Handler
	log    *slog.Logger
}

func NewMQTTSource(cfg config.MQTTConfig, handle Handler, log *slog.Logger) (*MQTTSource, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, errors.New("mqtt broker must not be empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt qos %d", cfg.QoS)
	}
	m := &MQTTSource{
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		handle: handle,
		log:    log.With(slog.String("source", SourceMQTT), slog.String("topic", cfg.Topic)),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true)
	// Subscriptions are lost on reconnect with a clean session.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(m.topic, m.qos, m.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			m.log.Error("subscribe_err", slog.Any("err", err))
			return
		}
		m.log.Info("subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.log.Warn("connection_lost", slog.Any("err", err))
	})
	m.client = mqtt.NewClient(opts)
	return m, nil
}

// Run connects and blocks until ctx is cancelled.
func (m *MQTTSource) Run(ctx context.Context) error {
	token := m.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	case <-ctx.Done():
		m.client.Disconnect(0)
		return nil
	}

	<-ctx.Done()
	m.client.Disconnect(250)
	m.log.Info("consumer_stop")
	return nil
}

func (m *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	t, err := models.DecodeTick(msg.Payload(), deviceFromTopic(msg.Topic()))
	if err != nil {
		m.log.Warn("decode_err", slog.Any("err", err), slog.String("msg_topic", msg.Topic()))
		return
	}
	if err := m.handle(SourceMQTT, t); err != nil {
		m.log.Warn("tick_dropped", slog.Any("err", err), slog.String("device_id", t.DeviceID))
	}
}

func deviceFromTopic(topic string) string {
	topic = strings.TrimRight(topic, "/")
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
