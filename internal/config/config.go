package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	HTTP        HTTPConfig           `yaml:"http"`
	Redis       RedisConfig          `yaml:"redis"`
	Postgres    PostgresConfig       `yaml:"postgres"`
	Kafka       KafkaConfig          `yaml:"kafka"`
	MQTT        MQTTConfig           `yaml:"mqtt"`
	Log         LogConfig            `yaml:"log"`
	Diagnostics Diagnostics          `yaml:"diagnostics"`
	Devices     map[string]yaml.Node `yaml:"devices"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	QueueSize    int           `yaml:"queue_size"`
}

type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	RecentLimit int64         `yaml:"recent_limit"`
	TTL         time.Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Brokers    []string `yaml:"brokers"`
	TickTopic  string   `yaml:"tick_topic"`
	GroupID    string   `yaml:"group_id"`
	FaultTopic string   `yaml:"fault_topic"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the service configuration used when no file is present.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
			QueueSize:    10000,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			RecentLimit: 1000,
			TTL:         24 * time.Hour,
		},
		Kafka: KafkaConfig{
			TickTopic:  "rcx.ticks",
			GroupID:    "rcx-service",
			FaultTopic: "rcx.faults",
		},
		MQTT: MQTTConfig{
			Topic:    "rcx/ticks/#",
			ClientID: "rcx-service",
			QoS:      1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Diagnostics: DefaultDiagnostics(),
	}
}

// Load reads path (if it exists) over the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
		cfg.Postgres.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = split(brokers, ",")
		cfg.Kafka.Enabled = len(cfg.Kafka.Brokers) > 0
	}
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		cfg.MQTT.Broker = broker
		cfg.MQTT.Enabled = true
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}
}

// Validate checks the service settings and the default diagnostic thresholds.
func (c *Config) Validate() error {
	if c.HTTP.QueueSize <= 0 {
		return fmt.Errorf("%w: http.queue_size must be positive", ErrInvalid)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("%w: postgres.dsn is required when postgres is enabled", ErrInvalid)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka.brokers is required when kafka is enabled", ErrInvalid)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt.broker is required when mqtt is enabled", ErrInvalid)
	}
	if err := c.Diagnostics.Validate(); err != nil {
		return err
	}
	for id := range c.Devices {
		if _, err := c.ForDevice(id); err != nil {
			return err
		}
	}
	return nil
}

// ForDevice returns the default thresholds with the overrides configured for
// deviceID applied on top.
func (c *Config) ForDevice(deviceID string) (Diagnostics, error) {
	d := c.Diagnostics
	node, ok := c.Devices[deviceID]
	if !ok {
		return d, nil
	}
	if err := node.Decode(&d); err != nil {
		return Diagnostics{}, fmt.Errorf("%w: device %s: %v", ErrInvalid, deviceID, err)
	}
	if err := d.Validate(); err != nil {
		return Diagnostics{}, fmt.Errorf("device %s: %w", deviceID, err)
	}
	return d, nil
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
