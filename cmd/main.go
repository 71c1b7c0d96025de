package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"rcx-service/internal/analytics"
	"rcx-service/internal/cache"
	"rcx-service/internal/config"
	"rcx-service/internal/ingest"
	"rcx-service/internal/logging"
	"rcx-service/internal/metrics"
	"rcx-service/internal/server"
	"rcx-service/internal/sink"
	"rcx-service/internal/store"
	"rcx-service/internal/stream"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	log := logging.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("service stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	fanout := sink.NewFanout(log).OnError(func(name string, _ error) {
		metrics.SinkErrors.WithLabelValues(name).Inc()
	})
	opts := server.Options{
		HTTP:     cfg.HTTP,
		Analyzer: analytics.NewAnalyzer(cfg),
		Sink:     fanout,
		Logger:   log,
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		fanout.Add("redis", redisClient)
		opts.Cache = redisClient
	}

	if cfg.Postgres.Enabled {
		db, err := store.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		fanout.Add("postgres", db)
		opts.History = db
	}

	if cfg.Kafka.Enabled && cfg.Kafka.FaultTopic != "" {
		pub, err := sink.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.FaultTopic)
		if err != nil {
			return err
		}
		defer pub.Close()
		fanout.Add("kafka", pub)
	}

	hub := stream.NewHub(log)
	fanout.Add("websocket", hub)
	opts.Stream = hub

	srv := server.New(opts)

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if cfg.Kafka.Enabled {
		src, err := ingest.NewKafkaSource(cfg.Kafka, srv.Enqueue, log)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Run(ctx); err != nil {
				log.Error("kafka source stopped", slog.Any("err", err))
			}
		}()
	}

	if cfg.MQTT.Enabled {
		src, err := ingest.NewMQTTSource(cfg.MQTT, srv.Enqueue, log)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Run(ctx); err != nil {
				log.Error("mqtt source stopped", slog.Any("err", err))
			}
		}()
	}

	return srv.Run(ctx)
}
