package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcx-service/internal/analytics"
	"rcx-service/internal/config"
	"rcx-service/internal/ingest"
	"rcx-service/internal/metrics"
	"rcx-service/internal/models"
	"rcx-service/internal/sink"
)

// FaultCache serves recently produced rows.
type FaultCache interface {
	GetRecentFaults(ctx context.Context, deviceID string, count int64) ([]models.FaultRecord, error)
}

// HistoryStore serves persisted rows.
type HistoryStore interface {
	History(ctx context.Context, table, deviceID string, since time.Time, limit int) ([]models.FaultRecord, error)
}

// Streamer upgrades subscribers to a live fault feed.
type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Options wires the server. Cache, History and Stream are optional; their
// routes answer 503 when unset.
type Options struct {
	HTTP     config.HTTPConfig
	Analyzer *analytics.Analyzer
	Sink     sink.Sink
	Cache    FaultCache
	History  HistoryStore
	Stream   Streamer
	Logger   *slog.Logger
}

type Server struct {
	router   *mux.Router
	handler  http.Handler
	cfg      config.HTTPConfig
	analyzer *analytics.Analyzer
	sink     sink.Sink
	cache    FaultCache
	history  HistoryStore
	stream   Streamer
	ticks    chan models.Tick
	log      *slog.Logger
}

func New(opts Options) *Server {
	size := opts.HTTP.QueueSize
	if size <= 0 {
		size = 10000
	}
	s := &Server{
		router:   mux.NewRouter(),
		cfg:      opts.HTTP,
		analyzer: opts.Analyzer,
		sink:     opts.Sink,
		cache:    opts.Cache,
		history:  opts.History,
		stream:   opts.Stream,
		ticks:    make(chan models.Tick, size),
		log:      opts.Logger,
	}
	s.setupRoutes()

	accessLog := slog.NewLogLogger(s.log.Handler(), slog.LevelDebug).Writer()
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelError)),
	)(handlers.LoggingHandler(accessLog, s.router))
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(instrument)
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/ticks", s.ingestTickHandler).Methods("POST")
	s.router.HandleFunc("/analytics/current", s.getAnalyticsHandler).Methods("GET")
	s.router.HandleFunc("/analytics/faults", s.getFaultsHandler).Methods("GET")
	s.router.HandleFunc("/devices", s.getDevicesHandler).Methods("GET")
	s.router.HandleFunc("/devices/{device}", s.resetDeviceHandler).Methods("DELETE")
	s.router.HandleFunc("/devices/{device}/faults", s.getDeviceFaultsHandler).Methods("GET")
	s.router.HandleFunc("/devices/{device}/history", s.getDeviceHistoryHandler).Methods("GET")
	s.router.HandleFunc("/ws/faults", s.streamHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

// Handler returns the router wrapped in access logging and panic recovery.
func (s *Server) Handler() http.Handler { return s.handler }

// Enqueue hands a tick to the worker without blocking. It is the ingest
// Handler for every source.
func (s *Server) Enqueue(source string, t models.Tick) error {
	select {
	case s.ticks <- t:
		metrics.TicksReceived.WithLabelValues(source).Inc()
		metrics.QueueDepth.Set(float64(len(s.ticks)))
		return nil
	default:
		metrics.TicksRejected.WithLabelValues(source, "queue_full").Inc()
		return ingest.ErrBusy
	}
}

// ProcessTicks analyzes queued ticks one at a time until ctx is cancelled,
// then drains what is already queued.
func (s *Server) ProcessTicks(ctx context.Context) {
	for {
		select {
		case t := <-s.ticks:
			s.process(ctx, t)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for {
				select {
				case t := <-s.ticks:
					s.process(drainCtx, t)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) process(ctx context.Context, t models.Tick) {
	metrics.QueueDepth.Set(float64(len(s.ticks)))

	res, err := s.analyzer.Analyze(t)
	if err != nil {
		metrics.TicksRejected.WithLabelValues("analyzer", "configuration").Inc()
		s.log.Error("tick_rejected", slog.String("device_id", t.DeviceID), slog.Any("err", err))
		return
	}

	if res.Analyzed() {
		metrics.TicksAnalyzed.Inc()
	} else {
		metrics.TicksDiscarded.WithLabelValues(string(res.Discard)).Inc()
	}
	s.recordRows(res.Rows)

	if err := res.Flush(ctx, s.sink); err != nil {
		s.log.Error("sink_err", slog.String("device_id", t.DeviceID), slog.Any("err", err))
	}
}

// recordRows counts rows by color. The energy gauge only moves on rows that
// carry an estimate.
func (s *Server) recordRows(rows []models.FaultRecord) {
	for _, rec := range rows {
		metrics.FaultRecords.WithLabelValues(rec.DiagnosticName, string(rec.Color)).Inc()
		if rec.EnergyImpact != nil {
			metrics.EnergyImpact.WithLabelValues(rec.DiagnosticName).Set(*rec.EnergyImpact)
		}
	}
}

// Run serves HTTP and the analyzer worker until ctx is cancelled, then shuts
// both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.ProcessTicks(workerCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Server is ready to handle requests", slog.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("could not listen on %s: %w", s.cfg.Addr, err)
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	s.log.Info("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Could not gracefully shutdown the server", slog.Any("err", err))
	}
	stopWorker()
	<-workerDone
	s.log.Info("Server stopped")
	return runErr
}
