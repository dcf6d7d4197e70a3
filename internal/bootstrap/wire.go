package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"workx/internal/audio"
	"workx/internal/backend/native"
	"workx/internal/backend/remote"
	"workx/internal/config"
	"workx/internal/domain"
	"workx/internal/eventbus"
	"workx/internal/logging"
	"workx/internal/metrics"
	"workx/internal/ports"
	"workx/internal/textfilter"
	"workx/internal/usecase"
)

// ErrNoHealthCheck is returned by Health for backends that run in-process.
var ErrNoHealthCheck = errors.New("backend has no health endpoint")

// Services is the assembled runtime graph.
type Services struct {
	Config      config.Config
	Logger      *slog.Logger
	Registry    *prometheus.Registry
	Bus         *eventbus.Bus
	Backend     ports.Backend
	Reconciler  *usecase.Reconciler
	Coordinator *usecase.Coordinator

	sink      ports.EventSink
	events    *remote.EventStream
	logCloser io.Closer
	native    *native.Backend

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	closed bool
}

// Build wires all dependencies for the configured backend.
func Build(eventSink ports.EventSink) (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildWith(cfg, eventSink)
}

// BuildWith wires dependencies from an already loaded configuration.
func BuildWith(cfg config.Config, eventSink ports.EventSink) (*Services, error) {
	logger, logCloser, err := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	filter, err := textfilter.Load(cfg.Rules.Path)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)
	bus := eventbus.New(logger)

	s := &Services{
		Config:    cfg,
		Logger:    logger,
		Registry:  registry,
		Bus:       bus,
		sink:      eventSink,
		logCloser: logCloser,
	}

	switch cfg.Backend.Kind {
	case config.BackendRemote:
		client, err := remote.New(remote.Config{
			BaseURL:        cfg.Backend.BaseURL,
			PortFile:       cfg.Backend.PortFile,
			RequestTimeout: cfg.Backend.RequestTimeout,
		}, logger)
		if err != nil {
			_ = logCloser.Close()
			return nil, err
		}
		s.Backend = client
		s.events = client.Events(bus, cfg.Backend.ReconnectDelay)
	default:
		recorder := audio.NewClipRecorder(
			audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger),
			logger,
			audio.ClipConfig{
				Audio: ports.AudioConfig{
					SampleRate:  cfg.Audio.SampleRate,
					Channels:    cfg.Audio.Channels,
					InputFormat: cfg.Audio.InputFormat,
				},
				Duration:  cfg.Audio.ClipDuration,
				OutputDir: cfg.Audio.OutputDir,
			},
		)
		s.native = native.New(
			audio.NewPactlLister(cfg.Audio.DeviceListCommand),
			recorder,
			bus,
			logger,
			native.Config{
				TranscriptDir: cfg.Transcripts.Dir,
				SourceSuffix:  cfg.Transcripts.SourceSuffix,
			},
		)
		s.Backend = s.native
	}

	s.Reconciler = usecase.NewReconciler(s.Backend, filter, logger, m, usecase.ReconcilerConfig{
		SentinelName:    cfg.Transcripts.SentinelName,
		LabelFormat:     usecase.LabelFormat(cfg.Transcripts.LabelFormat),
		ReadConcurrency: cfg.Transcripts.ReadConcurrency,
	})
	s.Coordinator = usecase.NewCoordinator(s.Backend, bus, eventSink, s.Reconciler, logger, m, usecase.CoordinatorConfig{
		PollInterval: cfg.Transcripts.PollInterval,
	})

	logger.Info("services built",
		"backend", cfg.Backend.Kind,
		"transcripts_dir", cfg.Transcripts.Dir,
		"rules", filter.Len(),
		"config_file", cfg.File,
	)
	return s, nil
}

// Start runs the background workers and then the coordinator.
func (s *Services) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return usecase.ErrDisposed
	}
	if s.group != nil {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s.cancel = cancel
	s.group = group
	s.mu.Unlock()

	if s.events != nil {
		group.Go(func() error {
			return s.events.Run(groupCtx)
		})
	}
	if addr := s.Config.Metrics.Addr; addr != "" {
		server := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(s.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		// A metrics failure must not cancel groupCtx, the event stream shares it.
		group.Go(func() error {
			s.Logger.Info("metrics listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("metrics server failed", "addr", addr, "error", err)
				s.sink.SessionError(domain.ErrorCodeStartup, fmt.Sprintf("metrics server on %s: %v", addr, err))
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return s.Coordinator.Start(runCtx)
}

// Health checks an out-of-process backend.
func (s *Services) Health(ctx context.Context) error {
	checker, ok := s.Backend.(ports.HealthChecker)
	if !ok {
		return ErrNoHealthCheck
	}
	return checker.Health(ctx)
}

// Close disposes the coordinator, stops the workers and releases the backend. Safe to call twice.
func (s *Services) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, group := s.cancel, s.group
	s.mu.Unlock()

	s.Coordinator.Dispose()

	var errs []error
	if cancel != nil {
		cancel()
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if s.native != nil {
		if err := s.native.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.Bus.Close()
	s.Logger.Debug("services closed")
	if err := s.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func metricsMux(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(gatherer))
	return mux
}
