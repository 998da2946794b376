package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/config"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/database"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/handlers"
	logger "github.com/GapNapatS/PredictableTimingExperiment/server/internal/logging"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/metrics"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/router"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/services"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/telemetry"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/utils"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const defaultSessionSecret = "change-me-change-me"

func main() {
	// A local .env is optional; the real environment wins.
	_ = godotenv.Load()

	bootLog := logger.NewConsole()
	projectRoot := os.Getenv("RTEXP_ROOT")
	if projectRoot == "" {
		projectRoot = "."
	}

	// Initialize Configuration
	conf, err := config.Init(projectRoot, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Logger
	log, err := logger.Init(logger.Options{
		Directory:  conf.Logging.Directory,
		MaxSize:    conf.Logging.MaxSize,
		MaxBackups: conf.Logging.MaxBackups,
		MaxAge:     conf.Logging.MaxAge,
		Compress:   conf.Logging.Compress,
		Level:      conf.Logging.Level,
	})
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()

	secret := conf.Server.SessionSecret
	if secret == defaultSessionSecret {
		log.Warn("Using a random session secret; cookies will not survive a restart")
		if secret, err = utils.GenerateSecureToken(32); err != nil {
			log.Fatal("Failed to generate session secret", zap.Error(err))
		}
	}

	// Initialize Database
	if conf.Database.Enabled {
		if err := database.Init(conf.Database, log); err != nil {
			log.Fatal("Database initialization failed", zap.Error(err))
		}
		defer database.Close()
	} else {
		log.Info("Database disabled; telemetry is logged, not stored")
	}

	// Load the experiment protocol at startup
	protocol, err := loadProtocol(conf.Experiment.ProtocolPath, log)
	if err != nil {
		log.Fatal("Invalid experiment protocol", zap.Error(err))
	}

	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := m.Register(reg); err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := telemetry.NewSink(conf.Telemetry)
	if err != nil {
		log.Fatal("Failed to create telemetry sink", zap.Error(err))
	}
	dispatcher := telemetry.NewDispatcher(sink,
		telemetry.WithLogger(log),
		telemetry.WithMetrics(m),
		telemetry.WithTimeout(conf.Telemetry.Timeout),
		telemetry.WithBuffer(conf.Telemetry.Buffer),
	)
	if err := dispatcher.Start(ctx); err != nil {
		log.Fatal("Failed to start telemetry dispatcher", zap.Error(err))
	}
	log.Info("Telemetry ready", zap.String("driver", sink.Name()))

	registry := services.NewRegistry(conf.Server.SessionTTL, m, log)

	sessionHandler := handlers.NewSessionHandler(log, registry,
		protocolProvider(conf.Experiment.ProtocolPath, protocol, log),
		services.RunnerConfig{
			TickRate:  conf.Server.TickRate,
			Forwarder: dispatcher,
			Observers: []func(models.TrialResult){m.ObserveTrial},
		},
	)

	// Setup router, passing the logger to it
	r := router.Setup(log, router.Deps{
		SessionSecret: secret,
		Registry:      registry,
		Sessions:      sessionHandler,
		Telemetry:     handlers.NewTelemetryHandler(log),
		Gatherer:      reg,
	})

	srv := &http.Server{
		Addr:    ":" + conf.Server.Port,
		Handler: r,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server listening on http://localhost" + srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to run server", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown did not complete", zap.Error(err))
	}
	registry.Close()
	if err := dispatcher.Close(); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}
}

// protocolProvider returns the protocol for a new session. When a config
// reload points experiment.protocol_path at a different file, that file is
// loaded; an invalid file keeps the previous protocol in place.
func protocolProvider(path string, initial models.Protocol, log *zap.Logger) func() models.Protocol {
	var mu sync.Mutex
	current := initial
	return func() models.Protocol {
		mu.Lock()
		defer mu.Unlock()
		conf := config.Current()
		if conf == nil || conf.Experiment.ProtocolPath == path {
			return current
		}
		p, err := loadProtocol(conf.Experiment.ProtocolPath, log)
		if err != nil {
			log.Error("Reloaded protocol is invalid, keeping the previous one",
				zap.String("path", conf.Experiment.ProtocolPath), zap.Error(err))
			return current
		}
		path, current = conf.Experiment.ProtocolPath, p
		return current
	}
}

// loadProtocol reads and validates the protocol file, falling back to the
// reference protocol when the file does not exist.
func loadProtocol(path string, log *zap.Logger) (models.Protocol, error) {
	p, err := models.LoadProtocol(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("Protocol file not found, using the reference protocol", zap.String("path", path))
		def := models.DefaultProtocol()
		p = &def
	case err != nil:
		return models.Protocol{}, err
	}
	if err := experiment.Validate(*p); err != nil {
		return models.Protocol{}, err
	}
	log.Info("Protocol loaded",
		zap.String("path", path),
		zap.Int("trials_per_condition", p.TrialsPerCondition),
		zap.Stringers("conditions", p.Conditions))
	return *p, nil
}
