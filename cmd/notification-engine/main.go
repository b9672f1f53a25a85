// cmd/notification-engine/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsx "notification-engine/internal/common/aws"
	"notification-engine/internal/common/config"
	"notification-engine/internal/common/database"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/common/observability"
	"notification-engine/internal/engine/audit"
	"notification-engine/internal/engine/dispatch"
	"notification-engine/internal/engine/preference"
	"notification-engine/internal/engine/recipient"
	"notification-engine/internal/engine/scheduler"
	"notification-engine/internal/engine/store"
	"notification-engine/internal/engine/template"
	"notification-engine/internal/engine/webhook"
	"notification-engine/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification engine...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("notification-engine")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (audit trail) with retry, only when enabled ---
	auditRecorder := audit.Disabled()
	if cfg.Audit.Enabled && cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			// Test the connection
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditRecorder = audit.NewRecorder(esClient.Client, cfg.Audit.Index, true, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Seed template registry ---
	if cfg.Registry.Path != "" {
		reg, err := registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("template registry load failed", zap.Error(err))
		}
		if err := template.Seed(ctx, pg.DB, reg, log); err != nil {
			zapLog.Fatal("template registry seed failed", zap.Error(err))
		}
	}

	// --- Init provider clients ---
	// A channel whose provider is disabled gets the simulated client so
	// submissions still complete end to end.
	var sesClient awsx.SESAPI
	emailProvider := awsx.SimulationProvider
	if cfg.Providers.Email.Enabled {
		sesClient, err = awsx.NewSESClient(ctx, cfg.Providers.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailProvider = "ses"
	} else {
		sesClient = awsx.NewSimulatedSES()
		zapLog.Info("email provider disabled, using simulated SES client")
	}

	var smsClient awsx.SNSAPI
	smsProvider := awsx.SimulationProvider
	if cfg.Providers.SMS.Enabled {
		smsClient, err = awsx.NewSNSClient(ctx, cfg.Providers.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		smsProvider = "sns"
	} else {
		smsClient = awsx.NewSimulatedSNS()
		zapLog.Info("sms provider disabled, using simulated SNS client")
	}

	var pushClient awsx.SNSAPI
	pushProvider := awsx.SimulationProvider
	if cfg.Providers.Push.Enabled {
		pushClient, err = awsx.NewSNSClient(ctx, cfg.Providers.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns push client failed", zap.Error(err))
		}
		pushProvider = "sns"
	} else {
		pushClient = awsx.NewSimulatedSNS()
		zapLog.Info("push provider disabled, using simulated SNS client")
	}

	// --- Build the engine ---
	cacheTTL := config.GetDuration(cfg.Engine.CacheTTL)

	templates := template.NewResolver(template.Deps{
		DB:     pg.DB,
		Redis:  redis.Client,
		Logger: log,
	}, &template.Config{
		CacheEnabled: true,
		CacheTTL:     cacheTTL,
		CachePrefix:  "tpl",
	})

	preferences := preference.NewStore(preference.Deps{
		DB:     pg.DB,
		Redis:  redis.Client,
		Logger: log,
	}, &preference.Config{
		CacheEnabled: true,
		CacheTTL:     cacheTTL,
		CachePrefix:  "prefs",
	})

	gate := preference.NewGate(log)
	recipients := recipient.NewResolver(recipient.NewPostgresDirectory(pg.DB), log)

	dispatchers := &dispatch.Set{
		Email: dispatch.NewEmailDispatcher(sesClient, emailProvider, dispatch.EmailConfig{
			FromEmail: cfg.Providers.Email.FromEmail,
			FromName:  cfg.Providers.Email.FromName,
		}, log),
		SMS: dispatch.NewSMSDispatcher(smsClient, smsProvider, dispatch.SMSConfig{
			DefaultCountryCode: cfg.Providers.SMS.DefaultCountryCode,
			SenderID:           cfg.Providers.SMS.SenderID,
		}, log),
		Push: dispatch.NewPushDispatcher(pushClient, pushProvider, dispatch.PushConfig{
			MobilePlatformARN: cfg.Providers.Push.MobilePlatformARN,
			WebPlatformARN:    cfg.Providers.Push.WebPlatformARN,
			DefaultTopicARN:   cfg.Providers.Push.DefaultTopicARN,
			DefaultSound:      cfg.Providers.Push.DefaultSound,
			DefaultIcon:       cfg.Providers.Push.DefaultIcon,
		}, log),
		InApp: dispatch.NewInAppDispatcher(log),
	}
	if err := dispatchers.Validate(); err != nil {
		zapLog.Fatal("dispatcher set incomplete", zap.Error(err))
	}

	records := store.NewPostgresStore(pg.DB, log)

	engine := scheduler.NewEngine(scheduler.Deps{
		Templates:   templates,
		Preferences: preferences,
		Gate:        gate,
		Recipients:  recipients,
		Dispatchers: dispatchers,
		Store:       records,
		Audit:       auditRecorder,
		Obs:         obs,
		Logger:      log,
	}, &scheduler.Config{
		MaxAttempts:     cfg.Engine.MaxAttempts,
		DispatchTimeout: config.GetDuration(cfg.Engine.DispatchTimeout),
		SweepBatchSize:  cfg.Engine.SweepBatchSize,
		ClaimLease:      config.GetDuration(cfg.Engine.ClaimLease),
		BulkWorkers:     cfg.Engine.BulkWorkers,
	})

	reconciler := webhook.NewReconciler(webhook.Deps{
		Store:       records,
		Preferences: preferences,
		Audit:       auditRecorder,
		Logger:      log,
	})

	zapLog.Info("Notification engine assembled")

	// --- Sweep loop ---
	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()

	go func() {
		interval := config.GetDuration(cfg.Engine.SweepInterval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		zapLog.Info("Sweep loop started", zap.Duration("interval", interval))
		for {
			select {
			case <-sweepCtx.Done():
				return
			case now := <-ticker.C:
				engine.ProcessDueWork(sweepCtx, now.UTC())
			}
		}
	}()

	// --- Health & Metrics Server ---
	// Handlers go on the default mux so the pprof registrations stay
	// reachable; the explicit server allows a graceful drain on shutdown.
	opsServer := &http.Server{Addr: cfg.App.MetricsAddr}
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		// Provider callbacks share the ops listener. A non-nil error
		// means the store write failed and the provider should retry.
		ingest := func(provider string) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
				if err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				if err := reconciler.Ingest(r.Context(), provider, payload); err != nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.WriteHeader(http.StatusOK)
			}
		}
		http.HandleFunc("/webhooks/email", ingest(webhook.ProviderEmail))
		http.HandleFunc("/webhooks/sms", ingest(webhook.ProviderSMS))
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping sweeps...")
	stopSweeps()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("Health/Metrics server shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("Notification engine stopped gracefully")
}
