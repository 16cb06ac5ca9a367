package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appShipping "github.com/Zhima-Mochi/minishop-inventory/internal/application/shipping"
	appStock "github.com/Zhima-Mochi/minishop-inventory/internal/application/stock"
	"github.com/Zhima-Mochi/minishop-inventory/internal/config"
	domainOutbox "github.com/Zhima-Mochi/minishop-inventory/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/kafka"
	infraobs "github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/minishop-inventory/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/minishop-inventory/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-inventory/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		// logger settings come from config, so fall back to a bare one
		bootstrap := logging.MustNewLogger("minishop-inventory", "unknown")
		bootstrap.Fatal("config_invalid", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := oteltrace.Setup(ctx, oteltrace.SetupOptions{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		systemLogger.Warn("tracing_setup_failed", zap.Error(err))
	}

	tel := infraobs.NewWithRegistry(
		oteltrace.New(cfg.ServiceName),
		zaplogger.Wrap(baseLogger),
		prometrics.New(prometheus.DefaultRegisterer, "", ""),
	)

	dialect, err := sqlstore.DialectFor(cfg.DB.Driver)
	if err != nil {
		systemLogger.Fatal("db_dialect_invalid", zap.Error(err))
	}
	db, err := sqlstore.Open(ctx, cfg.DB, sqlstore.OptionsFrom(cfg.DB))
	if err != nil {
		systemLogger.Fatal("db_open_failed",
			zap.String("driver", string(cfg.DB.Driver)),
			zap.String("host", cfg.DB.Host),
			zap.Error(err),
		)
	}
	defer func() { _ = db.Close() }()
	store := sqlstore.New(db, dialect, cfg.DB.TablePrefix, cfg.DB.QueryTimeout)

	// Shipment events go to Kafka when brokers are configured, otherwise to the
	// in-memory bus where the audit worker logs them.
	var publisher domainOutbox.Publisher
	if cfg.Kafka.Enabled() {
		writer, err := kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			systemLogger.Fatal("kafka_writer_invalid", zap.Error(err))
		}
		kafkaPublisher := kafka.NewPublisher(writer, tel)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				systemLogger.Error("kafka_close_error", zap.Error(err))
			}
		}()
		publisher = kafkaPublisher
		systemLogger.Info("event_publisher_kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		bus := outbox.NewBus(tel)
		appShipping.NewAuditWorker(bus, tel, nil).Start()
		bus.Start(context.Background())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			bus.Stop(stopCtx)
		}()
		publisher = bus
	}

	handler := httppresentation.NewHandler(httppresentation.Services{
		StockID:     appStock.NewResolveStockIDUseCase(store, tel),
		StockStatus: appStock.NewResolveStockStatusUseCase(store, tel),
		Shipment:    appShipping.NewBuildShipmentUseCase(publisher, tel),
		Health:      store,
	}, nil, tel)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("db_driver", string(cfg.DB.Driver)),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			systemLogger.Error("tracing_shutdown_error", zap.Error(err))
		}
	}
}
