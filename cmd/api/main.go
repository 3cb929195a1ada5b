package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/mailposture/internal/application"
	appai "github.com/bryanwahyu/mailposture/internal/application/ai"
	"github.com/bryanwahyu/mailposture/internal/application/monitor"
	appscans "github.com/bryanwahyu/mailposture/internal/application/scans"
	"github.com/bryanwahyu/mailposture/internal/config"
	domai "github.com/bryanwahyu/mailposture/internal/domain/ai"
	"github.com/bryanwahyu/mailposture/internal/domain/alerts"
	"github.com/bryanwahyu/mailposture/internal/domain/analyst"
	"github.com/bryanwahyu/mailposture/internal/domain/domains"
	"github.com/bryanwahyu/mailposture/internal/domain/scanerrors"
	"github.com/bryanwahyu/mailposture/internal/domain/scans"
	openaiadv "github.com/bryanwahyu/mailposture/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/mailposture/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/mailposture/internal/infra/db/postgres"
	dnsadapter "github.com/bryanwahyu/mailposture/internal/infra/dns"
	"github.com/bryanwahyu/mailposture/internal/infra/httpserver"
	"github.com/bryanwahyu/mailposture/internal/infra/notify"
	minioStore "github.com/bryanwahyu/mailposture/internal/infra/storage"
	"github.com/bryanwahyu/mailposture/internal/middleware"
)

// repositories groups the persistence adapters of one driver.
type repositories struct {
	db       *sql.DB
	scans    scans.Repository
	alerts   alerts.Repository
	domains  domains.Repository
	errors   scanerrors.Repository
	analyses analyst.Repository
}

func openRepositories(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &repositories{
			db:       db,
			scans:    pgp.NewScanRepository(db),
			alerts:   pgp.NewAlertRepository(db),
			domains:  pgp.NewDomainRepository(db),
			errors:   pgp.NewScanErrorRepository(db),
			analyses: pgp.NewAnalystRepository(db),
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &repositories{
			db:       db,
			scans:    mysqlp.NewScanRepository(db),
			alerts:   mysqlp.NewAlertRepository(db),
			domains:  mysqlp.NewDomainRepository(db),
			errors:   mysqlp.NewScanErrorRepository(db),
			analyses: mysqlp.NewAnalystRepository(db),
		}, nil
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("config load error", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		logger.Error("database init error", slog.Any("err", err))
		os.Exit(1)
	}
	defer repos.db.Close()

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: repos.db},
	}

	// artifact store is optional
	var artifacts scans.ArtifactStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx, minioStore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			logger.Error("minio init error", slog.Any("err", err))
			os.Exit(1)
		}
		artifacts = store
		health["storage"] = store
	}

	resolver := dnsadapter.New(dnsadapter.Config{
		Nameservers: cfg.DNS.Nameservers,
		Timeout:     cfg.DNSTimeout(),
		Retries:     cfg.DNS.Retries,
	}, logger.With(slog.String("component", "dns")))

	clock := application.SystemClock{}
	svc := &appscans.Service{
		Resolver:  resolver,
		Repo:      repos.scans,
		Artifacts: artifacts,
		Clock:     clock,
		Logger:    logger.With(slog.String("component", "scans")),
	}

	var advisor domai.Client = openaiadv.Offline{}
	if cfg.OpenAI.APIKey != "" {
		advisor = openaiadv.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}
	aiSvc := appai.NewService(advisor, repos.analyses, clock)

	if cfg.Monitor.Enabled {
		loop := &monitor.Loop{
			Scanner:   svc,
			Scans:     repos.scans,
			Domains:   repos.domains,
			Alerts:    repos.alerts,
			Notifier:  notify.LogNotifier{Logger: logger.With(slog.String("component", "notify"))},
			Errors:    repos.errors,
			Artifacts: artifacts,
			PlanCheck: monitor.PlanAllowList(cfg.Monitor.AllowedPlans),
			Metrics:   middleware.MonitorMetrics{},
			Interval:  cfg.MonitorInterval(),
			Clock:     clock,
			Logger:    logger.With(slog.String("component", "monitor")),
		}
		go loop.Run(ctx)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx, 5*time.Minute)

	handler := httpserver.NewRouter(httpserver.Deps{
		Scans:       svc,
		AI:          aiSvc,
		Alerts:      repos.alerts,
		Errors:      repos.errors,
		Health:      health,
		APIKeys:     cfg.Auth,
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger.With(slog.String("component", "http")),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", slog.String("addr", addr), slog.String("db", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("err", err))
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", slog.Any("err", err))
	}
}
