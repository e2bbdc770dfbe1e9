package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"sale_inviter/internal/api/handler"
	"sale_inviter/internal/api/router"
	"sale_inviter/internal/collaborator"
	"sale_inviter/internal/config"
	"sale_inviter/internal/domain"
	"sale_inviter/internal/extract"
	"sale_inviter/internal/logger"
	"sale_inviter/internal/notify"
	"sale_inviter/internal/publisher"
	"sale_inviter/internal/scheduler"
	"sale_inviter/internal/service"
	"sale_inviter/internal/source/gumroad"
	"sale_inviter/internal/storage/postgres"
	redisstore "sale_inviter/internal/storage/redis"
)

type stores struct {
	settings  service.SettingsStore
	processed service.ProcessedStore
	activity  service.ActivityLog
	seed      func(ctx context.Context, values map[string]string) error
	close     func() error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log := logger.New(config.LoggingConfig{Level: "info", Format: "json"}, os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log = logger.New(cfg.Logging, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	if err := st.seed(ctx, seedValues(cfg.Settings)); err != nil {
		log.Error("failed to seed settings", "error", err)
		os.Exit(1)
	}

	notifiers := notify.Multi{notify.NewLog(log)}

	if cfg.Email.Enabled {
		notifiers = append(notifiers, notify.NewEmail(notify.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		}, log))
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, log)
		if err != nil {
			log.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		notifiers = append(notifiers, rabbitMQ)
	}

	salesSource := gumroad.New(gumroad.Config{
		BaseURL:        cfg.Gumroad.BaseURL,
		Timeout:        cfg.Gumroad.Timeout,
		MaxPages:       cfg.Gumroad.MaxPages,
		MaxAttempts:    cfg.Gumroad.Retry.MaxAttempts,
		InitialBackoff: cfg.Gumroad.Retry.InitialBackoff,
		MaxBackoff:     cfg.Gumroad.Retry.MaxBackoff,
	}, log)

	inviter, err := collaborator.New(collaborator.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: cfg.GitHub.Timeout,
	}, log)
	if err != nil {
		log.Error("failed to create github client", "error", err)
		os.Exit(1)
	}

	var opts []service.Option
	if len(cfg.Sync.GiveUpStatuses) > 0 {
		opts = append(opts, service.WithRetryPolicy(service.GiveUpOnStatus(cfg.Sync.GiveUpStatuses)))
	}

	inviteService := service.NewInviteService(
		salesSource,
		inviter,
		st.settings,
		st.processed,
		st.activity,
		notifiers,
		newExtractor(cfg.Sync),
		log,
		opts...,
	)

	sched := scheduler.NewScheduler(inviteService, log, scheduler.WithCycleTimeout(cfg.Sync.CycleTimeout))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.Admin.Addr,
		Handler: router.SetupRouter(&handler.Dependencies{
			Logger:    log,
			Service:   inviteService,
			Scheduler: sched,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("admin api listening", "addr", cfg.Admin.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin api failed", "error", err)
			cancel()
		}
	}()

	log.Info("starting sale inviter", "store", cfg.Store.Driver)
	sched.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
	}

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("admin api shutdown", "error", err)
	}

	sched.Wait()
	log.Info("stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Store.Driver == config.StoreRedis {
		client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		log.Info("connected to redis", "addr", cfg.Redis.Addr)

		store := redisstore.New(client, cfg.Redis.KeyPrefix, domain.ActivityLogSize)
		return &stores{
			settings:  store,
			processed: store,
			activity:  store,
			seed:      store.Seed,
			close:     client.Close,
		}, nil
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(cfg.Database.URL(), log); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	log.Info("connected to database")

	txManager := postgres.NewTransactionManager(db)
	settingsStore := postgres.NewSettingsStore(db, txManager)

	return &stores{
		settings:  settingsStore,
		processed: postgres.NewProcessedStore(db),
		activity:  postgres.NewActivityLog(db, txManager, domain.ActivityLogSize),
		seed:      settingsStore.Seed,
		close:     db.Close,
	}, nil
}

func seedValues(s config.SeedConfig) map[string]string {
	values := map[string]string{}
	set := func(key, value string) {
		if value != "" {
			values[key] = value
		}
	}
	set(domain.KeyGumroadAccessToken, s.GumroadAccessToken)
	set(domain.KeyGitHubAccessToken, s.GitHubAccessToken)
	set(domain.KeyGitHubOwner, s.GitHubOwner)
	set(domain.KeyGitHubRepo, s.GitHubRepo)
	if s.PollingIntervalMinutes > 0 {
		values[domain.KeyPollingIntervalMinutes] = strconv.Itoa(s.PollingIntervalMinutes)
	}
	return values
}

func newExtractor(cfg config.SyncConfig) *extract.Extractor {
	var opts []extract.Option
	if len(cfg.UsernameKeywords) > 0 {
		opts = append(opts, extract.WithKeywords(cfg.UsernameKeywords...))
	}
	if cfg.SortFieldKeys {
		opts = append(opts, extract.WithKeyOrder(extract.OrderSorted))
	}
	return extract.New(opts...)
}
