// cmd/lookup-bot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"asset-lookup-bot/internal/common/aws"
	"asset-lookup-bot/internal/common/config"
	"asset-lookup-bot/internal/common/database"
	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/observability"
	"asset-lookup-bot/internal/keepalive"
	"asset-lookup-bot/internal/lookup/conversation"
	"asset-lookup-bot/internal/lookup/dataset"
	"asset-lookup-bot/internal/lookup/directory"
	"asset-lookup-bot/internal/lookup/query"
	"asset-lookup-bot/internal/lookup/scope"
	"asset-lookup-bot/internal/lookup/session"
	"asset-lookup-bot/internal/sources/cache"
	essource "asset-lookup-bot/internal/sources/elasticsearch"
	pgsource "asset-lookup-bot/internal/sources/postgres"
	"asset-lookup-bot/internal/sources/sheet"
	"asset-lookup-bot/internal/transport/telegram"
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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting lookup bot...",
		zap.String("environment", cfg.App.Environment),
		zap.Strings("branches", cfg.BranchNames()),
	)

	obs, err := observability.New(cfg.App.Name, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Sources.Timeout))
	fetcher := sheet.NewFetcher(httpClient, cfg.Dataset.MaxRows, log)
	checks := make(map[string]telegram.Check)

	// --- Permission directory ---
	var permissions directory.Source
	switch cfg.Permissions.Kind {
	case config.PermissionsKindPostgres:
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.Ping

		p := cfg.Permissions
		permissions = pgsource.NewPermissionSource(pg.DB, p.Table,
			p.OperatorColumn, p.BranchColumn, p.RegionColumn, p.NameColumn)
		zapLog.Info("Permission directory backed by PostgreSQL", zap.String("table", p.Table))
	default:
		permissions = sheet.NewPermissionSource(fetcher, cfg.Permissions.URL)
		zapLog.Info("Permission directory backed by sheet")
	}
	dir := directory.New(directory.LoadConfig(cfg), permissions, log)

	// --- Branch datasets ---
	var sheetDatasets dataset.Source = newSheetDatasets(cfg, fetcher)
	var indexDatasets dataset.Source

	if cfg.NeedsElasticsearch() {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error { return esClient.Ping(ctx) }, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		checks["elasticsearch"] = esClient.Ping

		es := essource.NewDatasetSource(esClient.Client, cfg.Dataset.MaxRows)
		for _, b := range cfg.Branches {
			if b.Index != "" {
				es.Add(b.Name, b.Index)
			}
		}
		indexDatasets = es
	}

	if ttl := config.GetDuration(cfg.Dataset.CacheTTL); ttl > 0 {
		rdb := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error { return rdb.Ping(ctx) }, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping

		sheetDatasets = cache.New(rdb.Client, sheetDatasets, ttl, log)
		if indexDatasets != nil {
			indexDatasets = cache.New(rdb.Client, indexDatasets, ttl, log)
		}
		zapLog.Info("Dataset cache enabled", zap.Duration("ttl", ttl))
	}

	provider := dataset.NewProvider(dataset.Columns{
		Asset:  cfg.Dataset.AssetColumn,
		Region: cfg.Dataset.RegionColumn,
	}, log)
	for _, b := range cfg.Branches {
		switch {
		case b.Index != "":
			provider.Register(b.Name, indexDatasets)
		case b.URL != "":
			provider.Register(b.Name, sheetDatasets)
		default:
			zapLog.Warn("branch has no dataset source", zap.String("branch", b.Name))
			provider.Register(b.Name, nil)
		}
	}

	// --- Alerts ---
	alerter, err := newAlerter(ctx, cfg.Alerts)
	if err != nil {
		zapLog.Fatal("alerter init failed", zap.Error(err))
	}

	// --- Conversation ---
	deps := &conversation.Dependencies{
		Directory:     dir,
		Datasets:      provider,
		Resolver:      scope.NewResolver(cfg.Permissions.Unrestricted),
		Engine:        query.NewEngine(cfg.Dataset.QueryPrefix),
		Sessions:      session.NewStore(),
		Observability: obs,
		Logger:        log,
	}
	if alerter != nil {
		deps.Alerter = alerter
	}
	controller := conversation.NewController(conversation.LoadConfig(cfg), deps)

	// --- Webhook server ---
	bot := telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.Token,
		commonhttp.NewClient(config.GetDuration(cfg.Telegram.Timeout)))
	webhook, err := telegram.NewServer(cfg.Server.WebhookPath, controller, bot, log)
	if err != nil {
		zapLog.Fatal("webhook init failed", zap.Error(err))
	}
	for name, check := range checks {
		webhook.AddCheck(name, check)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           webhook.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Webhook server listening", zap.String("addr", srv.Addr), zap.String("path", cfg.Server.WebhookPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("webhook server failed", zap.Error(err))
		}
	}()

	if cfg.KeepAlive.URL != "" {
		pinger := keepalive.New(cfg.KeepAlive.URL, config.GetDuration(cfg.KeepAlive.Interval), httpClient, log)
		go pinger.Run(ctx)
		zapLog.Info("Keep-alive enabled", zap.String("url", cfg.KeepAlive.URL))
	}

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down server", zap.Error(err))
	}
	zapLog.Info("Lookup bot stopped")
}

func newSheetDatasets(cfg *config.Config, fetcher *sheet.Fetcher) *sheet.DatasetSource {
	src := sheet.NewDatasetSource(fetcher)
	for _, b := range cfg.Branches {
		if b.URL != "" {
			src.Add(b.Name, b.URL)
		}
	}
	return src
}

func newAlerter(ctx context.Context, cfg config.AlertsConfig) (conversation.Alerter, error) {
	switch cfg.Channel {
	case config.AlertChannelSNS:
		client, err := aws.NewSNSClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return aws.NewSNSAlerter(client, cfg.TopicARN), nil
	case config.AlertChannelSES:
		client, err := aws.NewSESClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		return aws.NewSESAlerter(client, cfg.FromEmail, cfg.ToEmail), nil
	default:
		return nil, nil
	}
}
