// Command gateway is the ai-gateway reverse proxy.
//
// It reads configuration from environment variables (or config.yaml) and
// starts two HTTP listeners: the data plane (POST /chat, /healthz, /readyz,
// /metrics) and the admin control plane.
//
// Quick-start (in-memory cache, no Redis required):
//
//	OPENAI_ENDPOINT=https://api.openai.com OPENAI_API_KEY=sk-... ./gateway
//
// See internal/config for all available configuration variables.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/nulpointcorp/ai-gateway/internal/admin"
	"github.com/nulpointcorp/ai-gateway/internal/cache"
	"github.com/nulpointcorp/ai-gateway/internal/config"
	"github.com/nulpointcorp/ai-gateway/internal/gateway"
	"github.com/nulpointcorp/ai-gateway/internal/guardrails"
	"github.com/nulpointcorp/ai-gateway/internal/healthcheck"
	"github.com/nulpointcorp/ai-gateway/internal/logger"
	"github.com/nulpointcorp/ai-gateway/internal/metrics"
	"github.com/nulpointcorp/ai-gateway/internal/providers"
	anthropicprov "github.com/nulpointcorp/ai-gateway/internal/providers/anthropic"
	coherprov "github.com/nulpointcorp/ai-gateway/internal/providers/cohere"
	geminiprov "github.com/nulpointcorp/ai-gateway/internal/providers/gemini"
	mistralprov "github.com/nulpointcorp/ai-gateway/internal/providers/mistral"
	ollamaprov "github.com/nulpointcorp/ai-gateway/internal/providers/ollama"
	openaiprov "github.com/nulpointcorp/ai-gateway/internal/providers/openai"
	"github.com/nulpointcorp/ai-gateway/internal/ratelimit"
	"github.com/nulpointcorp/ai-gateway/internal/stats"
)

// version is overridden at build time via -ldflags="-X main.version=x.y.z".
var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	baseLogger := buildBaseLogger(cfg.Gateway.LogLevel)
	slog.SetDefault(baseLogger)

	if err := run(ctx, cfg, baseLogger); err != nil {
		baseLogger.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run wires up every subsystem and blocks until ctx is cancelled or a
// listener fails. It owns the shutdown of every resource it creates.
func run(ctx context.Context, cfg *config.Config, base *slog.Logger) error {
	var rdb *redis.Client
	if cfg.Cache.Mode == "redis" || cfg.Logging.ClickHouseEnabled {
		var err error
		rdb, err = connectRedis(ctx, cfg.Redis.URL)
		if err != nil && cfg.Cache.Mode == "redis" {
			return fmt.Errorf("redis: %w", err)
		}
	}

	promptCache, err := buildCache(ctx, cfg, rdb)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if closer, ok := promptCache.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	limiter := buildLimiter(cfg, rdb)

	reqLogger, err := buildLogger(ctx, cfg, base)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = reqLogger.Close() }()
	reqLogger.SetVerbose(cfg.Gateway.VerboseLogging)

	met := metrics.New()
	met.SetBuildInfo(version)

	registry := providers.NewRegistry(buildProviders(cfg)...)
	if registry.Len() == 0 {
		return fmt.Errorf("no providers enabled")
	}

	state := admin.NewState(admin.Snapshot{
		Guardrails:     guardrails.Config{},
		LoggingConfig:  cfg.Logging,
		VerboseLogging: cfg.Gateway.VerboseLogging,
	})

	gatewayStats := stats.New()

	dispatcher := gateway.New(registry, promptCache, limiter, gatewayStats, reqLogger, met, state)
	chatHandler := gateway.NewHandler(dispatcher)

	endpoints := map[string]string{}
	for _, name := range registry.Enabled() {
		endpoints[name] = providerEndpoint(cfg, name)
	}
	hc := healthcheck.New(ctx, endpoints)
	defer hc.Close()

	dataSrv := gateway.DataPlaneServer(chatHandler, hc, met, cfg.Gateway.CORSOrigins)
	adminSrv := gateway.AdminPlaneServer(admin.New(state, promptCache, gatewayStats, limiter, reqLogger))

	dataAddr := fmt.Sprintf(":%d", cfg.Gateway.Port)
	adminAddr := fmt.Sprintf(":%d", cfg.Gateway.AdminPort)

	base.Info("starting ai-gateway",
		slog.String("version", version),
		slog.String("data_addr", dataAddr),
		slog.String("admin_addr", adminAddr),
		slog.String("cache_mode", cfg.Cache.Mode),
		slog.Int("providers", registry.Len()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dataSrv.ListenAndServe(dataAddr)
	})
	g.Go(func() error {
		return adminSrv.ListenAndServe(adminAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dataSrv.ShutdownWithContext(shutdownCtx)
		_ = adminSrv.ShutdownWithContext(shutdownCtx)
		return nil
	})

	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	return g.Wait()
}

func buildBaseLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	}))
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return rdb, nil
}

func buildCache(ctx context.Context, cfg *config.Config, rdb *redis.Client) (cache.Cache, error) {
	switch cfg.Cache.Mode {
	case "redis":
		return cache.NewRedisCacheFromClient(rdb, cfg.CacheTTL()), nil
	case "none":
		return cache.NewMemoryCache(0), nil
	default:
		_ = ctx
		return cache.NewMemoryCache(cfg.Cache.TTLSeconds), nil
	}
}

func buildLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if cfg.Cache.Mode == "redis" && rdb != nil {
		return ratelimit.NewRedisLimiter(rdb)
	}
	return ratelimit.NewMemoryLimiter()
}

func buildLogger(ctx context.Context, cfg *config.Config, base *slog.Logger) (*logger.Logger, error) {
	var sinks []logger.Sink
	if cfg.Logging.SplunkEnabled {
		sinks = append(sinks, logger.NewSplunkSink(cfg.Logging.SplunkEndpoint))
	}
	if cfg.Logging.DatadogEnabled {
		sinks = append(sinks, logger.NewDatadogSink(cfg.Logging.DatadogEndpoint))
	}
	if cfg.Logging.ElasticsearchEnabled {
		sinks = append(sinks, logger.NewElasticsearchSink(cfg.Logging.ElasticsearchEndpoint))
	}
	if cfg.Logging.ClickHouseEnabled {
		sink, err := logger.NewClickHouseSink(
			cfg.Logging.ClickHouseAddr,
			cfg.Logging.ClickHouseDatabase,
			cfg.Logging.ClickHouseUsername,
			cfg.Logging.ClickHousePassword,
			cfg.Logging.ClickHouseTable,
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	return logger.New(ctx, base, sinks...), nil
}

// buildProviders constructs one adapter per provider whose Endpoint is
// configured. The adapter's base URL is set from that endpoint, overriding
// its built-in default.
func buildProviders(cfg *config.Config) []providers.ProviderAdapter {
	var adapters []providers.ProviderAdapter

	if cfg.OpenAI.Endpoint != "" {
		adapters = append(adapters, openaiprov.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model, openaiprov.WithBaseURL(cfg.OpenAI.Endpoint)))
	}
	if cfg.Anthropic.Endpoint != "" {
		adapters = append(adapters, anthropicprov.New(cfg.Anthropic.APIKey, cfg.Anthropic.Model, anthropicprov.WithBaseURL(cfg.Anthropic.Endpoint)))
	}
	if cfg.Gemini.Endpoint != "" {
		adapters = append(adapters, geminiprov.New(cfg.Gemini.APIKey, cfg.Gemini.Model, geminiprov.WithBaseURL(cfg.Gemini.Endpoint)))
	}
	if cfg.Ollama.Endpoint != "" {
		adapters = append(adapters, ollamaprov.New(cfg.Ollama.APIKey, cfg.Ollama.Model, ollamaprov.WithBaseURL(cfg.Ollama.Endpoint)))
	}
	if cfg.Mistral.Endpoint != "" {
		adapters = append(adapters, mistralprov.New(cfg.Mistral.APIKey, cfg.Mistral.Model, mistralprov.WithBaseURL(cfg.Mistral.Endpoint)))
	}
	if cfg.Cohere.Endpoint != "" {
		adapters = append(adapters, coherprov.New(cfg.Cohere.APIKey, cfg.Cohere.Model, coherprov.WithBaseURL(cfg.Cohere.Endpoint)))
	}

	return adapters
}

func providerEndpoint(cfg *config.Config, name string) string {
	switch name {
	case "openai":
		return cfg.OpenAI.Endpoint
	case "anthropic":
		return cfg.Anthropic.Endpoint
	case "gemini":
		return cfg.Gemini.Endpoint
	case "ollama":
		return cfg.Ollama.Endpoint
	case "mistral":
		return cfg.Mistral.Endpoint
	case "cohere":
		return cfg.Cohere.Endpoint
	default:
		return ""
	}
}
