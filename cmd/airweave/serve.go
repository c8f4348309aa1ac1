package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/AlejoJamC/airweave/internal/config"
	dbPostgres "github.com/AlejoJamC/airweave/internal/db/postgres"
	dbRedis "github.com/AlejoJamC/airweave/internal/db/redis"
	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
	"github.com/AlejoJamC/airweave/internal/domain/search/query"
	logpkg "github.com/AlejoJamC/airweave/internal/logger"
	"github.com/AlejoJamC/airweave/internal/metrics"
	"github.com/AlejoJamC/airweave/internal/repository/authz"
	collectionrepo "github.com/AlejoJamC/airweave/internal/repository/collection"
	"github.com/AlejoJamC/airweave/internal/repository/embcache"
	"github.com/AlejoJamC/airweave/internal/repository/retrieval"
	"github.com/AlejoJamC/airweave/internal/tracing"
	chiTransport "github.com/AlejoJamC/airweave/internal/transport/chi"
	natsTransport "github.com/AlejoJamC/airweave/internal/transport/nats"
	openaiTransport "github.com/AlejoJamC/airweave/internal/transport/openai"
	embeddinguc "github.com/AlejoJamC/airweave/internal/usecase/embedding"
	healthuc "github.com/AlejoJamC/airweave/internal/usecase/health"
	searchuc "github.com/AlejoJamC/airweave/internal/usecase/search"
	"github.com/AlejoJamC/airweave/internal/version"
)

func newServeCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env == "" {
				env = config.GetEnv()
			}
			return runServe(cmd.Context(), env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment (default: $AIRWEAVE_ENV or local)")
	return cmd
}

func runServe(ctx context.Context, env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLoggerWithFile(env, logpkg.FileOptions{
		Path:       cfg.Logging.File.Path,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
	}, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting airweave search API",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Int("collections", len(cfg.Collections)),
	)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterSearchMetrics()

	// valkey and redis share the rueidis store
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	retriever := retrieval.New(cfg.Database.KeyPrefix).WithBackend(domain.BackendRedis, store)
	healthComponents := []healthuc.Component{healthuc.Store(cfg.Database.Driver, store, true)}

	if cfg.Postgres.DSN != "" {
		pg, err := dbPostgres.NewStore(ctx, dbPostgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return fmt.Errorf("create postgres store: %w", err)
		}
		defer pg.Close()
		retriever = retriever.WithBackend(domain.BackendPGVector, pg)
		healthComponents = append(healthComponents, healthuc.Store("postgres", pg, true))
		logger.Info("Connected to postgres")
	}

	embedders := make(map[string]domain.Embedder, len(cfg.Embedding.Models))
	for name, m := range cfg.Embedding.Models {
		base, emb := buildEmbedder(name, m, cfg.Embedding, store, cfg.Database.KeyPrefix, logger)
		embedders[name] = emb
		healthComponents = append(healthComponents, healthuc.Embedding("embedding:"+name, base))
		logger.Info("Embedder created",
			zap.String("name", name),
			zap.String("provider", m.Provider),
			zap.String("model", m.Model),
			zap.Int("dimensions", m.Dimensions),
		)
	}

	// Pass nil interface (not typed nil pointer!) if no chat provider is configured.
	var llm domain.LLM
	if len(cfg.LLM.Providers) > 0 {
		llm = buildLLM(cfg.LLM, logger)
	}

	registry, err := collectionrepo.NewRegistry(domainCollections(cfg.Collections))
	if err != nil {
		return fmt.Errorf("build collection registry: %w", err)
	}

	policies := make([]authz.Policy, len(cfg.Authorization.Policies))
	for i, p := range cfg.Authorization.Policies {
		policies[i] = authz.Policy{Principal: p.Principal, Collections: p.Collections}
	}

	orch, err := searchuc.NewPipeline(searchuc.Dependencies{
		Collections: registry,
		Embedders:   embedders,
		Retriever:   retriever,
		Authorizer:  authz.NewStatic(policies, cfg.Authorization.TenantIsolation),
		LLM:         llm,
		Federation: searchuc.FederationConfig{
			Fusion:              searchuc.Fusion(cfg.Search.Fusion),
			PrefetchMultiplier:  cfg.Search.PrefetchMultiplier,
			EmptyResultFallback: cfg.Search.EmptyResultFallback,
		},
		RerankTopN:          cfg.Search.RerankTopN,
		MaxContextItems:     cfg.Search.MaxContextItems,
		ConfidenceThreshold: cfg.Search.ConfidenceThreshold,
		Now:                 time.Now,
		Tracer:              tracing.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	var events searchuc.EventPublisher
	if cfg.Analytics.NATSURL != "" {
		pub, err := natsTransport.Connect(ctx, cfg.Analytics.NATSURL, cfg.Analytics.Stream, logger)
		if err != nil {
			return fmt.Errorf("connect analytics: %w", err)
		}
		defer pub.Close()
		events = pub
	}

	p := cfg.Search.Pipeline
	searchSvc := searchuc.NewService(orch, searchuc.Config{
		Defaults: query.Options{
			ExpandQueries:         p.ExpandQueries,
			MaxExpansions:         p.MaxExpansions,
			FiltersEnabled:        p.FiltersEnabled,
			Rerank:                p.Rerank,
			GenerateAnswer:        p.GenerateAnswer,
			TemporalDecayHalflife: time.Duration(p.TemporalDecayHalflifeHr) * time.Hour,
			TopK:                  p.TopK,
			FederationTimeout:     time.Duration(p.FederationTimeoutMs) * time.Millisecond,
			Strategy:              mode.Mode(p.RetrievalStrategy),
		},
		RequestTimeout: time.Duration(cfg.Search.RequestTimeoutMs) * time.Millisecond,
		MaxLimit:       cfg.Search.MaxLimit,
	}, events, logger)

	healthSvc := healthuc.New(0, healthComponents...)

	server := chiTransport.NewServer(searchSvc, registry, healthSvc, logger)
	auth := chiTransport.NewAuthenticator(apiKeys(cfg.Auth), chiTransport.JWTOptions{
		Secret:      []byte(cfg.Auth.JWT.Secret),
		Issuer:      cfg.Auth.JWT.Issuer,
		TenantClaim: cfg.Auth.JWT.TenantClaim,
	})
	if !auth.Enabled() {
		logger.Warn("Authentication disabled; requests run as the anonymous principal")
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(auth.Middleware)
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ServerOptions{BaseRouter: r})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	searchSvc.Close()

	logger.Info("Server stopped gracefully")
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> Instruction.
// The base provider is returned separately for health checks.
func buildEmbedder(
	name string,
	m config.ModelConfig,
	embCfg config.EmbeddingConfig,
	store *dbRedis.Store,
	keyPrefix string,
	logger *zap.Logger,
) (*openaiTransport.Embedder, domain.Embedder) {
	provCfg := embCfg.Providers[m.Provider]

	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      m.Model,
		Dimensions: m.Dimensions,
		Provider:   m.Provider,
		Logger:     logger,
	})

	// Same gotcha as the LLM: keep the interface nil when throttling is off.
	var limiter embeddinguc.Limiter
	if provCfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(provCfg.RequestsPerSecond), max(1, provCfg.Burst))
	}

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(base, m.Provider, m.Model, limiter, logger)

	embedder = embcache.New(embedder, name, store, embcache.Options{
		KeyPrefix:  keyPrefix,
		TTL:        time.Duration(embCfg.Cache.TTLSec) * time.Second,
		LocalTTL:   time.Duration(embCfg.Cache.LocalTTLSec) * time.Second,
		CacheTotal: metrics.EmbeddingCacheTotal,
	}, logger)

	// Instruction prefix (outermost: cache key includes instruction)
	if m.QueryInstruction != "" {
		return base, domain.NewInstructionEmbedder(embedder, m.QueryInstruction)
	}
	return base, embedder
}

// buildLLM chains the configured chat providers in priority order.
func buildLLM(cfg config.LLMConfig, logger *zap.Logger) *openaiTransport.Chain {
	providers := make([]openaiTransport.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, openaiTransport.NewChatClient(openaiTransport.ChatConfig{
			Name:              p.Name,
			APIKey:            p.APIKey,
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           time.Duration(p.TimeoutSec) * time.Second,
			RequestsPerSecond: p.RequestsPerSecond,
			Burst:             p.Burst,
			Retry: openaiTransport.RetryPolicy{
				MaxAttempts:  cfg.Retry.MaxAttempts,
				InitialDelay: time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond,
				MaxDelay:     time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
			},
			Breaker: openaiTransport.BreakerConfig{
				MaxRequests:  cfg.Breaker.MaxRequests,
				Interval:     time.Duration(cfg.Breaker.IntervalSec) * time.Second,
				Timeout:      time.Duration(cfg.Breaker.TimeoutSec) * time.Second,
				MinRequests:  cfg.Breaker.MinRequests,
				FailureRatio: cfg.Breaker.FailureRatio,
			},
			Logger: logger,
		}))
		logger.Info("LLM provider configured", zap.String("name", p.Name), zap.String("model", p.Model))
	}
	return openaiTransport.NewChain(logger, providers...)
}

func domainCollections(cols []config.CollectionConfig) []domain.Collection {
	out := make([]domain.Collection, len(cols))
	for i, c := range cols {
		out[i] = domain.Collection{
			ID:             c.ID,
			Backend:        domain.Backend(c.Backend),
			Index:          c.Index,
			Dimensions:     c.Dimensions,
			EmbeddingModel: c.EmbeddingModel,
			Sources:        c.Sources,
		}
	}
	return out
}

func apiKeys(cfg config.AuthConfig) []chiTransport.APIKey {
	keys := make([]chiTransport.APIKey, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		keys = append(keys, chiTransport.APIKey{
			Key:       k.Key,
			Principal: domain.Principal{ID: k.Principal, Tenant: k.Tenant},
		})
	}
	return keys
}
