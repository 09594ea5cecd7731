// Package main wires together the company intelligence service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	pubsubv2 "cloud.google.com/go/pubsub/v2"

	"github.com/companyscope/crawler/internal/analyzer"
	"github.com/companyscope/crawler/internal/api"
	"github.com/companyscope/crawler/internal/browser"
	"github.com/companyscope/crawler/internal/cache"
	cachepostgres "github.com/companyscope/crawler/internal/cache/postgres"
	"github.com/companyscope/crawler/internal/clock/system"
	"github.com/companyscope/crawler/internal/config"
	"github.com/companyscope/crawler/internal/discovery"
	"github.com/companyscope/crawler/internal/extraction"
	uuidgen "github.com/companyscope/crawler/internal/id/uuid"
	"github.com/companyscope/crawler/internal/intel"
	"github.com/companyscope/crawler/internal/llm"
	"github.com/companyscope/crawler/internal/logging"
	"github.com/companyscope/crawler/internal/metrics"
	memorypublisher "github.com/companyscope/crawler/internal/publisher/memory"
	pubsubpublisher "github.com/companyscope/crawler/internal/publisher/pubsub"
	"github.com/companyscope/crawler/internal/report"
	"github.com/companyscope/crawler/internal/search"
	gcsstorage "github.com/companyscope/crawler/internal/storage/gcs"
	localstorage "github.com/companyscope/crawler/internal/storage/local"
	memorystorage "github.com/companyscope/crawler/internal/storage/memory"
	"github.com/companyscope/crawler/internal/validator"
)

// Cache namespaces, one logical document per operation family.
const (
	nsAnalyze  = "analyzer_result"
	nsDiscover = "discover_result"
	nsReport   = "report_result"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	idGen := uuidgen.New()

	chat, err := llm.New(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}, llm.StaticToken(cfg.LLM.APIKey), logger.Named("llm"))
	if err != nil {
		return fmt.Errorf("create chat client: %w", err)
	}

	searcher, err := search.New(search.Config{
		BaseURL: cfg.Search.BaseURL,
		APIKey:  cfg.Search.APIKey,
		Timeout: time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	}, logger.Named("search"))
	if err != nil {
		return fmt.Errorf("create search client: %w", err)
	}

	capability, err := browser.New(browser.Config{
		UserAgent:    cfg.Browser.UserAgent,
		NavTimeout:   time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		MaxParallel:  cfg.Browser.MaxParallel,
		DomainQPS:    cfg.Browser.DomainQPS,
		MinHTMLBytes: cfg.Browser.MinHTMLBytes,
		JSKeywords:   cfg.Browser.JSKeywords,
		MaxTextChars: cfg.Browser.MaxTextChars,
	}, chat, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser capability: %w", err)
	}
	defer func() {
		if closeErr := capability.Close(); closeErr != nil {
			logger.Warn("browser close failed", zap.Error(closeErr))
		}
	}()

	extractor := extraction.NewClient(extraction.Config{
		MaxAttempts: cfg.Extract.MaxAttempts,
		BackoffBase: time.Duration(cfg.Extract.BackoffBaseSeconds) * time.Second,
		BackoffMax:  time.Duration(cfg.Extract.BackoffMaxSeconds) * time.Second,
		Timeout:     time.Duration(cfg.Extract.TimeoutSeconds) * time.Second,
	}, logger.Named("extraction"))

	urlValidator := validator.New(validator.Config{
		Timeout:   cfg.ValidatorTimeout(),
		UserAgent: cfg.Validator.UserAgent,
	}, logger.Named("validator"))

	companyAnalyzer := analyzer.New(urlValidator, capability, extractor,
		cfg.Extract.Concurrency, logger.Named("analyzer"))

	publisher, err := buildPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}

	orchestrator := discovery.New(discovery.Config{
		DefaultListingURLs:  cfg.Discovery.DefaultListingURLs,
		DefaultMaxCompanies: cfg.Discovery.DefaultMaxCompanies,
		Concurrency:         cfg.Discovery.Concurrency,
		Topic:               cfg.PubSub.Topic,
	}, capability, extractor, searcher, companyAnalyzer, publisher, logger.Named("discovery"))

	reporter, err := buildReporter(cfg, chat, logger)
	if err != nil {
		return err
	}

	stores, cleanup, err := buildCacheStores(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	apiServer := api.NewServer(api.Deps{
		Analyzer:      companyAnalyzer,
		Discoverer:    orchestrator,
		Reporter:      reporter,
		Searcher:      searcher,
		Chat:          chat,
		AnalyzeCache:  stores[nsAnalyze],
		DiscoverCache: stores[nsDiscover],
		ReportCache:   stores[nsReport],
		IDGen:         idGen,
	}, api.Config{
		RequestTimeout:      cfg.RequestTimeout(),
		AuthEnabled:         cfg.Auth.Enabled,
		APIKey:              cfg.Auth.APIKey,
		DefaultListingURLs:  cfg.Discovery.DefaultListingURLs,
		DefaultMaxCompanies: cfg.Discovery.DefaultMaxCompanies,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// buildReporter wires the research endpoint client. When no dedicated
// research endpoint is configured, the chat endpoint serves research queries
// too.
func buildReporter(cfg config.Config, chat intel.ChatCompleter, logger *zap.Logger) (*report.Builder, error) {
	research := chat
	if cfg.Research.BaseURL != "" {
		tokens := cfg.Research.Tokens
		if len(tokens) == 0 {
			return nil, fmt.Errorf("research.tokens are required when research.base_url is set")
		}
		selector, err := llm.NewTokenSelector(cfg.Research.TokenStrategy, tokens)
		if err != nil {
			return nil, fmt.Errorf("create research token selector: %w", err)
		}
		client, err := llm.New(llm.Config{
			BaseURL: cfg.Research.BaseURL,
			Model:   cfg.Research.Model,
			Timeout: time.Duration(cfg.Research.TimeoutSeconds) * time.Second,
		}, selector, logger.Named("research"))
		if err != nil {
			return nil, fmt.Errorf("create research client: %w", err)
		}
		research = client
	}
	return report.New(report.Config{
		Model:          cfg.Research.Model,
		FilterKeywords: cfg.Research.FilterKeywords,
	}, research, chat, logger.Named("report")), nil
}

func buildPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (intel.Publisher, error) {
	switch cfg.PubSub.Provider {
	case "none":
		return nil, nil
	case "memory":
		return memorypublisher.New(), nil
	case "pubsub":
		client, err := pubsubv2.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		logger.Info("pubsub publisher ready",
			zap.String("project_id", cfg.PubSub.ProjectID),
			zap.String("topic", cfg.PubSub.Topic))
		return pubsubpublisher.New(client.Publisher(cfg.PubSub.Topic)), nil
	default:
		return nil, fmt.Errorf("unknown pubsub provider %q", cfg.PubSub.Provider)
	}
}

// buildCacheStores creates one store per namespace on the configured
// backend. The returned cleanup releases backend resources.
func buildCacheStores(
	ctx context.Context,
	cfg config.Config,
	clock intel.Clock,
	logger *zap.Logger,
) (map[string]cache.Store, func(), error) {
	namespaces := []string{nsAnalyze, nsDiscover, nsReport}
	stores := make(map[string]cache.Store, len(namespaces))
	cleanup := func() {}

	switch cfg.Cache.Backend {
	case "memory":
		for _, ns := range namespaces {
			stores[ns] = cache.NewDocumentStore(ctx, ns, memorystorage.New(), clock, logger.Named("cache"))
		}
	case "file":
		for _, ns := range namespaces {
			backend, err := localstorage.New(localstorage.Config{BaseDir: cfg.Cache.Dir}, ns)
			if err != nil {
				return nil, nil, fmt.Errorf("create file cache backend: %w", err)
			}
			stores[ns] = cache.NewDocumentStore(ctx, ns, backend, clock, logger.Named("cache"))
		}
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		cleanup = func() { _ = client.Close() }
		for _, ns := range namespaces {
			backend, err := gcsstorage.New(client, gcsstorage.Config{
				Bucket: cfg.Cache.GCSBucket,
				Prefix: cfg.Cache.GCSPrefix,
			}, ns)
			if err != nil {
				return nil, nil, fmt.Errorf("create gcs cache backend: %w", err)
			}
			stores[ns] = cache.NewDocumentStore(ctx, ns, backend, clock, logger.Named("cache"))
		}
	case "postgres":
		closers := make([]*cachepostgres.Store, 0, len(namespaces))
		for _, ns := range namespaces {
			store, err := cachepostgres.NewStore(ctx, cachepostgres.StoreConfig{
				DSN:   cfg.Cache.DSN,
				Table: cfg.Cache.Table,
			}, ns, clock, logger.Named("cache"))
			if err != nil {
				return nil, nil, fmt.Errorf("create postgres cache store: %w", err)
			}
			stores[ns] = store
			closers = append(closers, store)
		}
		cleanup = func() {
			for _, store := range closers {
				store.Close()
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	return stores, cleanup, nil
}
