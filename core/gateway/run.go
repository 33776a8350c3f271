package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jarvault/jarvault/core/auth"
	"github.com/jarvault/jarvault/core/blob"
	"github.com/jarvault/jarvault/core/central"
	"github.com/jarvault/jarvault/core/db"
	"github.com/jarvault/jarvault/core/deploy"
	"github.com/jarvault/jarvault/core/infra/bus"
	"github.com/jarvault/jarvault/core/infra/config"
	"github.com/jarvault/jarvault/core/infra/locks"
	"github.com/jarvault/jarvault/core/infra/logging"
	infraMetrics "github.com/jarvault/jarvault/core/infra/metrics"
	"github.com/jarvault/jarvault/core/search"
	"github.com/jarvault/jarvault/core/staging"
)

// Run wires the deploy pipeline from configuration and serves HTTP
// until the listener fails.
func Run(cfg *config.Config) error {
	var (
		store  db.Store
		tokens auth.TokenSource
		lockSt locks.Store
	)
	if cfg.RedisURL != "" {
		redisStore, err := db.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("metadata store: %w", err)
		}
		defer redisStore.Close()
		tokenSource, err := auth.NewRedisTokenSource(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("token source: %w", err)
		}
		defer tokenSource.Close()
		lockStore, err := locks.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("lock store: %w", err)
		}
		defer lockStore.Close()
		store, tokens, lockSt = redisStore, tokenSource, lockStore
	} else {
		logging.Info("gateway", "no redis configured, using in-memory stores")
		store = db.NewMemoryStore()
		tokens = auth.NewMemoryTokenSource()
	}

	var indexer search.Indexer = search.LogIndexer{}
	if cfg.NatsURL != "" {
		natsBus, err := bus.NewNatsBus(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("bus: %w", err)
		}
		defer natsBus.Close()
		indexer = &search.BusIndexer{Bus: natsBus}
	}

	centralClient := central.NewClient(cfg.CentralURL)
	if cfg.AllowListPath != "" {
		if err := centralClient.LoadAllowList(cfg.AllowListPath); err != nil {
			return err
		}
	}

	repo := blob.NewFSStore(cfg.RepoRoot)
	svc := &deploy.Service{
		DB:        store,
		Blob:      repo,
		Staging:   staging.NewStore(cfg.StagingRoot),
		Validator: &deploy.Validator{DB: store, Central: centralClient},
		Indexer:   indexer,
		Locks:     lockSt,
		Metrics:   infraMetrics.NewDeployProm("jarvault"),
	}
	server := &Server{
		Deploys:  svc,
		Tokens:   tokens,
		Repo:     repo,
		Metrics:  infraMetrics.NewGatewayProm("jarvault"),
		Reporter: LogReporter{},
	}

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", infraMetrics.Handler())
		srv := &http.Server{
			Addr:         cfg.MetricsAddr,
			Handler:      metricsMux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		logging.Info("gateway", "metrics listening", "addr", cfg.MetricsAddr+"/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("gateway", "metrics server error", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logging.Info("gateway", "deploy surface listening", "addr", cfg.HTTPAddr)
	return srv.ListenAndServe()
}
