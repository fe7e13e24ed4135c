// Package api implements app.Runner for the crowdfund client service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/internal/metrics"
	apphttp "github.com/chainsafe/crowdfund-client/pkg/app/http"
	"github.com/chainsafe/crowdfund-client/pkg/auth"
	"github.com/chainsafe/crowdfund-client/pkg/campaign/cache"
	campaignservice "github.com/chainsafe/crowdfund-client/pkg/campaign/service"
	"github.com/chainsafe/crowdfund-client/pkg/config"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum"
	"github.com/chainsafe/crowdfund-client/pkg/ledger"
	"github.com/chainsafe/crowdfund-client/pkg/notification"
	"github.com/chainsafe/crowdfund-client/pkg/orchestrator"
	"github.com/chainsafe/crowdfund-client/pkg/persist"
	"github.com/chainsafe/crowdfund-client/pkg/pgutil"
)

const (
	defaultRequestTimeout = 60 * time.Second
	initialRefreshTimeout = 2 * time.Minute
	readyProbeTimeout     = 3 * time.Second
)

// Server holds cfg to init the crowdfund client service.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new service runner.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// headReader is what the readiness probe needs from the chain client
type headReader interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
}

// routes bundles the handlers mounted by newRouter
type routes struct {
	chain     headReader
	ledger    *ledger.Ledger
	center    *notification.Center
	campaigns campaignservice.Service
	guard     func(http.Handler) http.Handler
	metrics   bool
	timeout   time.Duration
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("service config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting crowdfund client",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("persistence", cfg.Persistence.Driver),
	)

	chain, err := ethereum.NewClient(&cfg.Ethereum, logger.Named("ethereum"))
	if err != nil {
		return fmt.Errorf("create chain client: %w", err)
	}
	defer chain.Close()
	logger.Info("Connected to chain",
		zap.Int64("chain_id", cfg.Ethereum.ChainID),
		zap.String("factory", chain.FactoryAddress().Hex()),
		zap.String("wallet", chain.Address().Hex()))

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	campaignCache := cache.New(cfg.Cache.MaxEntries, logger.Named("cache"))
	if err := campaignCache.Restore(ctx, store); err != nil {
		logger.Warn("Failed to restore campaign cache, starting empty", zap.Error(err))
	}

	center := notification.NewCenter(notification.Config{Expiry: cfg.Notifications.Expiry}, logger.Named("notifications"))
	defer center.Close()
	if err := center.Restore(ctx, store); err != nil {
		logger.Warn("Failed to restore notifications, starting empty", zap.Error(err))
	}

	txLedger := ledger.New(ledger.Config{
		Retention:     cfg.Ledger.Retention,
		PruneInterval: cfg.Ledger.PruneInterval,
	}, logger.Named("ledger"))

	refresher := campaignservice.NewRefresher(chain, campaignCache, campaignservice.RefreshConfig{
		FirstCampaignID: cfg.Ethereum.FirstCampaignID,
		Concurrency:     cfg.Ethereum.ReadConcurrency,
		RetryMaxElapsed: cfg.Ethereum.ReadRetryMaxElapsed,
	}, logger.Named("refresher"))

	orch := orchestrator.New(chain, txLedger, center, refresher, logger.Named("orchestrator"))

	campaigns := campaignservice.NewLog(
		campaignservice.NewService(chain, refresher, campaignCache, orch, txLedger, chain.Address()),
		logger,
	)

	s.runInitialRefresh(ctx, campaigns, logger)

	// Background work runs until the HTTP server has stopped.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	cursor := s.startBackground(bgCtx, chain, store, txLedger, refresher, logger)

	router := newRouter(&routes{
		chain:     chain,
		ledger:    txLedger,
		center:    center,
		campaigns: campaigns,
		guard:     s.writeGuard(logger),
		metrics:   cfg.Monitoring.Enabled,
		timeout:   cfg.Server.RequestTimeout,
	}, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	s.shutdown(orch, cancelBg, campaignCache, center, store, cursor, logger)
	return err
}

// openStore selects the snapshot store for the configured persistence driver
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persist.Store, error) {
	switch cfg.Persistence.Driver {
	case config.PersistencePostgres:
		db, err := pgutil.ConnectDB(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		logger.Info("Connected to database",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
		return persist.NewPGStore(db, logger.Named("persist")), nil
	case config.PersistenceFile:
		store, err := persist.NewFileStore(cfg.Persistence.Dir, logger.Named("persist"))
		if err != nil {
			return nil, err
		}
		logger.Info("Using file persistence", zap.String("dir", cfg.Persistence.Dir))
		return store, nil
	default:
		logger.Info("Persistence disabled, state is session scoped")
		return persist.NewNop(), nil
	}
}

func (s *Server) writeGuard(logger *zap.Logger) func(http.Handler) http.Handler {
	if s.cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty, write routes are unauthenticated")
		return auth.Middleware(nil, logger)
	}
	return auth.Middleware(auth.NewTokenValidator(s.cfg.Auth.JWTSecret, s.cfg.Auth.JWTIssuer), logger.Named("auth"))
}

func (s *Server) runInitialRefresh(ctx context.Context, campaigns campaignservice.Service, logger *zap.Logger) {
	refreshCtx, cancel := context.WithTimeout(ctx, initialRefreshTimeout)
	defer cancel()

	if _, err := campaigns.RefreshAll(refreshCtx); err != nil {
		logger.Warn("Initial campaign refresh failed (serving restored cache, will retry periodically)", zap.Error(err))
	}
}

// startBackground launches the ledger pruner, the periodic refresh and the
// CampaignCreated watcher. It returns the watcher cursor, updated as ranges
// are scanned.
func (s *Server) startBackground(
	ctx context.Context,
	chain *ethereum.Client,
	store persist.CursorStore,
	txLedger *ledger.Ledger,
	refresher *campaignservice.Refresher,
	logger *zap.Logger,
) *atomic.Uint64 {
	cfg := s.cfg
	go txLedger.Run(ctx)

	if cfg.Cache.RefreshInterval > 0 {
		logger.Info("Starting periodic campaign refresh", zap.Duration("interval", cfg.Cache.RefreshInterval))
		go refresher.Run(ctx, cfg.Cache.RefreshInterval)
	}

	cursor := new(atomic.Uint64)
	from, err := s.watchStart(ctx, chain, store)
	if err != nil {
		logger.Error("Cannot determine watcher start block, CampaignCreated watcher disabled", zap.Error(err))
		return nil
	}
	cursor.Store(from)

	go func() {
		scanned := func(block uint64) {
			cursor.Store(block)
			metrics.LastRefreshBlock.Set(float64(block))
		}
		err := chain.WatchCampaignCreated(ctx, from, refresher.OnCampaignCreated(ctx), scanned)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("CampaignCreated watcher stopped", zap.Error(err))
		}
	}()
	return cursor
}

// watchStart resumes from the persisted cursor, else from ethereum.start_block,
// else from the current head.
func (s *Server) watchStart(ctx context.Context, chain headReader, store persist.CursorStore) (uint64, error) {
	block, err := store.LoadCursor(ctx, s.cfg.Ethereum.ChainID)
	if err == nil {
		return block, nil
	}
	if !errors.Is(err, persist.ErrNoCursor) {
		return 0, err
	}
	if s.cfg.Ethereum.StartBlock > 0 {
		return uint64(s.cfg.Ethereum.StartBlock - 1), nil
	}
	return chain.GetLatestBlockNumber(ctx)
}

// shutdown stops background work, waits for in-flight confirmations and
// snapshots state. Every step runs even if an earlier one fails.
func (s *Server) shutdown(
	orch *orchestrator.Orchestrator,
	cancelBg context.CancelFunc,
	campaignCache *cache.Cache,
	center *notification.Center,
	store persist.Store,
	cursor *atomic.Uint64,
	logger *zap.Logger,
) {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	orch.Close(ctx)
	cancelBg()

	var wg sync.WaitGroup
	persistStep := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error("Failed to persist state", zap.String("component", name), zap.Error(err))
			}
		}()
	}

	persistStep("cache", func(ctx context.Context) error { return campaignCache.Persist(ctx, store) })
	persistStep("notifications", func(ctx context.Context) error { return center.Persist(ctx, store) })
	if cursor != nil {
		persistStep("watcher", func(ctx context.Context) error {
			return store.SaveCursor(ctx, s.cfg.Ethereum.ChainID, cursor.Load())
		})
	}
	wg.Wait()

	logger.Info("Crowdfund client stopped")
}

func newRouter(rt *routes, logger *zap.Logger) chi.Router {
	timeout := rt.timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apphttp.RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()
		if _, err := rt.chain.GetLatestBlockNumber(ctx); err != nil {
			logger.Warn("Readiness probe failed", zap.Error(err))
			http.Error(w, "chain unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if rt.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	guard := rt.guard
	if guard == nil {
		guard = auth.Middleware(nil, logger)
	}

	r.Route("/api/v1", func(r chi.Router) {
		ledger.RegisterRoutes(r, rt.ledger, logger.Named("ledger"), guard)
		notification.RegisterRoutes(r, rt.center, logger.Named("notifications"), guard)
		campaignservice.RegisterRoutes(r, rt.campaigns, logger.Named("campaigns"), guard)
	})

	return r
}
