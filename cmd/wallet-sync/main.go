package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyphera/cyphera-wallet/internal/bridge"
	"github.com/cyphera/cyphera-wallet/internal/client/alchemy"
	awsclient "github.com/cyphera/cyphera-wallet/internal/client/aws"
	"github.com/cyphera/cyphera-wallet/internal/client/coingecko"
	"github.com/cyphera/cyphera-wallet/internal/client/coinmarketcap"
	"github.com/cyphera/cyphera-wallet/internal/coalescer"
	"github.com/cyphera/cyphera-wallet/internal/config"
	"github.com/cyphera/cyphera-wallet/internal/constants"
	"github.com/cyphera/cyphera-wallet/internal/helpers"
	"github.com/cyphera/cyphera-wallet/internal/history"
	"github.com/cyphera/cyphera-wallet/internal/kvstore"
	"github.com/cyphera/cyphera-wallet/internal/kvstore/pg"
	"github.com/cyphera/cyphera-wallet/internal/kvstore/sqlite"
	"github.com/cyphera/cyphera-wallet/internal/logger"
	"github.com/cyphera/cyphera-wallet/internal/network"
	"github.com/cyphera/cyphera-wallet/internal/query"
	"github.com/cyphera/cyphera-wallet/internal/server"
	"github.com/cyphera/cyphera-wallet/internal/services"
	"github.com/cyphera/cyphera-wallet/internal/state"
	"github.com/cyphera/cyphera-wallet/internal/storagesync"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const flushTimeout = 5 * time.Second

type secrets struct {
	alchemyAPIKey string
	storageKey    string
	databaseURL   string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.InitLogger(cfg.Stage)
	logger.SetLevel(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if helpers.IsDeployed(cfg.Stage) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("wallet-sync stopped", zap.Error(err))
	}
	logger.Info("wallet-sync exiting")
}

func run(ctx context.Context, cfg config.Config) error {
	sec, err := loadSecrets(ctx, cfg)
	if err != nil {
		return err
	}

	reg, err := network.LoadRegistry()
	if err != nil {
		return fmt.Errorf("load chain registry: %w", err)
	}

	base, closeStore, err := openStore(ctx, cfg.StorageDriver, cfg.StoragePath, sec.databaseURL)
	if err != nil {
		return err
	}
	defer closeStore()

	var store kvstore.Store = base
	if sec.storageKey != "" {
		enc, err := kvstore.NewEncryptedStore(base, sec.storageKey)
		if err != nil {
			return fmt.Errorf("enable storage encryption: %w", err)
		}
		store = enc
	}
	observable := kvstore.NewObservableStore(store)

	writer := coalescer.New(observable, coalescer.Config{
		Debounce:     cfg.WriteDebounce,
		RetryDelay:   cfg.WriteRetryDelay,
		BatchPause:   cfg.WriteBatchPause,
		MaxBatchSize: cfg.WriteBatchSize,
	})
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := writer.Close(flushCtx); err != nil {
			logger.Error("Failed to flush pending writes", zap.Error(err), zap.Strings("pending", writer.Pending()))
		}
	}()

	defaultType := network.TypeMainnet
	if !cfg.AllowMainnet {
		defaultType = network.TypeTestnet
	}
	st := state.NewStore(state.Defaults(reg, defaultType))

	syncer := storagesync.New(observable, writer, st, reg, storagesync.Config{
		AllowMainnet:        cfg.AllowMainnet,
		ImmediateLockWrites: cfg.ImmediateLockWrites,
	})
	syncer.Hydrate(ctx)
	syncer.Start()
	defer syncer.Stop()
	syncer.Watch(observable)

	if cfg.BridgeURL != "" {
		d := bridge.NewDispatcher(st, syncer, nil)
		bc := bridge.NewClient(bridge.DefaultConfig(cfg.BridgeURL), d)
		bc.Watch(st)
		bc.Start(ctx)
		defer bc.Stop()
	} else {
		logger.Info("BRIDGE_URL not set, running without a background bridge")
	}

	retry := query.DefaultRetryPolicy()

	sources := []services.PriceSource{coingecko.NewClient(cfg.CoinGeckoBaseURL)}
	if cfg.CMCAPIKey != "" {
		sources = append(sources, coinmarketcap.NewClient(cfg.CMCAPIKey, ""))
	}
	prices := services.NewPriceService(services.PriceConfig{
		StaleTime:       cfg.PriceStaleTime,
		RefetchInterval: cfg.PriceRefetchInterval,
		Retry:           retry,
	}, sources...)
	go prices.Run(ctx)

	balances := services.NewBalanceService(services.DialEthClient, prices, retry, history.DefaultStaleTime)
	unwatchBalances := balances.Watch(st)
	defer unwatchBalances()
	defer balances.Close()

	deps := server.Deps{
		State:    st,
		Registry: reg,
		Balances: balances,
		Prices:   prices,
	}

	if sec.alchemyAPIKey != "" {
		burst := int(math.Ceil(cfg.AlchemyRateLimit))
		alc := alchemy.NewClient(sec.alchemyAPIKey, reg, alchemy.WithRateLimit(cfg.AlchemyRateLimit, burst))

		deps.Tokens = services.NewTokenService(alc, prices, retry)

		agg := history.NewAggregator(alc, st)
		agg.Start()
		defer agg.Stop()
		go agg.Poll(ctx, history.DefaultStaleTime)
		deps.History = agg
	} else {
		logger.Warn("ALCHEMY_API_KEY not set, token and history endpoints are disabled")
	}

	srv := server.New(server.Config{
		Addr:         ":" + cfg.APIPort,
		AllowMainnet: cfg.AllowMainnet,
		CORS:         server.CORSConfig{AllowOrigins: cfg.CORSAllowedOrigins},
	}, deps)
	return srv.Run(ctx)
}

// loadSecrets reads API keys from Secrets Manager on deployed stages and from
// the environment otherwise.
func loadSecrets(ctx context.Context, cfg config.Config) (secrets, error) {
	if !helpers.IsDeployed(cfg.Stage) {
		return secrets{alchemyAPIKey: cfg.AlchemyAPIKey, storageKey: cfg.StorageKey, databaseURL: cfg.DatabaseURL}, nil
	}

	sm, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		return secrets{}, fmt.Errorf("create secrets manager client: %w", err)
	}
	alchemyKey, err := sm.GetSecretString(ctx, "ALCHEMY_API_KEY_ARN", "ALCHEMY_API_KEY")
	if err != nil {
		logger.Warn("Alchemy API key unavailable", zap.Error(err))
		alchemyKey = ""
	}
	storageKey, err := sm.GetSecretString(ctx, "STORAGE_KEY_ARN", "STORAGE_KEY")
	if err != nil {
		logger.Warn("Storage key unavailable, persisting without encryption", zap.Error(err))
		storageKey = ""
	}
	sec := secrets{alchemyAPIKey: alchemyKey, storageKey: storageKey}
	if cfg.StorageDriver == constants.StorageDriverPostgres {
		if sec.databaseURL, err = sm.GetSecretString(ctx, "DATABASE_URL_ARN", "DATABASE_URL"); err != nil {
			return secrets{}, fmt.Errorf("load database url: %w", err)
		}
	}
	return sec, nil
}

func openStore(ctx context.Context, driver, path, databaseURL string) (kvstore.Store, func(), error) {
	switch driver {
	case constants.StorageDriverMemory:
		logger.Warn("Using in-memory storage, preferences will not survive a restart")
		return kvstore.NewMemoryStore(), func() {}, nil
	case constants.StorageDriverPostgres:
		s, err := pg.Connect(ctx, databaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres store: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("prepare postgres store: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("Failed to close sqlite store", zap.Error(err))
			}
		}, nil
	}
}
