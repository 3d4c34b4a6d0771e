package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasjamais/bitget-agent-sub001/config"
	"github.com/thomasjamais/bitget-agent-sub001/internal/ai"
	"github.com/thomasjamais/bitget-agent-sub001/internal/api"
	"github.com/thomasjamais/bitget-agent-sub001/internal/auth"
	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/cache"
	"github.com/thomasjamais/bitget-agent-sub001/internal/database"
	"github.com/thomasjamais/bitget-agent-sub001/internal/events"
	"github.com/thomasjamais/bitget-agent-sub001/internal/logging"
	"github.com/thomasjamais/bitget-agent-sub001/internal/opportunity"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/portfolio"
	"github.com/thomasjamais/bitget-agent-sub001/internal/risk"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
	"github.com/thomasjamais/bitget-agent-sub001/internal/trading"
	"github.com/thomasjamais/bitget-agent-sub001/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	eventBus := events.NewEventBus()

	// Vault holds the exchange credentials; environment values seed the
	// cache so a disabled vault still works.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Error("Vault client init failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.BitgetConfig.APIKey != "" {
		if err := vaultClient.StoreCredentials(ctx, vault.Credentials{
			APIKey:     cfg.BitgetConfig.APIKey,
			SecretKey:  cfg.BitgetConfig.SecretKey,
			Passphrase: cfg.BitgetConfig.Passphrase,
			Exchange:   "bitget",
			IsTestnet:  cfg.BitgetConfig.TestNet,
		}); err != nil {
			logger.Warn("Failed to store credentials", "error", err)
		}
	}

	var client bitget.Client
	if cfg.BitgetConfig.MockMode {
		logger.Warn("Mock mode enabled, no live orders will be placed")
		client = bitget.NewMockClient()
	} else {
		creds, err := vaultClient.GetCredentials(ctx, "bitget", cfg.BitgetConfig.TestNet)
		if err != nil {
			logger.Error("No exchange credentials available", "error", err)
			os.Exit(1)
		}
		restClient := bitget.NewRESTClient(creds.APIKey, creds.SecretKey, creds.Passphrase, cfg.BitgetConfig.BaseURL)

		// Public candle stream keeps the market-data cache warm so REST
		// candle reads stay off the rate limiter.
		stream := bitget.NewStream(cfg.BitgetConfig.WSURL, restClient.Cache(), cfg.TradingConfig.Timeframe)
		for _, symbol := range cfg.TradingConfig.Symbols {
			stream.Subscribe(symbol)
		}
		if err := stream.Start(); err != nil {
			logger.Warn("Market data stream failed to start", "error", err)
		} else {
			defer stream.Stop()
		}

		client = restClient
	}

	// Redis carries intent sequences, trade locks and balance snapshots
	var cacheSvc *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheSvc, err = cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("Redis unavailable, continuing without cache", "error", err)
			cacheSvc = nil
		} else {
			defer cacheSvc.Close()
		}
	}

	var repo *database.Repository
	var tracker *orders.TradeTracker
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		})
		if err != nil {
			logger.Error("Database connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			logger.Error("Database migrations failed", "error", err)
			os.Exit(1)
		}

		repo = database.NewRepository(db, zlog)
		tracker = orders.NewTradeTracker(repo, zlog)
		if err := tracker.LoadOpenTrades(ctx); err != nil {
			logger.Warn("Failed to load open trades", "error", err)
		}
	}

	var idGen *orders.IntentIDGenerator
	if cacheSvc != nil {
		idGen, err = orders.NewIntentIDGenerator(cacheSvc, cfg.TradingConfig.StrategyCode, time.UTC, zlog)
		if err != nil {
			logger.Error("Intent ID generator init failed", "error", err)
			os.Exit(1)
		}
	}

	var generator strategy.Generator
	switch cfg.TradingConfig.Strategy {
	case "reversion":
		generator = strategy.NewReversionGenerator(nil)
	default:
		generator = strategy.NewMomentumGenerator(nil)
	}

	evaluator := opportunity.NewEvaluator(&opportunity.Config{
		MinConfidence:       cfg.OpportunityConfig.MinConfidence,
		MinExpectedReturn:   cfg.OpportunityConfig.MinExpectedReturn,
		MaxExpectedReturn:   cfg.OpportunityConfig.MaxExpectedReturn,
		BaseReturnPerPoint:  cfg.OpportunityConfig.BaseReturnPerPoint,
		VolatilityAmplifier: cfg.OpportunityConfig.VolatilityAmplifier,
		Leverage:            cfg.TradingConfig.Leverage,
		MaxLeverage:         cfg.OpportunityConfig.MaxLeverage,
		SuccessRateWindow:   cfg.OpportunityConfig.SuccessRateWindow,
	})
	if cfg.OpportunityConfig.MinConfidence == 0 {
		evaluator = opportunity.NewEvaluator(opportunity.DefaultConfig())
	}

	riskMgr := risk.NewManager(risk.Limits{
		MaxEquityRisk:        cfg.RiskConfig.MaxEquityRisk,
		MaxDailyLoss:         cfg.RiskConfig.MaxDailyLoss,
		MaxConsecutiveLosses: cfg.RiskConfig.MaxConsecutiveLosses,
	})

	var confirmer *ai.Confirmer
	if cfg.TradingConfig.AIEnabled && cfg.AIConfig.Enabled {
		// The confirmation gate regenerates signals on demand, so it gets a
		// generator that can fetch its own candles.
		regen := strategy.NewClientGenerator(client, generator, 100)
		confirmer = ai.NewConfirmer(regen, cfg.TradingConfig.Timeframe, logger)
		if err := confirmer.SetWeights(cfg.AIConfig.AIWeight, cfg.AIConfig.HumanWeight); err != nil {
			logger.Warn("Invalid AI weights, keeping defaults", "error", err)
		}
	}

	balancerConfig := portfolio.DefaultConfig()
	if len(cfg.PortfolioConfig.TargetAllocations) > 0 {
		balancerConfig = &portfolio.Config{
			TargetAllocations:  cfg.PortfolioConfig.TargetAllocations,
			RebalanceThreshold: cfg.PortfolioConfig.RebalanceThreshold,
			MinTradeAmount:     cfg.PortfolioConfig.MinTradeAmount,
			MaxTradeAmount:     cfg.PortfolioConfig.MaxTradeAmount,
			RebalanceInterval:  cfg.PortfolioConfig.RebalanceInterval,
		}
	}
	balancer := portfolio.NewBalancer(balancerConfig)

	manager, err := trading.NewManager(&trading.Config{
		MaxRiskPerTrade: cfg.TradingConfig.MaxRiskPerTrade,
		Leverage:        cfg.TradingConfig.Leverage,
		StopLossPercent: cfg.TradingConfig.StopLossPercent,
		MinEquity:       cfg.TradingConfig.MinEquity,
		AIEnabled:       cfg.TradingConfig.AIEnabled,
		BalanceTTL:      cfg.TradingConfig.BalanceTTL,
	}, trading.Deps{
		Client:    client,
		RiskMgr:   riskMgr,
		Evaluator: evaluator,
		Confirmer: confirmer,
		IDGen:     idGen,
		Tracker:   tracker,
		CacheSvc:  cacheSvc,
		Bus:       eventBus,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Trading manager init failed", "error", err)
		os.Exit(1)
	}

	var authDeps *api.AuthDeps
	if cfg.AuthConfig.Enabled {
		if cfg.AuthConfig.JWTSecret == "" || cfg.AuthConfig.PasswordHash == "" {
			logger.Error("Auth enabled but JWT secret or password hash missing")
			os.Exit(1)
		}
		authDeps = &api.AuthDeps{
			JWTManager:   auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration),
			Passwords:    auth.NewPasswordManager(cfg.AuthConfig.BcryptCost),
			OperatorName: cfg.AuthConfig.OperatorName,
			PasswordHash: cfg.AuthConfig.PasswordHash,
		}
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: !cfg.BitgetConfig.MockMode,
	}, api.Deps{
		Manager:   manager,
		RiskMgr:   riskMgr,
		Evaluator: evaluator,
		Balancer:  balancer,
		Repo:      repo,
		CacheSvc:  cacheSvc,
		VaultCli:  vaultClient,
		EventBus:  eventBus,
		Logger:    logger,
		Auth:      authDeps,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	eventBus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{
		"symbols":   cfg.TradingConfig.Symbols,
		"timeframe": cfg.TradingConfig.Timeframe,
		"mock_mode": cfg.BitgetConfig.MockMode,
	}})
	logger.Info("Engine started",
		"symbols", len(cfg.TradingConfig.Symbols),
		"timeframe", cfg.TradingConfig.Timeframe,
		"mock_mode", cfg.BitgetConfig.MockMode)

	go signalLoop(ctx, cfg, client, generator, manager, logger)
	go rebalanceLoop(ctx, cfg, client, balancer, repo, eventBus, logger)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	eventBus.Publish(events.Event{Type: events.EventEngineStopped, Data: map[string]interface{}{}})

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Engine stopped")
}

// signalLoop polls candles per symbol and feeds each fresh bar through the
// trading pipeline
func signalLoop(ctx context.Context, cfg *config.Config, client bitget.Client,
	generator strategy.Generator, manager *trading.Manager, logger *logging.Logger) {

	logger = logger.WithComponent("signal-loop")
	ticker := time.NewTicker(cfg.TradingConfig.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, symbol := range cfg.TradingConfig.Symbols {
			candles, err := client.GetCandles(symbol, cfg.TradingConfig.Timeframe, 100)
			if err != nil {
				logger.Warn("Candle fetch failed", "symbol", symbol, "error", err)
				continue
			}
			if len(candles) == 0 {
				continue
			}
			bar := candles[len(candles)-1]

			signal, err := generator.Generate(candles, symbol, cfg.TradingConfig.Timeframe)
			if err != nil {
				logger.Warn("Signal generation failed", "symbol", symbol, "error", err)
				continue
			}

			result := manager.ProcessSignal(ctx, symbol, signal, bar)
			if result.Executed {
				logger.Info("Trade executed",
					"symbol", symbol,
					"intent_id", result.IntentID,
					"confidence", result.Confidence)
			} else if result.Stage != "" {
				logger.Debug("Signal not executed",
					"symbol", symbol,
					"stage", result.Stage,
					"reason", result.Reason)
			}
		}
	}
}

// rebalanceLoop periodically refreshes the portfolio book and emits drift
// corrections as events and history rows. Corrections are advisory; the
// external executor acts on them.
func rebalanceLoop(ctx context.Context, cfg *config.Config, client bitget.Client,
	balancer *portfolio.Balancer, repo *database.Repository,
	bus *events.EventBus, logger *logging.Logger) {

	logger = logger.WithComponent("rebalance-loop")
	interval := cfg.PortfolioConfig.RebalanceInterval
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	// Poll more often than the rebalance interval; the balancer enforces
	// its own time gate.
	ticker := time.NewTicker(interval / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		balance, err := client.GetAccountBalance()
		if err != nil {
			logger.Warn("Balance fetch failed", "error", err)
			continue
		}

		positions, err := client.GetPositions("")
		if err != nil {
			logger.Warn("Position fetch failed", "error", err)
			continue
		}

		prices := make(map[string]float64, len(positions))
		for _, p := range positions {
			prices[p.Symbol] = p.MarkPrice
		}
		balancer.UpdatePositions(positions, prices)

		actions := balancer.EvaluateRebalancing(balance.Equity)
		if len(actions) == 0 {
			continue
		}
		actions = balancer.CalculateTradeSizes(actions, prices)

		logger.Info("Rebalance evaluated", "actions", len(actions))
		for _, action := range actions {
			if bus != nil {
				bus.PublishRebalanceAction(action.Symbol, action.Action, action.Amount, action.Priority)
			}
			if repo != nil {
				if err := repo.RecordRebalanceAction(ctx, action); err != nil {
					logger.Warn("Failed to persist rebalance action", "symbol", action.Symbol, "error", err)
				}
			}
		}
	}
}
