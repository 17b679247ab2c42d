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

	"clarity-storefront/config"
	"clarity-storefront/internal/adapter/attestation"
	"clarity-storefront/internal/adapter/chain"
	httpHandler "clarity-storefront/internal/adapter/http/handler"
	"clarity-storefront/internal/adapter/metrics"
	pgStorage "clarity-storefront/internal/adapter/storage/postgres"
	redisStorage "clarity-storefront/internal/adapter/storage/redis"
	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/internal/service"
	"clarity-storefront/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CLR_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Uint64("chain_id", cfg.Chain.ChainID).
		Msg("Starting Clarity storefront")

	if cfg.Session.Secret == "" {
		log.Fatal().Msg("session.secret is required")
	}
	if !common.IsHexAddress(cfg.Chain.MerchantAddress) {
		log.Fatal().Str("merchant", cfg.Chain.MerchantAddress).Msg("chain.merchant_address must be an address")
	}
	if !common.IsHexAddress(cfg.Chain.PurchaseContractAddress) {
		log.Fatal().Str("contract", cfg.Chain.PurchaseContractAddress).Msg("chain.purchase_contract_address must be an address")
	}
	if err := cfg.Checkout.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid checkout timeouts")
	}
	pointsPerUSD, err := decimal.NewFromString(cfg.Loyalty.PointsPerUSD)
	if err != nil {
		log.Fatal().Err(err).Msg("loyalty.points_per_usd must be a decimal")
	}
	merchant := common.HexToAddress(cfg.Chain.MerchantAddress).Hex()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL: schema first, then the pool.
	if err := pgStorage.Migrate(cfg.Database, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate PostgreSQL")
	}
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	rpc, err := chain.Dial(ctx, cfg.Chain.RPCURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to the RPC endpoint")
	}
	defer rpc.Close()

	// Without a configured key the storefront still quotes and reads
	// attestations, but every payment fails with WALLET_001.
	var wallet ports.WalletSigner
	if cfg.Chain.WalletPrivateKey != "" {
		signer, err := chain.NewKeySigner(cfg.Chain.WalletPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid wallet key")
		}
		wallet = signer
		log.Info().Str("buyer", signer.Address().Hex()).Msg("Wallet loaded")
	} else {
		log.Warn().Msg("No wallet key configured, checkout is disabled")
	}

	prom := metrics.NewPrometheus("clarity")

	// Adapters
	cartStore := redisStorage.NewCartStore(rdb, cfg.Session.Expiry)
	checkoutGuard := redisStorage.NewCheckoutGuard(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	checkoutRepo := pgStorage.NewCheckoutRepo(pool)
	oracle := chain.NewChainlinkOracle(rpc, common.HexToAddress(cfg.Chain.PriceFeedAddress))
	contract := chain.NewPurchaseContract(rpc, common.HexToAddress(cfg.Chain.PurchaseContractAddress),
		cfg.Chain.ChainID, cfg.Checkout.ReceiptPollInterval, log)
	network := attestation.NewClient(cfg.Attestation.BaseURL, cfg.Attestation.Timeout, nil, log)

	// Services
	tokenSvc := service.NewJWTTokenService(cfg.Session.Secret, cfg.Session.Expiry, cfg.Session.Issuer)
	cartSvc := service.NewCartService(cartStore, log)
	priceSvc := service.NewPriceService(oracle, rpc, cfg.Chain.ChainID, cfg.Checkout.OracleTimeout, prom, log)
	paymentSvc := service.NewPaymentService(wallet, contract, rpc, cfg.Chain.ChainID, cfg.Checkout.ReceiptTimeout, log)
	chainSvc := service.NewChainDataService(rpc, log)
	attestationSvc := service.NewAttestationService(network, attestation.NewABICodec(),
		cfg.Attestation.SchemaID, cfg.Attestation.IndexMode, merchant, wallet, log)
	loyaltySvc := service.NewLoyaltyService(attestationSvc, cfg.Loyalty.CoalitionName, cfg.Attestation.SchemaID,
		coalitionMerchants(cfg.Loyalty.Merchants))
	checkoutSvc := service.NewCheckoutService(service.CheckoutDeps{
		Carts:        cartSvc,
		Prices:       priceSvc,
		Payments:     paymentSvc,
		Chain:        chainSvc,
		Attestations: attestationSvc,
		Checkouts:    checkoutRepo,
		Guard:        checkoutGuard,
		Metrics:      prom,
	}, merchant, pointsPerUSD, service.CheckoutTimeouts{
		GuardTTL: cfg.Checkout.GuardTTL,
		Run:      cfg.Checkout.RunTimeout,
		Step:     cfg.Checkout.StepTimeout,
	}, log)

	go service.NewPriceTicker(priceSvc, cfg.Checkout.PriceRefreshInterval, log).Run(ctx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Tokens:       tokenSvc,
		Carts:        cartSvc,
		Prices:       priceSvc,
		Checkout:     checkoutSvc,
		Chain:        chainSvc,
		Attestations: attestationSvc,
		Loyalty:      loyaltySvc,
		RateLimiter:  rateLimitStore,
		Metrics:      prom,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
			chain.NewHealthCheck(rpc),
		},
		Mode:   cfg.Server.Mode,
		Logger: log,
	})

	// A checkout responds only after its post-payment steps, which end well inside the guard TTL.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Checkout.GuardTTL + time.Minute,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func coalitionMerchants(cfgs []config.MerchantConfig) []domain.CoalitionMerchant {
	out := make([]domain.CoalitionMerchant, 0, len(cfgs))
	for _, m := range cfgs {
		out = append(out, domain.CoalitionMerchant{ID: m.ID, Name: m.Name, Address: m.Address})
	}
	return out
}
