package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/0xhector27/ribbon-v1/internal/adapter"
	"github.com/0xhector27/ribbon-v1/internal/config"
	"github.com/0xhector27/ribbon-v1/internal/factory"
	"github.com/0xhector27/ribbon-v1/internal/instrument"
	"github.com/0xhector27/ribbon-v1/internal/logger"
	"github.com/0xhector27/ribbon-v1/internal/manager"
	"github.com/0xhector27/ribbon-v1/internal/oracle"
	"github.com/0xhector27/ribbon-v1/internal/state"
	"github.com/0xhector27/ribbon-v1/internal/swap"
	"github.com/0xhector27/ribbon-v1/internal/token"
	"github.com/0xhector27/ribbon-v1/internal/types"
	"github.com/0xhector27/ribbon-v1/internal/vault"
	"github.com/0xhector27/ribbon-v1/internal/venue"
	"github.com/0xhector27/ribbon-v1/internal/web"
)

const (
	LOOP_INTERVAL = 10 * time.Minute

	VAULT_NAME      = "ETH-THETA"
	INSTRUMENT_NAME = "ETH-STRADDLE"
)

// main is the entry point for the rotation vault manager.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Rotation Vault Manager starting...")

	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Token Universe ---
	native := token.NewLedger("ETH", 18)
	weth := token.NewWrappedNative(native)
	usdc := token.NewLedger("USDC", 6)
	yweth := token.NewMemYieldWrapper("yWETH", 18, weth)

	tokens := venue.NewTokenRegistry(weth.Ledger, usdc, yweth.Ledger, native)

	// --- 3. Price Oracle ---
	var px oracle.PriceOracle
	if config.FeedBaseURL != "" {
		px = oracle.NewFeedOracle(config.FeedBaseURL, map[common.Address]string{
			weth.Address():  "ETH",
			usdc.Address():  "USDC",
			yweth.Address(): "ETH",
		}, 30*time.Second)
		log.Info().Str("url", config.FeedBaseURL).Msg("Using HTTP price feed oracle")
	} else {
		static := oracle.NewStaticOracle(24 * time.Hour)
		mustSetPrice(static, weth.Address(), sdkmath.NewIntWithDecimal(2500, 18))
		mustSetPrice(static, usdc.Address(), sdkmath.NewIntWithDecimal(1, 18))
		mustSetPrice(static, yweth.Address(), sdkmath.NewIntWithDecimal(2500, 18))
		px = static
		log.Warn().Msg("RVM_FEED_URL not set, using static oracle prices")
	}

	// --- 4. Venues, Settlement and Adapters ---
	iv := sdkmath.NewIntWithDecimal(8, 17) // 80% implied volatility

	hegicMarket := venue.NewMemHegic(tokens, px, iv, weth.Address())
	gammaProto := venue.NewMemGamma(tokens, px, iv)

	settlement := swap.NewMemSwap(tokens)
	converter := swap.NewMemConverter(tokens, px, settlement)

	hegicAdapter, err := adapter.NewHegicAdapter(hegicMarket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create hegic adapter")
	}
	gammaAdapter, err := adapter.NewGammaAdapter(gammaProto, px, converter, tokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gamma adapter")
	}

	// --- 5. Factory, Instrument and Vault ---
	fac, err := factory.NewFactory(config.OwnerAddress)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create factory")
	}
	if err := fac.SetAdapter(config.OwnerAddress, hegicAdapter.ProtocolName(), hegicAdapter); err != nil {
		log.Fatal().Err(err).Msg("Failed to register hegic adapter")
	}
	if err := fac.SetAdapter(config.OwnerAddress, gammaAdapter.ProtocolName(), gammaAdapter); err != nil {
		log.Fatal().Err(err).Msg("Failed to register gamma adapter")
	}

	if _, err := fac.NewInstrument(config.OwnerAddress, instrument.Config{
		Name:            INSTRUMENT_NAME,
		Symbol:          "ETH-STRD",
		Underlying:      weth.Address(),
		StrikeAsset:     usdc.Address(),
		CollateralAsset: weth.Address(),
		PaymentToken:    weth.Address(),
		Payments:        weth,
		Expiry:          nextFriday(time.Now()),
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to list instrument")
	}

	cap, ok := sdkmath.NewIntFromString(config.VaultCap)
	if !ok {
		log.Fatal().Str("cap", config.VaultCap).Msg("Invalid vault cap")
	}
	fee, err := sdkmath.LegacyNewDecFromStr(config.WithdrawalFee)
	if err != nil {
		log.Fatal().Err(err).Str("fee", config.WithdrawalFee).Msg("Invalid withdrawal fee")
	}

	thetaVault, err := vault.NewThetaVault(vault.Config{
		Name:          VAULT_NAME,
		Asset:         weth,
		WrappedNative: weth,
		Collateral:    yweth,
		Adapter:       gammaAdapter,
		Counterparty:  settlement,
		OptionType:    types.Call,
		StrikeAsset:   usdc.Address(),
		Owner:         config.OwnerAddress,
		Manager:       config.ManagerAddress,
		FeeRecipient:  config.FeeRecipientAddress,
		Cap:           cap,
		WithdrawalFee: fee,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create theta vault")
	}

	// --- 6. Web Server ---
	webServer := web.NewWebServer(config.WebPort, VAULT_NAME, thetaVault, fac)
	go func() {
		log.Info().Str("port", config.WebPort).Msg("Starting web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 7. Rotation Loop ---
	rotationManager, err := manager.NewManager(manager.Config{
		VaultName:    VAULT_NAME,
		Vault:        thetaVault,
		Oracle:       px,
		ManagerAddr:  config.ManagerAddress,
		OptionType:   types.Call,
		Underlying:   weth.Address(),
		StrikeAsset:  usdc.Address(),
		Collateral:   yweth.Address(),
		PaymentToken: weth.Address(),
		Tenor:        7 * 24 * time.Hour,
		StrikeOffset: sdkmath.LegacyNewDecWithPrec(1, 1), // 10% out of the money
		StrikeRound:  sdkmath.NewIntWithDecimal(100, 18), // $100 strike increments
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rotation manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rotationManager.RunLoop(ctx, LOOP_INTERVAL)

	// --- 8. Shutdown Handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received, stopping...")
	cancel()
}

// nextFriday returns the upcoming Friday 08:00 UTC after t.
func nextFriday(t time.Time) time.Time {
	t = t.UTC()
	days := (int(time.Friday) - int(t.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	d := t.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 8, 0, 0, 0, time.UTC)
}

func mustSetPrice(o *oracle.StaticOracle, asset common.Address, price sdkmath.Int) {
	if err := o.SetPrice(asset, price); err != nil {
		log.Fatal().Err(err).Str("asset", asset.Hex()).Msg("Failed to seed oracle price")
	}
}
