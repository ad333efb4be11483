// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meterpay/meterpay/adapters/auth"
	"github.com/meterpay/meterpay/adapters/clock"
	"github.com/meterpay/meterpay/adapters/idgen"
	"github.com/meterpay/meterpay/adapters/memory"
	"github.com/meterpay/meterpay/adapters/metrics"
	"github.com/meterpay/meterpay/adapters/sqlite"
	"github.com/meterpay/meterpay/app"
	"github.com/meterpay/meterpay/config"
	"github.com/meterpay/meterpay/domain/ledger"
	"github.com/meterpay/meterpay/domain/settlement"
	"github.com/meterpay/meterpay/ports"
	"github.com/meterpay/meterpay/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	// Services
	Credits    *app.CreditsService
	Usage      *app.UsageService
	Approvals  *app.ApprovalService
	Settlement *app.SettlementService
	Listings   *app.ListingService
	Admin      *app.AdminService
	Params     *app.ParamsHolder
	Auth       *auth.Service

	// Stores (exposed for tooling)
	Ledger   ports.Ledger
	Audit    ports.AuditLog
	Keys     ports.KeyStore
	Settings ports.SettingsStore
	Token    ports.RewardToken
	Transfer ports.ValueTransfer
	listings ports.ListingStore
}

// New creates and initializes the application from a config file.
// With hotReload the config file is watched and SIGHUP triggers a reload.
func New(configPath string, hotReload bool) (*App, error) {
	// Load once up front so the logger reflects the config.
	cfg0, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg0.Logging)

	holder, err := config.NewHolder(configPath, logger.With().Str("component", "config").Logger())
	if err != nil {
		return nil, fmt.Errorf("config holder: %w", err)
	}
	if hotReload {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
	}

	cfg := holder.Get()
	logger.Info().Msg("initializing meterpay")

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initStores(cfg); err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}
	if err := a.initServices(cfg); err != nil {
		return nil, fmt.Errorf("init services: %w", err)
	}
	a.initHTTPServer(cfg)

	holder.OnChange(func(newCfg *config.Config) {
		a.applyConfig(newCfg)
	})

	return a, nil
}

func (a *App) initStores(cfg *config.Config) error {
	switch cfg.Database.Driver {
	case "memory":
		a.Ledger = memory.NewLedger()
		a.Audit = memory.NewAuditLog()
		a.Keys = memory.NewKeyStore()
		a.Settings = memory.NewSettingsStore()
		a.Token = memory.NewRewardToken()
		a.listings = memory.NewListingStore()
		a.Logger.Info().Msg("using in-memory stores")

	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.Ledger = sqlite.NewLedgerStore(db)
		a.Audit = sqlite.NewAuditLog(db)
		a.Keys = sqlite.NewKeyStore(db)
		a.Settings = sqlite.NewSettingsStore(db)
		a.Token = sqlite.NewRewardToken(db)
		a.listings = sqlite.NewListingStore(db)
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("using sqlite stores")

	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}

	// Outbound value transfers are recorded, not executed; the executing
	// adapter is deployment-specific.
	a.Transfer = memory.NewValueTransfer()
	return nil
}

func (a *App) initServices(cfg *config.Config) error {
	clk := clock.Real{}
	idGen := idgen.UUID{}

	a.Params = app.NewParamsHolder(paramsFromConfig(cfg))
	a.Auth = auth.NewService(a.Keys, idGen, clk)

	a.Admin = app.NewAdminService(app.AdminDeps{
		Params:   a.Params,
		Settings: a.Settings,
		Audit:    a.Audit,
		Clock:    clk,
		IDGen:    idGen,
		Logger:   a.Logger.With().Str("service", "admin").Logger(),
	})
	// Runtime-settable params persisted by a previous run win over config.
	if err := a.Admin.LoadPersisted(context.Background()); err != nil {
		a.Logger.Warn().Err(err).Msg("failed to load persisted params, using config values")
	}

	locks := app.NewListingLocks(cfg.Settlement.ListingLockShards)

	a.Credits = app.NewCreditsService(app.CreditsDeps{
		Ledger:   a.Ledger,
		Transfer: a.Transfer,
		Audit:    a.Audit,
		Clock:    clk,
		IDGen:    idGen,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With().Str("service", "credits").Logger(),
	})
	a.Usage = app.NewUsageService(app.UsageDeps{
		Ledger:   a.Ledger,
		Listings: a.listings,
		Params:   a.Params,
		Locks:    locks,
		Audit:    a.Audit,
		Clock:    clk,
		IDGen:    idGen,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With().Str("service", "usage").Logger(),
	})
	a.Approvals = app.NewApprovalService(app.ApprovalDeps{
		Ledger:   a.Ledger,
		Listings: a.listings,
		Params:   a.Params,
		Clock:    clk,
		Logger:   a.Logger.With().Str("service", "approvals").Logger(),
	})
	a.Settlement = app.NewSettlementService(app.SettlementDeps{
		Ledger:   a.Ledger,
		Listings: a.listings,
		Token:    a.Token,
		Transfer: a.Transfer,
		Audit:    a.Audit,
		Params:   a.Params,
		Locks:    locks,
		Clock:    clk,
		IDGen:    idGen,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With().Str("service", "settlement").Logger(),
	})
	a.Listings = app.NewListingService(app.ListingDeps{
		Listings: a.listings,
		Params:   a.Params,
		Audit:    a.Audit,
		Clock:    clk,
		IDGen:    idGen,
		Metrics:  a.Metrics,
		Logger:   a.Logger.With().Str("service", "listings").Logger(),
	})

	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := web.NewHandler(web.Deps{
		Credits:    a.Credits,
		Usage:      a.Usage,
		Approvals:  a.Approvals,
		Settlement: a.Settlement,
		Listings:   a.Listings,
		Admin:      a.Admin,
		Params:     a.Params,
		Auth:       a.Auth,
		Audit:      a.Audit,
		Logger:     a.Logger.With().Str("component", "web").Logger(),
		Metrics:    a.Metrics,
	})

	r := chi.NewRouter()
	r.Get("/healthz", handler.Healthz)
	if a.Metrics != nil {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	r.Mount("/v1", handler.Router())

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// applyConfig applies a reloaded config. Only log level changes take
// effect live; runtime parameters are owned by the admin service once
// the process is up.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
	}
	a.Logger.Info().Msg("configuration applied")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the server and closes resources.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown")
	}
	if a.Holder != nil {
		a.Holder.Stop()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func paramsFromConfig(cfg *config.Config) app.Params {
	return app.Params{
		Owner:           ledger.Address(cfg.Roles.Owner),
		Reporter:        ledger.Address(cfg.Roles.Reporter),
		WithdrawAddress: ledger.Address(cfg.Roles.WithdrawAddress),
		FeeRate: settlement.FeeRate{
			Numerator:   cfg.Settlement.FeeNumerator,
			Denominator: cfg.Settlement.FeeDenominator,
		},
		RewardAmount:  cfg.Settlement.RewardAmount,
		RewardEnabled: cfg.Settlement.RewardEnabled,
		DefaultWindow: cfg.Settlement.DefaultWindow(),
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
