package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/StarDEX-Protocol/StarSwap-audit/params"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/api"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/crypto"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/storage"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/bank"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/engine"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/ledger"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/plugin"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/registry"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/swap/treasury"
	"github.com/StarDEX-Protocol/StarSwap-audit/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	store, err := storage.NewPebbleStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Token bank ----
	// The bank stands in for the token contracts the engine moves funds
	// through. Permit signatures are scoped to this chain id and vault.
	domain := crypto.DefaultDomain(cfg.Node.ChainID, cfg.Node.Vault)
	bk := bank.NewBank(domain, func() int64 { return time.Now().Unix() })

	// ---- Core state ----
	orders := ledger.NewLedger(store)
	if err := orders.Load(); err != nil {
		sugar.Fatalw("ledger_load_failed", "err", err)
	}
	owners := registry.NewOwnerRegistry(store)
	if err := owners.Load(); err != nil {
		sugar.Fatalw("registry_load_failed", "err", err)
	}
	backing := treasury.NewTracker(engine.VaultBalance{Bank: bk, Vault: cfg.Node.Vault}, store)
	if err := backing.Load(); err != nil {
		sugar.Fatalw("treasury_load_failed", "err", err)
	}
	sugar.Infow("state_loaded", "orders", orders.Count())

	// ---- Plugins ----
	pipeline := plugin.NewPipeline()
	if len(cfg.Policy.Whitelist) > 0 {
		wl := plugin.NewWhitelist(cfg.Policy.Whitelist...)
		if _, err := pipeline.Enable(wl, nil); err != nil {
			sugar.Fatalw("whitelist_enable_failed", "err", err)
		}
		sugar.Infow("plugin_enabled", "name", wl.Name(), "tokens", len(cfg.Policy.Whitelist))
	}
	if cfg.Policy.FeeBps > 0 {
		fee := plugin.NewFlatFee(cfg.Policy.FeeBps)
		if _, err := pipeline.Enable(fee, nil); err != nil {
			sugar.Fatalw("fee_enable_failed", "err", err)
		}
		sugar.Infow("plugin_enabled", "name", fee.Name(), "bps", cfg.Policy.FeeBps)
	}

	// ---- Settlement engine ----
	if cfg.Node.Admin == (common.Address{}) {
		sugar.Warn("ADMIN_ADDRESS not set - surplus withdrawal and plugin admin are disabled")
	}
	eng := engine.New(engine.Config{
		Vault: cfg.Node.Vault,
		Admin: cfg.Node.Admin,
	}, orders, backing, owners, pipeline, bk, sugar)

	sugar.Infow("node_starting",
		"vault", cfg.Node.Vault.Hex(),
		"admin", cfg.Node.Admin.Hex(),
		"chain_id", cfg.Node.ChainID.String())

	// ---- API Server ----
	faucet := os.Getenv("ENABLE_FAUCET") == "true"
	if faucet {
		sugar.Info("faucet enabled - do not run this in production")
	}
	apiServer := api.NewServer(eng, bk, cfg.API.CORSOrigins, faucet)

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.Listen)
		errCh <- apiServer.Start(cfg.API.Listen)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		sugar.Infow("shutting_down", "signal", sig.String())
	case err := <-errCh:
		sugar.Errorw("api_server_failed", "err", err)
	}
}
