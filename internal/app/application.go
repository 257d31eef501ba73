package app

import (
	"context"
	"fmt"
	"time"

	"github.com/opencustody/ledger_layer/internal/app/services/admin"
	banksvc "github.com/opencustody/ledger_layer/internal/app/services/bank"
	"github.com/opencustody/ledger_layer/internal/app/services/ledger"
	"github.com/opencustody/ledger_layer/internal/app/services/oracle"
	"github.com/opencustody/ledger_layer/internal/app/services/policy"
	"github.com/opencustody/ledger_layer/internal/app/services/registry"
	"github.com/opencustody/ledger_layer/internal/app/storage"
	"github.com/opencustody/ledger_layer/internal/app/storage/memory"
	"github.com/opencustody/ledger_layer/internal/app/system"
	"github.com/opencustody/ledger_layer/internal/config"
	"github.com/opencustody/ledger_layer/pkg/logger"

	"github.com/opencustody/ledger_layer/internal/app/domain/bank"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Ledger       storage.LedgerStore
	Registry     storage.RegistryStore
	Stats        storage.StatsStore
	Transactions storage.TransactionStore
}

func (s *Stores) applyDefaults() {
	var mem *memory.Store
	shared := func() *memory.Store {
		if mem == nil {
			mem = memory.New()
		}
		return mem
	}
	if s.Ledger == nil {
		s.Ledger = shared()
	}
	if s.Registry == nil {
		s.Registry = shared()
	}
	if s.Stats == nil {
		s.Stats = shared()
	}
	if s.Transactions == nil {
		s.Transactions = shared()
	}
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Registry *registry.Service
	Ledger   *ledger.Service
	Oracle   *oracle.Adapter
	Policy   *policy.Engine
	Bank     *banksvc.Coordinator
	Admin    *admin.Controller
}

// New builds a fully initialised application from the configuration and the
// provided stores.
func New(cfg *config.Config, stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	stores.applyDefaults()

	registrySvc, err := registry.New(context.Background(), stores.Registry, log)
	if err != nil {
		return nil, fmt.Errorf("initialising asset registry: %w", err)
	}
	ledgerSvc := ledger.New(stores.Ledger, log)

	feed, err := buildFeedProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	var oracleOpts []oracle.Option
	if cfg.Oracle.StalenessMinutes > 0 {
		oracleOpts = append(oracleOpts, oracle.WithStaleness(time.Duration(cfg.Oracle.StalenessMinutes)*time.Minute))
	}
	oracleAdapter := oracle.NewAdapter(feed, log, oracleOpts...)

	params, err := buildParams(cfg)
	if err != nil {
		return nil, err
	}
	policyEngine := policy.New(oracleAdapter, ledgerSvc, params, log)

	transfers, err := buildTransferProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	coordinator := banksvc.New(banksvc.Deps{
		Registry:  registrySvc,
		Ledger:    ledgerSvc,
		Policy:    policyEngine,
		Oracle:    oracleAdapter,
		Transfers: transfers,
		Notifier:  banksvc.NewLogNotifier(log),
		Stats:     stores.Stats,
		Journal:   stores.Transactions,
	}, log)

	identity := admin.NewStaticIdentityProvider(cfg.Bank.AdminPrincipals)
	controller := admin.New(identity, coordinator, log)

	manager := system.NewManager()
	if cfg.Oracle.PollSeconds > 0 {
		poller := oracle.NewPricePoller(oracleAdapter, time.Duration(cfg.Oracle.PollSeconds)*time.Second, log)
		if err := manager.Register(poller); err != nil {
			return nil, err
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Registry: registrySvc,
		Ledger:   ledgerSvc,
		Oracle:   oracleAdapter,
		Policy:   policyEngine,
		Bank:     coordinator,
		Admin:    controller,
	}, nil
}

// Start launches background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts background services down in reverse start order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

func buildFeedProvider(cfg *config.Config, log *logger.Logger) (oracle.FeedProvider, error) {
	if cfg.Oracle.FeedURL != "" {
		return oracle.NewHTTPFeedProvider(nil, cfg.Oracle.FeedURL, cfg.Oracle.FeedAPIKey, log)
	}
	price, err := bank.ParseUSD(cfg.Oracle.StaticPriceUSD)
	if err != nil {
		return nil, fmt.Errorf("parsing static price: %w", err)
	}
	return oracle.NewStaticFeedProvider(price, bank.USDScale), nil
}

func buildParams(cfg *config.Config) (bank.Params, error) {
	capUSD, err := bank.ParseUSD(cfg.Bank.DepositCapUSD)
	if err != nil {
		return bank.Params{}, fmt.Errorf("parsing deposit cap: %w", err)
	}
	limit, err := bank.ParseUSD(cfg.Bank.WithdrawalLimitUSD)
	if err != nil {
		return bank.Params{}, fmt.Errorf("parsing withdrawal limit: %w", err)
	}
	return bank.Params{DepositCapUSD: capUSD, WithdrawalLimitUSD: limit}, nil
}

func buildTransferProvider(cfg *config.Config, log *logger.Logger) (banksvc.TransferProvider, error) {
	if cfg.Bank.TransferURL == "" {
		return banksvc.PassthroughTransferProvider{}, nil
	}
	return banksvc.NewHTTPTransferProvider(nil, cfg.Bank.TransferURL, cfg.Bank.TransferAPIKey, log)
}
