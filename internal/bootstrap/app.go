package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Victor-armando18/service-vat/internal/config"
	"github.com/Victor-armando18/service-vat/internal/domain/engine"
	"github.com/Victor-armando18/service-vat/internal/domain/functions"
	"github.com/Victor-armando18/service-vat/internal/domain/region"
	"github.com/Victor-armando18/service-vat/internal/infrastructure"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/diff"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/gormstore"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/kafka"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/memory"
	"github.com/Victor-armando18/service-vat/internal/infrastructure/seed"
	"github.com/Victor-armando18/service-vat/internal/interfaces"
	"github.com/Victor-armando18/service-vat/internal/usecase"
	"github.com/Victor-armando18/service-vat/internal/usecase/admin"
	"github.com/Victor-armando18/service-vat/internal/usecase/audit"
)

// App holds every wired component of the VAT service.
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Rules      interfaces.RuleStore
	Regions    interfaces.RegionStore
	Registry   *region.Registry
	Audit      interfaces.AuditStore
	Results    interfaces.CartResultStore
	Schemas    *engine.SchemaRegistry
	Functions  *functions.Registry
	Calculator interfaces.VATCalculator
	RegionOps  *admin.Regions
	RuleOps    *admin.Rules

	closers []func()
}

// New wires stores, audit and the orchestrator according to cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Schemas:   engine.DefaultSchemas(),
		Functions: functions.Builtins(functions.Bindings{}),
	}

	rules, err := initialRules(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	var tx interfaces.TxManager
	switch cfg.Store {
	case config.StorePostgres:
		db, err := gormstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := gormstore.Seed(ctx, db, seed.Regions(), seed.Countries(), seed.Mappings(), rules, logger); err != nil {
			return nil, fmt.Errorf("seeding database: %w", err)
		}
		app.Rules = gormstore.NewRuleStore(db)
		app.Regions = gormstore.NewRegionStore(db)
		app.Audit = gormstore.NewAuditStore(db)
		app.Results = gormstore.NewCartResultStore(db)
		tx = gormstore.NewTxManager(db)
		if sqlDB, err := db.DB(); err == nil {
			app.onClose(func() { _ = sqlDB.Close() })
		}
	default:
		regions := memory.NewRegionStore()
		if err := regions.Seed(seed.Regions(), seed.Countries(), seed.Mappings()); err != nil {
			return nil, err
		}
		app.Rules = memory.NewRuleStore(rules...)
		app.Regions = regions
		app.Audit = memory.NewAuditStore()
		app.Results = memory.NewCartResultStore()
		tx = memory.TxManager{}
	}

	sink, err := auditSink(cfg, app)
	if err != nil {
		return nil, err
	}
	writer := audit.NewWriter(sink, logger)
	var recorder audit.Recorder = writer
	if cfg.AuditMode == config.AuditAsync {
		async := audit.NewAsyncWriter(writer, cfg.AuditQueueSize)
		app.onClose(async.Close)
		recorder = async
	}

	app.Registry = region.NewRegistry(app.Regions, logger)
	eng := interfaces.NewEngine(nil, nil, engine.WithSchemas(app.Schemas), engine.WithLogger(logger))
	app.Calculator = usecase.NewVATService(app.Rules, app.Registry, eng, recorder,
		usecase.WithCartResults(app.Results),
		usecase.WithDiffer(&diff.Differ{}),
		usecase.WithLogger(logger),
	)
	app.RegionOps = admin.NewRegions(app.Regions, tx, app.Registry, recorder, cfg.StrictMappings, logger)
	app.RuleOps = admin.NewRules(app.Rules, app.Functions, app.Schemas, logger)

	logger.Info("vat service wired", "store", cfg.Store, "audit_mode", cfg.AuditMode, "audit_sink", cfg.AuditSink)
	return app, nil
}

func initialRules(ctx context.Context, cfg *config.Config, app *App) ([]engine.Rule, error) {
	if cfg.RulesFile == "" {
		pack, err := seed.DefaultRulePack()
		if err != nil {
			return nil, err
		}
		return pack.Rules, nil
	}
	pack, err := infrastructure.NewFileRuleLoader("").Load(ctx, cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	if err := pack.Validate(app.Functions, app.Schemas); err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", cfg.RulesFile, err)
	}
	app.Logger.Info("rule pack loaded", "file", cfg.RulesFile, "version", pack.Version, "rules", len(pack.Rules))
	return pack.Rules, nil
}

func auditSink(cfg *config.Config, app *App) (interfaces.AuditSink, error) {
	if cfg.AuditSink != config.SinkKafka {
		return app.Audit, nil
	}
	sink, err := kafka.NewAuditSink(kafka.Config{
		BootstrapServers: cfg.KafkaBootstrapServers,
		Topic:            cfg.KafkaAuditTopic,
	}, app.Logger)
	if err != nil {
		return nil, err
	}
	app.onClose(sink.Close)
	return sink, nil
}

func (a *App) onClose(fn func()) { a.closers = append(a.closers, fn) }

// Close drains the audit queue before closing sinks and connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
