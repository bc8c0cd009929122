package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"upsell-tracker/internal/commerce"
	"upsell-tracker/internal/config"
	"upsell-tracker/internal/database"
	"upsell-tracker/internal/logger"
	"upsell-tracker/internal/runner"
	"upsell-tracker/internal/workloads/funnel"
)

type options struct {
	configPath  string
	dbType      string
	action      string
	workload    string
	concurrency int
	duration    time.Duration
	limit       int
	offset      int
	id          string
}

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "path to the yaml config file")
	flag.StringVar(&opts.dbType, "db", "sqlite", "database type (postgres, mysql, sqlite or mongo)")
	flag.StringVar(&opts.action, "action", "run", "action (migrate, reset, run, sessions or session)")
	flag.StringVar(&opts.workload, "workload", "checkout_funnel", "workload to run: checkout_funnel, session_churn, upsell_dashboard or catalog_browse")
	flag.IntVar(&opts.concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	flag.DurationVar(&opts.duration, "duration", 0, "duration of the run (default from config)")
	flag.IntVar(&opts.limit, "limit", 0, "page size for -action sessions (default from config)")
	flag.IntVar(&opts.offset, "offset", 0, "page offset for -action sessions")
	flag.StringVar(&opts.id, "id", "", "shop session id for -action session")
	flag.Parse()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		exitCode = 1
		return
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		exitCode = 1
		return
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, opts, log, os.Stdout); err != nil {
		log.Error("command failed",
			zap.String("action", opts.action),
			zap.String("db", opts.dbType),
			zap.String("code", string(database.CodeOf(err))),
			zap.Error(err))
		exitCode = 1
	}
}

func newDriver(cfg *config.Config, dbType string, log *zap.Logger) (database.DatabaseDriver, error) {
	switch dbType {
	case "postgres":
		return database.NewPostgresDriver(log), nil
	case "mysql":
		return database.NewMySQLDriver(log), nil
	case "sqlite":
		return database.NewSQLiteDriver(log), nil
	case "mongo":
		return database.NewMongoDriver(cfg.MongoDatabase, log), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", dbType)
}

func newWorkload(name string) (database.Workload, error) {
	switch name {
	case "checkout_funnel":
		return &funnel.CheckoutFunnelTest{}, nil
	case "session_churn":
		return &funnel.SessionChurnTest{}, nil
	case "upsell_dashboard":
		return &funnel.UpsellDashboardTest{}, nil
	case "catalog_browse":
		return &funnel.CatalogBrowseTest{}, nil
	}
	return nil, fmt.Errorf("unsupported workload: %s", name)
}

func run(ctx context.Context, cfg *config.Config, opts options, log *zap.Logger, out io.Writer) error {
	driver, err := newDriver(cfg, opts.dbType, log)
	if err != nil {
		return err
	}
	dsn, err := cfg.DSN(opts.dbType)
	if err != nil {
		return err
	}
	if err := driver.Connect(ctx, dsn); err != nil {
		return fmt.Errorf("connect to %s: %w", opts.dbType, err)
	}
	defer driver.Close()

	var result interface{}
	switch opts.action {
	case "migrate":
		sqlDB, ok := driver.(database.SQLDriver)
		if !ok {
			return fmt.Errorf("migrate needs a relational database, got %s", opts.dbType)
		}
		if err := commerce.Migrate(ctx, sqlDB, log); err != nil {
			return err
		}
		version, err := commerce.SchemaVersion(ctx, sqlDB)
		if err != nil {
			return err
		}
		result = map[string]int{"schema_version": version}

	case "reset":
		if err := driver.Reset(ctx); err != nil {
			return err
		}
		result = map[string]string{"reset": opts.dbType}

	case "run":
		workload, err := newWorkload(opts.workload)
		if err != nil {
			return err
		}
		concurrency := opts.concurrency
		if concurrency <= 0 {
			concurrency = cfg.BenchmarkSettings.DefaultConcurrency
		}
		duration := opts.duration
		if duration <= 0 {
			if duration, err = cfg.Duration(); err != nil {
				return err
			}
		}
		log.Info("running benchmark", zap.String("workload", opts.workload))
		if result, err = runner.Benchmark(ctx, driver, workload, concurrency, duration, log); err != nil {
			return fmt.Errorf("benchmark failed: %w", err)
		}

	case "sessions":
		store, err := funnel.NewSessionStore(ctx, driver)
		if err != nil {
			return err
		}
		limit := opts.limit
		if limit <= 0 {
			limit = cfg.Query.DefaultLimit
		}
		if result, err = store.List(ctx, limit, opts.offset); err != nil {
			return err
		}

	case "session":
		if opts.id == "" {
			return fmt.Errorf("-action session needs -id")
		}
		store, err := funnel.NewSessionStore(ctx, driver)
		if err != nil {
			return err
		}
		if result, err = store.Get(ctx, opts.id); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported action: %s", opts.action)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
