package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	appreport "github.com/partshop/backend/internal/application/report"
	"github.com/partshop/backend/internal/infrastructure/config"
	"github.com/partshop/backend/internal/infrastructure/logger"
	"github.com/partshop/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath string
		logLevel   string
		format     string
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml if present)")
	flag.StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flag.StringVar(&format, "format", "text", "Output format for dashboard: text or json")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithOperationID(ctx, "")
	ctx = logger.WithActor(ctx, "shopctl")
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log, args, format); err != nil {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string, format string) error {
	conn := persistence.NewConnection(cfg.Database, log)
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	if err := conn.InitializeSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	repos := persistence.NewRepositories(conn, documentSettings(cfg))

	switch args[0] {
	case "init":
		if _, err := repos.Users.GetOrCreateDefault(ctx); err != nil {
			return err
		}
		if _, err := repos.ShopSettings.GetOrCreateDefault(ctx); err != nil {
			return err
		}
		logger.Ctx(ctx, log).Info("Database ready", zap.String("path", conn.Path()))
		return nil

	case "status":
		return printStatus(ctx, os.Stdout, conn.Migrator())

	case "dashboard":
		svc := appreport.NewDashboardService(persistence.NewDashboardSource(repos), dashboardConfig(cfg), log)
		d := svc.Refresh(ctx)
		if format == "json" {
			return writeDashboardJSON(os.Stdout, d)
		}
		settings, err := repos.ShopSettings.GetOrCreateDefault(ctx)
		if err != nil {
			return err
		}
		return writeDashboardText(os.Stdout, d, settings.Currency)

	case "next-number":
		if len(args) < 2 {
			return fmt.Errorf("document kind required. Usage: shopctl next-number invoice|purchase")
		}
		var (
			number string
			err    error
		)
		switch args[1] {
		case "invoice":
			number, err = repos.Invoices.GenerateNumber(ctx)
		case "purchase":
			number, err = repos.StockPurchases.GenerateNumber(ctx)
		default:
			return fmt.Errorf("unknown document kind %q", args[1])
		}
		if err != nil {
			return err
		}
		fmt.Println(number)
		return nil

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func documentSettings(cfg *config.Config) persistence.DocumentSettings {
	return persistence.DocumentSettings{
		InvoicePrefix:  cfg.Numbering.InvoicePrefix,
		PurchasePrefix: cfg.Numbering.PurchasePrefix,
		OverdueAfter:   cfg.Dashboard.OverdueAfter(),
	}
}

func dashboardConfig(cfg *config.Config) appreport.DashboardConfig {
	dc := appreport.DefaultDashboardConfig()
	dc.MinRefreshInterval = cfg.Dashboard.MinRefreshInterval
	dc.OverdueAfter = cfg.Dashboard.OverdueAfter()
	dc.RecentLimit = cfg.Dashboard.RecentInvoiceLimit
	return dc
}

func printUsage() {
	fmt.Println(`Parts shop data tool

Usage:
  shopctl [flags] <command> [arguments]

Commands:
  init                     Create the schema, default user and shop settings
  status                   Show applied and pending migrations
  dashboard                Print the dashboard
  next-number <kind>       Print the next invoice or purchase number

Flags:
  -config string           Path to config file
  -log-level string        Log level: debug, info, warn, error
  -format string           Dashboard output: text or json (default: text)

Environment Variables:
  SHOP_DATABASE_PATH, SHOP_LOG_LEVEL, SHOP_DASHBOARD_MIN_REFRESH_INTERVAL`)
}
