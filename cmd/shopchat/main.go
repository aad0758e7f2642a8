// Command shopchat runs the conversational checkout workflow engine: it wires
// the session store, persistence backend, shipping rate provider, analytics
// collector and order notifier, then keeps the session TTL sweeper running
// until shutdown. The conversational frontend invokes the engine's Handle
// surface; this binary owns everything behind it.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dvnhat/shopchat/internal/analytics"
	"github.com/dvnhat/shopchat/internal/flow"
	"github.com/dvnhat/shopchat/internal/notify"
	"github.com/dvnhat/shopchat/internal/shipping"
	"github.com/dvnhat/shopchat/internal/store"
	"github.com/dvnhat/shopchat/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for shopchat state data.
	DefaultStateDir = "/var/lib/shopchat"
	// DefaultDBFileName is the default SQLite database filename.
	DefaultDBFileName = "shopchat.db"
	// DefaultSessionMaxIdle is how long an untouched checkout survives.
	DefaultSessionMaxIdle = 30 * time.Minute
	// DefaultSweepInterval is how often idle checkouts are swept.
	DefaultSweepInterval = 5 * time.Minute
)

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := openStore(flags)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	notifier, err := buildNotifier(flags)
	if err != nil {
		slog.Error("Failed to initialize notifier", "error", err)
		os.Exit(1)
	}

	collector := analytics.NewCollector()
	sessions := flow.NewMemorySessionStore()
	engine := flow.NewEngine(sessions, st, shipping.NewStaticProvider(),
		flow.WithCollector(collector),
		flow.WithNotifier(notifier),
		flow.WithConfig(workflowConfig()),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sweepInterval := util.ParseDurationEnv("SESSION_SWEEP_INTERVAL", DefaultSweepInterval)
	maxIdle := util.ParseDurationEnv("SESSION_MAX_IDLE", DefaultSessionMaxIdle)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	slog.Info("shopchat checkout engine running",
		"db_driver", *flags.dbDriver, "notify_backend", *flags.notifyBackend,
		"sweep_interval", sweepInterval, "session_max_idle", maxIdle)

	for {
		select {
		case <-ticker.C:
			if n := engine.SweepSessions(maxIdle); n > 0 {
				slog.Info("swept idle checkout sessions", "count", n)
			}
		case sig := <-stop:
			slog.Info("shutting down", "signal", sig.String())
			return
		}
	}
}

// Config holds environment configuration.
type Config struct {
	DbDriver      string
	DatabaseURL   string
	StateDir      string
	NotifyBackend string
	WhatsAppDSN   string
	QROutput      string
}

// Flags holds command line flag values.
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	notifyBackend *string
	whatsappDSN   *string
	qrOutput      *string
	numeric       *bool
}

// initializeLogger sets up structured logging with the level from LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:      os.Getenv("SHOPCHAT_DB_DRIVER"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("SHOPCHAT_STATE_DIR"),
		NotifyBackend: os.Getenv("NOTIFY_BACKEND"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		QROutput:      os.Getenv("WHATSAPP_QR_OUTPUT"),
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.NotifyBackend == "" {
		config.NotifyBackend = "none"
	}
	return config
}

// parseCommandLineFlags parses flags with environment values as defaults.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "directory for state data"),
		dbDriver:      flag.String("db-driver", config.DbDriver, "database driver (memory, sqlite3, postgres)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database connection string"),
		notifyBackend: flag.String("notify", config.NotifyBackend, "order notification backend (none, twilio, whatsapp)"),
		whatsappDSN:   flag.String("whatsapp-dsn", config.WhatsAppDSN, "whatsmeow session database connection string"),
		qrOutput:      flag.String("qr-output", config.QROutput, "path to write the WhatsApp device-link QR code"),
		numeric:       flag.Bool("numeric-code", util.ParseBoolEnv("WHATSAPP_NUMERIC_CODE", false), "use a numeric WhatsApp link code instead of a QR code"),
	}
	flag.Parse()
	return flags
}

// openStore selects the storage backend from flags, auto-detecting the driver
// from the DSN when unset.
func openStore(flags Flags) (store.Store, error) {
	driver := *flags.dbDriver
	dsn := *flags.dbDSN
	if driver == "" {
		switch {
		case dsn == "":
			driver = "memory"
		case store.DetectDSNType(dsn) == "postgres":
			driver = "postgres"
		default:
			driver = "sqlite3"
		}
	}

	switch driver {
	case "memory":
		slog.Warn("using in-memory store; all data is lost on restart")
		return store.NewMemoryStore(), nil
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		if dsn == "" {
			if err := os.MkdirAll(*flags.stateDir, store.DefaultDirPermissions); err != nil {
				return nil, err
			}
			dsn = *flags.stateDir + "/" + DefaultDBFileName
		}
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

// buildNotifier selects the order notification backend.
func buildNotifier(flags Flags) (notify.Service, error) {
	switch *flags.notifyBackend {
	case "", "none":
		return nil, nil
	case "twilio":
		return notify.NewTwilioService()
	case "whatsapp":
		opts := []notify.WhatsAppOption{notify.WithWhatsAppDBDSN(*flags.whatsappDSN)}
		if *flags.qrOutput != "" {
			opts = append(opts, notify.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			opts = append(opts, notify.WithNumericCode())
		}
		return notify.NewWhatsAppService(opts...)
	default:
		slog.Warn("unknown notify backend, notifications disabled", "backend", *flags.notifyBackend)
		return nil, nil
	}
}

// workflowConfig builds the checkout configuration from environment overrides.
func workflowConfig() flow.Config {
	cfg := flow.DefaultConfig()
	cfg.ServiceFee = util.ParseInt64Env("SERVICE_FEE", cfg.ServiceFee)
	cfg.FallbackShippingFee = util.ParseInt64Env("FALLBACK_SHIPPING_FEE", cfg.FallbackShippingFee)
	cfg.FallbackEstimatedDays = util.ParseIntEnv("FALLBACK_ESTIMATED_DAYS", cfg.FallbackEstimatedDays)
	cfg.DefaultItemWeightGrams = util.ParseIntEnv("DEFAULT_ITEM_WEIGHT_GRAMS", cfg.DefaultItemWeightGrams)
	cfg.MinChargeableWeightGrams = util.ParseIntEnv("MIN_CHARGEABLE_WEIGHT_GRAMS", cfg.MinChargeableWeightGrams)
	cfg.RecentOrderLimit = util.ParseIntEnv("RECENT_ORDER_LIMIT", cfg.RecentOrderLimit)
	return cfg
}
