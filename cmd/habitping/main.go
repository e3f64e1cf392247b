// HabitPing is a chat bot for daily habit and mood tracking with
// clock-based reminders, delivered over Telegram or WhatsApp.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/habitping/habitping/internal/bot"
	"github.com/habitping/habitping/internal/chart"
	"github.com/habitping/habitping/internal/flow"
	"github.com/habitping/habitping/internal/lockfile"
	"github.com/habitping/habitping/internal/messaging"
	"github.com/habitping/habitping/internal/scheduler"
	"github.com/habitping/habitping/internal/store"
	"github.com/habitping/habitping/internal/telegram"
	"github.com/habitping/habitping/internal/util"
	"github.com/habitping/habitping/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for HabitPing state data
	DefaultStateDir = "/var/lib/habitping"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "habitping.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// MessengerTelegram selects the Telegram transport
	MessengerTelegram = "telegram"
	// MessengerWhatsApp selects the WhatsApp transport
	MessengerWhatsApp = "whatsapp"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Hold the state directory for the lifetime of the process so two
	// instances never poll the same reminder table.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping HabitPing", "state_dir", *flags.stateDir, "messenger", *flags.messenger)
	if err := run(flags); err != nil {
		slog.Error("HabitPing failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("HabitPing exited successfully")
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	msgService, err := openMessenger(flags)
	if err != nil {
		return err
	}

	stateManager := flow.NewInMemoryStateManager()
	defer stateManager.Stop()

	renderer, err := chart.NewRenderer(chart.WithDir(*flags.stateDir))
	if err != nil {
		return err
	}

	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	b := bot.New(st, msgService, stateManager, renderer)
	b.Start(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	poller := scheduler.NewPoller(st, msgService)
	if err := poller.Register(sched); err != nil {
		return err
	}

	slog.Info("HabitPing running", "messenger", *flags.messenger)
	<-ctx.Done()
	slog.Info("HabitPing shutting down")
	return nil
}

// openStore builds the habit store from the configured DSN.
func openStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		st, err := store.NewPostgresStore(store.WithPostgresDSN(dsn))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	st, err := store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openMessenger builds the configured chat transport.
func openMessenger(flags Flags) (messaging.Service, error) {
	switch *flags.messenger {
	case MessengerWhatsApp:
		waOpts := buildWhatsAppOptions(flags)
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		tgOpts := []telegram.Option{telegram.WithToken(*flags.telegramToken)}
		if flags.telegramDebug {
			tgOpts = append(tgOpts, telegram.WithDebug())
		}
		client, err := telegram.NewClient(tgOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewTelegramService(client), nil
	}
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	Messenger     string
	TelegramToken string
	TelegramDebug bool
	WhatsAppDSN   string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	messenger     *string
	telegramToken *string
	waDSN         *string
	qrOutput      *string
	numeric       *bool
	telegramDebug bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("HABITPING_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Messenger:     os.Getenv("MESSENGER"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramDebug: util.ParseBoolEnv("TELEGRAM_DEBUG", false),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HABITPING_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Messenger == "" {
		config.Messenger = MessengerTelegram
		slog.Debug("No MESSENGER set, defaulting to Telegram")
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}

	slog.Debug("environment variables loaded",
		"HABITPING_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MESSENGER", config.Messenger,
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for HabitPing data (overrides $HABITPING_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the habit store (overrides $DATABASE_URL)"),
		messenger:     flag.String("messenger", config.Messenger, "chat transport: telegram or whatsapp (overrides $MESSENGER)"),
		telegramToken: flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		waDSN:         flag.String("wa-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		telegramDebug: config.TelegramDebug,
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"messenger", *flags.messenger,
		"telegramTokenSet", *flags.telegramToken != "",
		"waDSN_set", *flags.waDSN != "",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric)

	// Re-derive the default SQLite paths when only the state directory moved.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("Updated dbDSN based on state directory", "db_path", *flags.dbDSN)
		}
		if *flags.waDSN == filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) {
			*flags.waDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
		}
	}

	if *flags.messenger == MessengerTelegram && *flags.telegramToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(*flags.stateDir, 0755); err != nil {
		return err
	}
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		dbDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating directory for file-based database", "dir", dbDir)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.waDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.waDSN))
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}
