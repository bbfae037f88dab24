package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jamesbot/james/internal/api"
	"github.com/jamesbot/james/internal/engine"
	"github.com/jamesbot/james/internal/lockfile"
	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/nlu"
	"github.com/jamesbot/james/internal/recommend"
	"github.com/jamesbot/james/internal/session"
	"github.com/jamesbot/james/internal/store"
	"github.com/jamesbot/james/internal/util"
	"github.com/jamesbot/james/internal/yelp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for James state data
	DefaultStateDir = "/var/lib/james"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "james.db"
	// DefaultAPIAddr is the default webhook listen address
	DefaultAPIAddr = ":8445"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	if *flags.pageToken == "" {
		slog.Error("Missing FB_PAGE_TOKEN; cannot send messages without it")
		os.Exit(1)
	}

	// The sqlite store must not be shared between processes, so take the
	// state directory lock before opening it.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.Acquire(*flags.stateDir)
		if err != nil {
			slog.Error("Failed to lock state directory", "error", err, "state_dir", *flags.stateDir)
			os.Exit(1)
		}
		defer lock.Release()
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	messengerOpts := buildMessengerOptions(flags)
	yelpOpts := buildYelpOptions(flags)
	apiOpts := buildAPIOptions(flags)

	profiles, err := store.NewStore(storeOpts...)
	if err != nil {
		slog.Error("Failed to open profile store", "error", err)
		os.Exit(1)
	}
	defer profiles.Close()

	yelpClient := yelp.NewClient(yelpOpts...)
	sender := messenger.NewClient(messengerOpts...)
	parser := buildIntentParser(flags)
	orch := recommend.NewOrchestrator(yelpClient, yelpClient, buildRecommendOptions()...)
	bot := engine.New(session.NewStore(), orch, sender, parser, profiles)
	handler := api.NewHandler(bot, apiOpts...)

	slog.Info("Bootstrapping James with configured modules")
	slog.Debug("Final configuration", "api_addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "",
		"wit_token_set", *flags.witToken != "", "yelp_key_set", *flags.yelpKey != "")
	if err := run(handler, *flags.apiAddr); err != nil {
		slog.Error("James failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("James exited successfully")
}

// run serves the webhook until interrupted, then drains connections.
func run(handler *api.Handler, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Webhook server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// Config holds environment configuration
type Config struct {
	PageToken   string
	AppSecret   string
	VerifyToken string
	WitToken    string
	YelpKey     string
	OpenAIKey   string
	DatabaseURL string
	StateDir    string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	pageToken   *string
	appSecret   *string
	verifyToken *string
	witToken    *string
	yelpKey     *string
	openaiKey   *string
	dbDSN       *string
	stateDir    *string
	apiAddr     *string
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
		PageToken:   os.Getenv("FB_PAGE_TOKEN"),
		AppSecret:   os.Getenv("FB_APP_SECRET"),
		VerifyToken: os.Getenv("FB_VERIFY_TOKEN"),
		WitToken:    os.Getenv("WIT_TOKEN"),
		YelpKey:     os.Getenv("YELP_API_KEY"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("JAMES_STATE_DIR"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No JAMES_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"FB_PAGE_TOKEN_SET", config.PageToken != "",
		"FB_APP_SECRET_SET", config.AppSecret != "",
		"FB_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"WIT_TOKEN_SET", config.WitToken != "",
		"YELP_API_KEY_SET", config.YelpKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"JAMES_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		pageToken:   flag.String("fb-page-token", config.PageToken, "Facebook page access token (overrides $FB_PAGE_TOKEN)"),
		appSecret:   flag.String("fb-app-secret", config.AppSecret, "Facebook app secret for webhook signatures (overrides $FB_APP_SECRET)"),
		verifyToken: flag.String("fb-verify-token", config.VerifyToken, "webhook verification token (overrides $FB_VERIFY_TOKEN)"),
		witToken:    flag.String("wit-token", config.WitToken, "Wit.ai server access token (overrides $WIT_TOKEN)"),
		yelpKey:     flag.String("yelp-api-key", config.YelpKey, "Yelp Fusion API key (overrides $YELP_API_KEY)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for the fallback classifier (overrides $OPENAI_API_KEY)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "profile store DSN (overrides $DATABASE_URL)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for James data (overrides $JAMES_STATE_DIR)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"witTokenSet", *flags.witToken != "",
		"openaiKeySet", *flags.openaiKey != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs profile store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildMessengerOptions constructs Send API configuration options
func buildMessengerOptions(flags Flags) []messenger.Option {
	var opts []messenger.Option
	if *flags.pageToken != "" {
		opts = append(opts, messenger.WithPageToken(*flags.pageToken))
	}
	return opts
}

// buildYelpOptions constructs Yelp client configuration options
func buildYelpOptions(flags Flags) []yelp.Option {
	var opts []yelp.Option
	if *flags.yelpKey != "" {
		opts = append(opts, yelp.WithAPIKey(*flags.yelpKey))
	}
	return opts
}

// buildAPIOptions constructs webhook configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var opts []api.Option
	if *flags.verifyToken != "" {
		opts = append(opts, api.WithVerifyToken(*flags.verifyToken))
	}
	if *flags.appSecret != "" {
		opts = append(opts, api.WithAppSecret(*flags.appSecret))
	}
	return opts
}

// buildRecommendOptions reads orchestrator tuning from the environment.
func buildRecommendOptions() []recommend.Option {
	opts := []recommend.Option{
		recommend.WithSearchTimeout(util.ParseDurationEnv("JAMES_SEARCH_TIMEOUT", recommend.DefaultSearchTimeout)),
	}
	if util.ParseBoolEnv("JAMES_DISABLE_SHUFFLE", false) {
		opts = append(opts, recommend.WithoutShuffle())
	}
	return opts
}

// buildIntentParser picks Wit.ai when a token is configured, otherwise
// the OpenAI fallback classifier.
func buildIntentParser(flags Flags) nlu.IntentParser {
	if *flags.witToken != "" {
		slog.Debug("Using Wit.ai intent parser")
		return nlu.NewWitClient(nlu.WithWitToken(*flags.witToken))
	}
	slog.Debug("No Wit token configured, using OpenAI fallback classifier")
	return nlu.NewOpenAIClassifier(*flags.openaiKey)
}
