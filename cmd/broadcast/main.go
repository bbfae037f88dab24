// Command broadcast mass-messages every known James user. By default it
// sends once and exits, skipping the send outside the Monday-lunch window
// unless forced; with -daemon it stays up and fires on a cron schedule.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jamesbot/james/internal/broadcast"
	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/scheduler"
	"github.com/jamesbot/james/internal/store"
)

// DefaultTimezone anchors the send window.
const DefaultTimezone = "Asia/Singapore"

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if *flags.pageToken == "" {
		slog.Error("Missing FB_PAGE_TOKEN; cannot send messages without it")
		os.Exit(1)
	}
	if *flags.message == "" {
		slog.Error("Nothing to send; pass -message")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		slog.Error("Invalid timezone", "timezone", *flags.timezone, "error", err)
		os.Exit(1)
	}

	profiles, err := store.NewStore(buildStoreOptions(flags)...)
	if err != nil {
		slog.Error("Failed to open profile store", "error", err)
		os.Exit(1)
	}
	defer profiles.Close()

	sender := messenger.NewClient(messenger.WithPageToken(*flags.pageToken))
	b := broadcast.New(profiles, sender)

	sendOnce := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		sent, err := b.Send(ctx, *flags.message)
		if err != nil {
			slog.Error("Broadcast failed", "error", err)
			return
		}
		slog.Info("Broadcast completed", "sent", sent)
	}

	if *flags.daemon {
		runDaemon(sendOnce, *flags.cronSpec, loc)
		return
	}

	if !*flags.force && !broadcast.InSendWindow(time.Now(), loc) {
		slog.Info("Outside the send window, not broadcasting", "timezone", *flags.timezone)
		return
	}
	sendOnce()
}

// runDaemon keeps the process alive and fires sendOnce on the cron spec
// until interrupted.
func runDaemon(sendOnce func(), spec string, loc *time.Location) {
	sched := scheduler.NewScheduler(loc)
	defer sched.Stop()

	if err := sched.AddJob(spec, sendOnce); err != nil {
		slog.Error("Invalid cron spec", "spec", spec, "error", err)
		os.Exit(1)
	}
	slog.Info("Broadcast daemon running", "spec", spec, "timezone", loc.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("Broadcast daemon stopping")
}

// Config holds environment configuration
type Config struct {
	PageToken   string
	DatabaseURL string
	Timezone    string
}

// Flags holds command line flag values
type Flags struct {
	pageToken *string
	dbDSN     *string
	message   *string
	timezone  *string
	force     *bool
	daemon    *bool
	cronSpec  *string
}

func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
	config := Config{
		PageToken:   os.Getenv("FB_PAGE_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Timezone:    os.Getenv("BROADCAST_TZ"),
	}
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}
	return config
}

func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		pageToken: flag.String("fb-page-token", config.PageToken, "Facebook page access token (overrides $FB_PAGE_TOKEN)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "profile store DSN (overrides $DATABASE_URL)"),
		message:   flag.String("message", "", "broadcast message text"),
		timezone:  flag.String("timezone", config.Timezone, "send-window timezone (overrides $BROADCAST_TZ)"),
		force:     flag.Bool("force", false, "send immediately, ignoring the send window"),
		daemon:    flag.Bool("daemon", false, "stay up and send on a cron schedule instead of once"),
		cronSpec:  flag.String("cron", scheduler.WeeklyLunchSpec, "cron spec for -daemon mode"),
	}
	flag.Parse()
	return flags
}

func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	}
	return storeOpts
}
