package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"gwi.com/verbal-diary/internal/api"
	"gwi.com/verbal-diary/internal/audio"
	"gwi.com/verbal-diary/internal/auth"
	"gwi.com/verbal-diary/internal/bot"
	"gwi.com/verbal-diary/internal/config"
	"gwi.com/verbal-diary/internal/core"
	"gwi.com/verbal-diary/internal/logging"
	"gwi.com/verbal-diary/internal/notion"
	"gwi.com/verbal-diary/internal/session"
	"gwi.com/verbal-diary/internal/speech"
	"gwi.com/verbal-diary/internal/store"
	"gwi.com/verbal-diary/internal/telegram"
)

const sessionTTL = 30 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the optional YAML config file")
	adminToken := flag.Bool("admin-token", false, "Print a 24h admin API token and exit")
	dump := flag.Bool("dump", false, "Print all users and messages as JSON and exit")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := &config.AppConfig

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if *adminToken {
		token, err := auth.GenerateJWT("operator", []byte(cfg.JWTSecret), 24*time.Hour)
		if err != nil {
			logger.Error("failed to generate admin token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *dump); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, dump bool) error {
	if !dump {
		if err := cfg.ValidateServing(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	ledger, err := store.NewSQLiteStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer ledger.Close()

	if dump {
		return dumpLedger(ctx, ledger)
	}

	loc := cfg.Location()
	profiles := core.NewProfileService(ledger, loc, logger)

	transcriber, closeTranscriber, err := speech.NewProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing speech provider: %w", err)
	}
	defer closeTranscriber()

	var archive core.AudioArchive
	local, err := audio.NewLocalArchive(cfg.AudioDir)
	if err != nil {
		return err
	}
	archive = local
	if cfg.S3Bucket != "" {
		mirror, err := audio.NewS3Mirror(ctx, local, audio.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,
		}, logger)
		if err != nil {
			return fmt.Errorf("initializing S3 mirror: %w", err)
		}
		archive = mirror
	}

	var sessions core.SessionStore = session.NewMemoryStore(sessionTTL)
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, sessionTTL)
		if err != nil {
			return fmt.Errorf("initializing redis session store: %w", err)
		}
		defer rs.Close()
		sessions = rs
	}

	tg := telegram.NewClient(cfg.TelegramToken, cfg.SendPerSec, logger)
	notes := core.NewNoteService(func(token string) core.NoteClient {
		return notion.NewClient(token, cfg.NotionTitleProperty)
	}, loc, logger)

	intake := core.NewIntakeService(core.IntakeDeps{
		Profiles:        profiles,
		Downloader:      tg,
		Archive:         archive,
		Transcriber:     core.NewTranscriptionGateway(transcriber, logger),
		Notes:           notes,
		Messenger:       tg,
		SummaryInterval: cfg.SummaryInterval,
		Logger:          logger,
	})
	registration := core.NewRegistrationService(sessions, profiles, logger)
	dispatcher := bot.NewDispatcher(tg, intake, registration, profiles, cfg.AllowedChatIDs, logger)

	webhookSecret := cfg.WebhookSecret
	if cfg.Mode == "webhook" && webhookSecret == "" {
		webhookSecret = uuid.NewString()
	}

	apiHandler := api.NewAPIHandler(profiles, dispatcher, cfg.JWTSecret, webhookSecret, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(apiHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	logger.Info("verbal diary bot starting",
		"mode", cfg.Mode,
		"speech_provider", transcriber.Name(),
		"model", transcriber.Model(),
		"timezone", loc.String())

	pollDone := make(chan error, 1)
	switch cfg.Mode {
	case "webhook":
		if err := tg.SetWebhook(ctx, cfg.WebhookURL, webhookSecret); err != nil {
			return fmt.Errorf("registering webhook: %w", err)
		}
		logger.Info("webhook registered", "url", cfg.WebhookURL)
		close(pollDone)
	default:
		if err := tg.DeleteWebhook(ctx); err != nil {
			logger.Warn("failed to clear webhook before polling", "error", err)
		}
		go func() {
			pollDone <- bot.NewPoller(tg, dispatcher, logger).Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := <-pollDone; err != nil {
		logger.Error("poller stopped with error", "error", err)
	}
	dispatcher.Wait()
	logger.Info("server exiting gracefully")
	return nil
}

func dumpLedger(ctx context.Context, ledger *store.SQLiteStore) error {
	users, err := ledger.GetAllUsers(ctx)
	if err != nil {
		return err
	}
	messages, err := ledger.GetAllMessages(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"users": users, "messages": messages})
}
