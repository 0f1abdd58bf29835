package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bankbot/internal/cache"
	"bankbot/internal/chitchat"
	"bankbot/internal/config"
	"bankbot/internal/dialog"
	"bankbot/internal/faq"
	"bankbot/internal/metrics"
	"bankbot/internal/ner"
	"bankbot/internal/nlu"
	"bankbot/internal/policy"
	"bankbot/internal/repo"
	"bankbot/internal/slots"
	"bankbot/internal/textproc"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting bankbot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.MetricsNamespace)

	var redisCache *cache.Redis
	if cfg.RedisAddr != "" {
		redisCache, err = cache.New(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TLS:      cfg.RedisTLS,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
	}

	var repository *repo.Repository
	if cfg.DatabaseURL != "" {
		repository, err = repo.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer repository.Close()
	}

	var tomita *ner.Tomita
	if cfg.TomitaBinaryPath != "" {
		tomita = ner.New(ner.Config{
			BinaryPath: cfg.TomitaBinaryPath,
			ConfigPath: cfg.TomitaConfigPath,
			WorkDir:    cfg.TomitaWorkDir,
		}, redisCache, m, logger)
	}

	pipe := textproc.NewDefaultPipeline()
	deps := slots.Deps{Tomita: tomita, Logger: logger, Metrics: m}

	var loaded []slots.Slot
	if cfg.ModelsDir != "" {
		loaded, err = slots.LoadWithTrainedModels(cfg.SlotsDefinitionsPath, pipe, cfg.ModelsDir, deps)
	} else {
		loaded, err = slots.LoadFile(cfg.SlotsDefinitionsPath, pipe, deps)
	}
	if err != nil {
		return fmt.Errorf("load slot definitions: %w", err)
	}
	logger.Info("slot schema loaded", "slots", len(loaded), "path", cfg.SlotsDefinitionsPath)

	faqStore, err := faq.Open(cfg.FAQDBPath, m, logger)
	if err != nil {
		return fmt.Errorf("open faq store: %w", err)
	}
	defer faqStore.Close()

	chat := chitchat.New(chitchat.Config{
		BaseURL: cfg.ChitChatBaseURL,
		Timeout: cfg.ChitChatTimeout,
	}, m, logger)

	nluModel := nlu.NewModel(loaded, logger)
	policyModel, err := policy.NewModel(loaded, cfg.RequiredSlots, logger)
	if err != nil {
		return fmt.Errorf("build policy model: %w", err)
	}

	var messageLog dialog.MessageLog
	userID := "console"
	if repository != nil {
		name := "Console Session"
		user, upErr := repository.UpsertUser(ctx, repo.UserProfile{ExternalID: "console", DisplayName: &name})
		if upErr != nil {
			return fmt.Errorf("upsert console user: %w", upErr)
		}
		userID = user.ID
		messageLog = repository
	}

	d := dialog.New(pipe, nluModel, policyModel, faqStore, chat, messageLog, m, logger, dialog.Config{
		UserID:   userID,
		UserName: "console",
		Patience: cfg.DialogPatience,
		Debug:    cfg.DialogDebug,
	})
	defer d.Close()

	srv := &http.Server{Addr: cfg.HTTPListenAddr, Handler: newMux(m)}
	go func() {
		logger.Info("metrics server listening", "addr", cfg.HTTPListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return repl(ctx, d, logger)
}

func newMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// repl reads utterances from stdin until EOF or shutdown signal.
func repl(ctx context.Context, d *dialog.Dialog, logger *slog.Logger) error {
	fmt.Println("bankbot ready. Type an utterance, or Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			logger.Info("shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Println()
				logger.Info("input closed, shutting down")
				return scanner.Err()
			}
			utterance := strings.TrimSpace(line)
			if utterance == "" {
				continue
			}
			responses, err := d.GenerateResponse(ctx, utterance)
			if err != nil {
				logger.Error("turn failed", "error", err)
				fmt.Println("Sorry, something went wrong. Try again.")
				continue
			}
			for _, r := range responses {
				fmt.Println(r)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
