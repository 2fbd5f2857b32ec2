package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/carebot/internal/api"
	"github.com/eldtechnologies/carebot/internal/assistant"
	"github.com/eldtechnologies/carebot/internal/config"
	"github.com/eldtechnologies/carebot/internal/connectivity"
	"github.com/eldtechnologies/carebot/internal/conversation"
	"github.com/eldtechnologies/carebot/internal/dispatch"
	"github.com/eldtechnologies/carebot/internal/handlers"
	"github.com/eldtechnologies/carebot/internal/identity"
	"github.com/eldtechnologies/carebot/internal/preferences"
	"github.com/eldtechnologies/carebot/internal/store"
	"github.com/eldtechnologies/carebot/internal/voice"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	// Background work (probing, queue drains) outlives the HTTP server
	// during shutdown so in-flight replays can finish.
	ctx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	// Open durable store
	kv, err := store.Open(ctx, store.Options{
		Backend:     cfg.Store,
		SQLitePath:  cfg.SQLitePath,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		SealKey:     cfg.StoreKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store).Msg("durable store unavailable")
	}
	defer kv.Close()
	logger.Info().Str("backend", cfg.Store).Bool("sealed", cfg.StoreKey != "").Msg("connected to durable store")

	userID, err := identity.LoadOrCreate(ctx, kv)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load user id")
	}
	logger = logger.With().Str("user_id", userID).Logger()

	prefs := preferences.New(kv, cfg.Language, logger)
	language := prefs.Language(ctx)

	conv := conversation.NewStore(kv, logger, conversation.Options{Language: language})
	loaded, err := conv.Load(ctx, userID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load conversation")
	}

	queue, err := dispatch.OpenQueue(ctx, kv, userID, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load offline queue")
	}
	logger.Info().
		Int("messages", len(loaded.Messages)).
		Int("queued", queue.Len()).
		Msg("conversation restored")

	client := assistant.NewClient(cfg.AssistantURL, cfg.RequestTimeout)
	client.ProbePath = cfg.ProbePath

	bridge := newVoiceBridge(cfg, logger)

	// Seed connectivity from one probe so early sends are not queued while
	// the assistant is up.
	probeCtx, cancelProbe := context.WithTimeout(ctx, 5*time.Second)
	probeErr := client.Check(probeCtx)
	cancelProbe()
	if probeErr != nil {
		logger.Warn().Err(probeErr).Msg("assistant unreachable at startup")
	}
	monitor := connectivity.NewMonitor(probeErr == nil)
	dispatcher := dispatch.New(dispatch.Config{
		UserID:       userID,
		Language:     language,
		Conversation: conv,
		Queue:        queue,
		Assistant:    client,
		Connectivity: monitor,
		Voice:        bridge,
		SpeakReplies: prefs.TextToSpeech,
		Logger:       logger,
	})
	detach := dispatcher.Attach(ctx, monitor)
	// No transition fires when starting online, so replay the restored queue.
	dispatcher.StartDrain(ctx)

	prober := connectivity.NewProber(client, monitor, cfg.ProbeInterval, logger)
	go prober.Run(ctx)

	// Create router
	h := handlers.NewHandler(handlers.Deps{
		UserID:       userID,
		Backend:      cfg.Store,
		Store:        kv,
		Conversation: conv,
		Dispatcher:   dispatcher,
		Monitor:      monitor,
		Preferences:  prefs,
		Voice:        bridge,
		Logger:       logger,
	})
	router := api.NewRouter(logger, h, api.Options{
		AllowedOrigins:     cfg.AllowedOrigins,
		APITokenHash:       cfg.APITokenHash,
		RateLimitWhitelist: cfg.RateLimitWhitelist,
	})

	// Sends can wait on the assistant and on queue drains, so there is no
	// server-wide write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("assistant", cfg.AssistantURL).
			Msg("starting carebot daemon")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down daemon...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	detach()
	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		bridge.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn().Int("queued", queue.Len()).Msg("background work still running, cancelling")
		cancelWork()
		<-done
	}
	cancelWork()

	logger.Info().Int("queued", queue.Len()).Msg("daemon stopped")
}

// newVoiceBridge wires the configured speech programs. Unset commands leave
// the capability off.
func newVoiceBridge(cfg *config.Config, logger zerolog.Logger) *voice.Bridge {
	var speaker voice.Speaker
	if s := voice.NewCommandSpeaker(cfg.TTSCommand); s != nil {
		speaker = s
	}
	var recognizer voice.Recognizer
	if r := voice.NewCommandRecognizer(cfg.STTCommand, logger); r != nil {
		recognizer = r
	}
	if speaker != nil || recognizer != nil {
		logger.Info().
			Bool("tts", speaker != nil).
			Bool("stt", recognizer != nil).
			Msg("voice capabilities configured")
	}
	return voice.NewBridge(speaker, recognizer, logger)
}
