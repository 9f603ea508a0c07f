package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ashureev/companion/internal/agent"
	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/config"
	"github.com/ashureev/companion/internal/convlog"
	"github.com/ashureev/companion/internal/dispatch"
	"github.com/ashureev/companion/internal/geo"
	"github.com/ashureev/companion/internal/metrics"
	"github.com/ashureev/companion/internal/speech"
	"github.com/ashureev/companion/internal/store"
	"github.com/ashureev/companion/internal/transcode"
	"github.com/ashureev/companion/internal/translate"
)

// app holds the components shared by every transport.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	metrics    *metrics.Metrics
	transcript *convlog.Logger
	controller *bot.Controller
	dispatcher *dispatch.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = s

	a.transcript, err = convlog.New(convlog.Config{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("init conversation log: %w", err)
	}

	ai, err := agent.NewFromConfig(cfg.AI, a.metrics)
	if err != nil {
		_ = a.close(ctx)
		return nil, fmt.Errorf("init AI gateway: %w", err)
	}

	var translator translate.Translator
	if cfg.Translate.Provider == config.TranslateGoogle {
		translator = translate.NewGoogle(cfg.Translate.GoogleAPIKey, "", cfg.AI.Timeout)
	} else {
		translator = translate.NewLLM(ai)
	}

	var recognizer speech.Recognizer
	if cfg.SpeechEnabled() {
		baseURL := ""
		if cfg.AI.Provider == agent.ProviderOpenAI {
			baseURL = cfg.AI.BaseURL
		}
		recognizer = speech.NewWhisper(cfg.OpenAIKey, baseURL, cfg.Speech.Model, cfg.AI.Timeout)
	} else {
		logger.Info("Voice recognition disabled, no OpenAI key")
	}

	var transcoder transcode.Transcoder
	switch cfg.Transcoder.Kind {
	case config.TranscoderDocker:
		d, err := transcode.NewDocker(cfg.Transcoder.Image, "")
		if err != nil {
			logger.Warn("Docker transcoder unavailable, voice disabled", "error", err)
		} else {
			transcoder = d
		}
	default:
		transcoder = transcode.NewFFmpeg(cfg.Transcoder.FFmpegPath)
	}

	a.controller = bot.New(bot.Deps{
		Store:      a.store,
		AI:         ai,
		Translator: translator,
		Transcoder: transcoder,
		Recognizer: recognizer,
		Geocoder:   geo.NewNominatim(cfg.Geocode.URL, cfg.Geocode.UserAgent, 10*time.Second),
		Metrics:    a.metrics,
		Transcript: a.transcript,
		Logger:     logger,
	})
	a.dispatcher = dispatch.New(cfg.Dispatch, a.metrics, logger)

	logger.Info("Companion initialized",
		"store", cfg.StoreDriver,
		"ai_provider", cfg.AI.Provider,
		"ai_model", cfg.AI.Model,
		"translate", cfg.Translate.Provider,
		"transcoder", cfg.Transcoder.Kind,
		"voice", transcoder != nil && recognizer != nil)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver != config.StoreSQLite {
		return store.NewMemory(), nil
	}
	s, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "path", cfg.DBPath)
	return s, nil
}

// close drains queued events, then flushes the transcript and the store.
func (a *app) close(ctx context.Context) error {
	var result *multierror.Error
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("drain dispatcher: %w", err))
		}
	}
	if err := a.transcript.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close conversation log: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
	}
	return result.ErrorOrNil()
}
