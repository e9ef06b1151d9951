package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/artifact"
	"github.com/fmueller/meetingagent/internal/calendar"
	"github.com/fmueller/meetingagent/internal/config"
	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/logging"
	"github.com/fmueller/meetingagent/internal/minutes"
	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/fmueller/meetingagent/internal/speakers"
	"github.com/fmueller/meetingagent/internal/store"
	"github.com/fmueller/meetingagent/internal/transcribe"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// runtime is everything a command needs to process or look up meetings.
type runtime struct {
	pipeline *pipeline.Orchestrator
	history  store.Store
}

func (r *runtime) Close() error {
	if r == nil || r.history == nil {
		return nil
	}
	return r.history.Close()
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (rt *runtime, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	history, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, history.Close())
		}
	}()

	cache, err := openCache(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg.Transcription, logging.Component(logger, "transcribe"))
	if err != nil {
		return nil, err
	}

	model, err := llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Seed:        cfg.LLM.Seed,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logging.Component(logger, "llm"),
	})
	if err != nil {
		return nil, err
	}

	location, err := loadLocation(cfg.Minutes.TimeZone)
	if err != nil {
		return nil, err
	}

	orchestrator := &pipeline.Orchestrator{
		Transcriber: &transcribe.Adapter{
			Backend:     backend,
			Cache:       cache,
			Formats:     cfg.Transcription.Formats,
			MaxDuration: cfg.Transcription.MaxDuration.Duration,
			SilenceDBFS: cfg.Transcription.SilenceDBFS,
			Logger:      logging.Component(logger, "transcribe"),
		},
		Speakers: &speakers.Resolver{
			LLM:    model,
			Logger: logging.Component(logger, "speakers"),
		},
		Minutes: &minutes.Extractor{
			LLM:            model,
			Logger:         logging.Component(logger, "minutes"),
			EventThreshold: cfg.Minutes.EventThreshold,
			Location:       location,
		},
		History:              history,
		CallTimeout:          cfg.Pipeline.CallTimeout.Duration,
		TranscriptionRetries: cfg.Pipeline.TranscriptionRetries,
		RetryBackoff:         cfg.Pipeline.RetryBackoff.Duration,
		Logger:               logging.Component(logger, "pipeline"),
	}

	service, err := newCalendarService(ctx, cfg.Calendar, logging.Component(logger, "calendar"))
	if err != nil {
		return nil, err
	}
	if service != nil {
		orchestrator.Calendar = &calendar.Bridge{
			Service:        service,
			Workers:        cfg.Calendar.Workers,
			CallTimeout:    cfg.Pipeline.CallTimeout.Duration,
			AttendeeEmails: cfg.Calendar.AttendeeEmails,
			Logger:         logging.Component(logger, "calendar"),
		}
	}

	return &runtime{pipeline: orchestrator, history: history}, nil
}

func openHistory(ctx context.Context, cfg config.Config) (store.Store, error) {
	if dsn := strings.TrimSpace(cfg.Store.PostgresDSN); dsn != "" {
		return store.OpenPostgres(ctx, dsn)
	}
	return store.NewFileStore(cfg.Store.Dir)
}

func openCache(ctx context.Context, cfg config.Artifacts) (artifact.Store, error) {
	if cfg.S3Endpoint != "" {
		return artifact.NewS3Store(ctx, artifact.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			Insecure:  cfg.S3Insecure,
		})
	}
	return artifact.NewFileStore(cfg.Dir)
}

func newBackend(cfg config.Transcription, logger *zap.Logger) (transcribe.Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderAssemblyAI:
		return transcribe.NewAssemblyAIBackend(transcribe.AssemblyAIOptions{
			APIKey:           cfg.AssemblyAIKey,
			BaseURL:          cfg.AssemblyAIURL,
			SpeakersExpected: cfg.SpeakersExpected,
			LanguageCode:     cfg.Language,
			Poll: transcribe.PollOptions{
				Interval: cfg.PollInterval.Duration,
				MaxWait:  cfg.MaxWait.Duration,
			},
			Logger: logger,
		})
	case config.ProviderDeepgram:
		return transcribe.NewDeepgramBackend(transcribe.DeepgramOptions{
			APIKey:   cfg.DeepgramKey,
			BaseURL:  cfg.DeepgramURL,
			Model:    cfg.DeepgramModel,
			Language: cfg.Language,
		})
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}

// newCalendarService returns nil when event creation is disabled.
func newCalendarService(ctx context.Context, cfg config.Calendar, logger *zap.Logger) (calendar.Service, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.CalendarGoogle:
		svc, err := calendar.NewGoogleService(ctx, calendar.GoogleOptions{
			CredentialsFile: cfg.CredentialsFile,
			TokenFile:       cfg.TokenFile,
			CalendarID:      cfg.CalendarID,
			TimeZone:        cfg.TimeZone,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil
	case config.CalendarICS:
		return &calendar.ICSService{Path: cfg.ICSPath, Logger: logger}, nil
	case config.CalendarNone, "":
		return nil, nil
	default:
		return nil, errors.New("unknown calendar backend " + cfg.Backend)
	}
}

func loadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("minutes.timezone: %w", err)
	}
	return loc, nil
}

// buildAnalyzer wires only speaker resolution; re-analyzing a saved
// transcript needs no transcription provider or calendar.
func buildAnalyzer(cfg config.Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return nil, errors.New("invalid configuration: llm.model is required")
	}
	model, err := llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Seed:        cfg.LLM.Seed,
		MaxTokens:   cfg.LLM.MaxTokens,
		Logger:      logging.Component(logger, "llm"),
	})
	if err != nil {
		return nil, err
	}
	return &pipeline.Orchestrator{
		Speakers:    &speakers.Resolver{LLM: model, Logger: logging.Component(logger, "speakers")},
		CallTimeout: cfg.Pipeline.CallTimeout.Duration,
		Logger:      logging.Component(logger, "pipeline"),
	}, nil
}
