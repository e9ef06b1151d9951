package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/meetingagent/internal/artifact"
	"github.com/fmueller/meetingagent/internal/audio"
	"github.com/fmueller/meetingagent/internal/meeting"
	"go.uber.org/zap"
)

const DefaultMaxDuration = time.Hour

// Adapter validates audio input, serves cached transcripts and otherwise
// delegates to a Backend. It never retries; that is the orchestrator's job.
type Adapter struct {
	Backend     Backend
	Cache       artifact.Store
	Formats     []string
	MaxDuration time.Duration
	SilenceDBFS float64
	Logger      *zap.Logger
	Now         func() time.Time
}

func (a *Adapter) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Adapter) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

// CacheKey returns the artifact key of the raw transcript for an audio file
// with the given content hash.
func CacheKey(sha string) string {
	return "transcripts/" + sha + ".json"
}

func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (*meeting.Transcript, error) {
	if a.Backend == nil {
		return nil, meeting.NewTranscriptionError(meeting.TranscriptionAPI, audioPath, errors.New("no transcription backend configured"))
	}

	maxDuration := a.MaxDuration
	if maxDuration == 0 {
		maxDuration = DefaultMaxDuration
	}
	if err := audio.Check(audioPath, audio.Limits{
		Formats:     a.Formats,
		MaxDuration: maxDuration,
		SilenceDBFS: a.SilenceDBFS,
	}); err != nil {
		kind := meeting.TranscriptionUnreadable
		if errors.Is(err, audio.ErrUnsupportedFormat) || errors.Is(err, audio.ErrTooLong) {
			kind = meeting.TranscriptionUnsupported
		}
		return nil, meeting.NewTranscriptionError(kind, audioPath, err)
	}

	sha, err := artifact.FileSHA256(audioPath)
	if err != nil {
		return nil, meeting.NewTranscriptionError(meeting.TranscriptionUnreadable, audioPath, err)
	}
	logger := a.log().With(zap.String("audio", audioPath), zap.String("sha256", sha[:12]))

	if result, ok := a.cached(ctx, sha, logger); ok {
		logger.Info("using cached transcript", zap.String("provider", result.Provider))
		return a.toTranscript(audioPath, result), nil
	}

	logger.Info("transcribing audio", zap.String("backend", a.Backend.Name()))
	start := time.Now()
	result, err := a.Backend.Transcribe(ctx, audioPath)
	if err != nil {
		if errors.Is(err, ErrWaitExceeded) {
			return nil, meeting.NewTranscriptionError(meeting.TranscriptionTimeout, audioPath, err)
		}
		return nil, meeting.NewTranscriptionError(meeting.TranscriptionAPI, audioPath, err)
	}
	logger.Info("transcription finished",
		zap.Int("utterances", len(result.Utterances)),
		zap.Duration("audio_duration", result.Duration),
		zap.Duration("elapsed", time.Since(start)),
	)

	a.store(ctx, sha, result, logger)
	return a.toTranscript(audioPath, result), nil
}

func (a *Adapter) cached(ctx context.Context, sha string, logger *zap.Logger) (Result, bool) {
	if a.Cache == nil {
		return Result{}, false
	}
	data, err := a.Cache.Get(ctx, CacheKey(sha))
	if err != nil {
		if !errors.Is(err, artifact.ErrNotFound) {
			logger.Warn("transcript cache lookup failed", zap.Error(err))
		}
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn("ignoring corrupt cached transcript", zap.Error(err))
		return Result{}, false
	}
	return result, true
}

func (a *Adapter) store(ctx context.Context, sha string, result Result, logger *zap.Logger) {
	if a.Cache == nil {
		return
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Warn("encode transcript artifact", zap.Error(err))
		return
	}
	if err := a.Cache.Put(ctx, CacheKey(sha), data, "application/json"); err != nil {
		logger.Warn("persist transcript artifact", zap.Error(fmt.Errorf("put %s: %w", CacheKey(sha), err)))
	}
}

func (a *Adapter) toTranscript(audioPath string, result Result) *meeting.Transcript {
	utterances := make([]meeting.Utterance, 0, len(result.Utterances))
	for _, u := range result.Utterances {
		if u.Text == "" {
			continue
		}
		utterances = append(utterances, u)
	}

	duration := result.Duration
	if duration == 0 && len(utterances) > 0 {
		duration = utterances[len(utterances)-1].End
	}
	return &meeting.Transcript{
		AudioPath:  audioPath,
		Duration:   duration,
		Utterances: utterances,
		CreatedAt:  a.now(),
	}
}
