package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
	"go.uber.org/zap"
)

const DefaultAssemblyAIBaseURL = "https://api.assemblyai.com"

type AssemblyAIOptions struct {
	APIKey           string
	BaseURL          string
	SpeakersExpected int
	LanguageCode     string
	Poll             PollOptions
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

// AssemblyAIBackend hides AssemblyAI's upload/submit/poll job lifecycle
// behind a blocking Transcribe call.
type AssemblyAIBackend struct {
	opts AssemblyAIOptions
}

func NewAssemblyAIBackend(opts AssemblyAIOptions) (*AssemblyAIBackend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("assemblyai API key not set: set ASSEMBLYAI_API_KEY or transcription.assemblyai_api_key in config")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAssemblyAIBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AssemblyAIBackend{opts: opts}, nil
}

func (b *AssemblyAIBackend) Name() string { return "assemblyai" }

type aaiUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type aaiTranscriptRequest struct {
	AudioURL         string `json:"audio_url"`
	SpeakerLabels    bool   `json:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
	LanguageCode     string `json:"language_code,omitempty"`
}

type aaiTranscript struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Error         string  `json:"error"`
	AudioDuration float64 `json:"audio_duration"`
	Utterances    []struct {
		Speaker    string  `json:"speaker"`
		Start      int64   `json:"start"`
		End        int64   `json:"end"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"utterances"`
}

func (b *AssemblyAIBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("read audio file: %w", err)
	}

	var upload aaiUploadResponse
	if err := b.do(ctx, http.MethodPost, "/v2/upload", "application/octet-stream", bytes.NewReader(audio), &upload); err != nil {
		return Result{}, fmt.Errorf("upload audio: %w", err)
	}
	if upload.UploadURL == "" {
		return Result{}, errors.New("upload audio: response carried no upload_url")
	}

	body, err := json.Marshal(aaiTranscriptRequest{
		AudioURL:         upload.UploadURL,
		SpeakerLabels:    true,
		SpeakersExpected: b.opts.SpeakersExpected,
		LanguageCode:     b.opts.LanguageCode,
	})
	if err != nil {
		return Result{}, err
	}

	var job aaiTranscript
	if err := b.do(ctx, http.MethodPost, "/v2/transcript", "application/json", bytes.NewReader(body), &job); err != nil {
		return Result{}, fmt.Errorf("submit transcription job: %w", err)
	}
	if job.ID == "" {
		return Result{}, errors.New("submit transcription job: response carried no id")
	}
	b.opts.Logger.Info("transcription job submitted", zap.String("job_id", job.ID))

	err = Poll(ctx, b.opts.Poll, func(ctx context.Context) (bool, error) {
		if err := b.do(ctx, http.MethodGet, "/v2/transcript/"+job.ID, "", nil, &job); err != nil {
			return false, fmt.Errorf("poll transcription job %s: %w", job.ID, err)
		}
		b.opts.Logger.Debug("transcription job status", zap.String("job_id", job.ID), zap.String("status", job.Status))
		switch job.Status {
		case "completed":
			return true, nil
		case "error":
			return false, fmt.Errorf("transcription job %s failed: %s", job.ID, job.Error)
		default:
			return false, nil
		}
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Provider: b.Name(),
		JobID:    job.ID,
		Duration: time.Duration(job.AudioDuration * float64(time.Second)),
	}
	for _, u := range job.Utterances {
		result.Utterances = append(result.Utterances, meeting.Utterance{
			Speaker:    u.Speaker,
			Start:      time.Duration(u.Start) * time.Millisecond,
			End:        time.Duration(u.End) * time.Millisecond,
			Text:       strings.TrimSpace(u.Text),
			Confidence: u.Confidence,
		})
	}
	return result, nil
}

func (b *AssemblyAIBackend) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, b.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", b.opts.APIKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling AssemblyAI API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("assemblyai API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing AssemblyAI response: %w", err)
	}
	return nil
}
