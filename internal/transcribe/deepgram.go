package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
)

const DefaultDeepgramBaseURL = "https://api.deepgram.com"

type DeepgramOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	HTTPClient *http.Client
}

// DeepgramBackend uses Deepgram's synchronous pre-recorded endpoint with
// diarization and utterance grouping enabled.
type DeepgramBackend struct {
	opts DeepgramOptions
}

func NewDeepgramBackend(opts DeepgramOptions) (*DeepgramBackend, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("deepgram API key not set: set DEEPGRAM_API_KEY or transcription.deepgram_api_key in config")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultDeepgramBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Minute}
	}
	return &DeepgramBackend{opts: opts}, nil
}

func (b *DeepgramBackend) Name() string { return "deepgram" }

type deepgramResponse struct {
	Metadata struct {
		RequestID string  `json:"request_id"`
		Duration  float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Transcript string  `json:"transcript"`
			Speaker    int     `json:"speaker"`
			Confidence float64 `json:"confidence"`
		} `json:"utterances"`
	} `json:"results"`
}

func (b *DeepgramBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("read audio file: %w", err)
	}

	query := url.Values{}
	query.Set("model", b.opts.Model)
	query.Set("smart_format", "true")
	query.Set("punctuate", "true")
	query.Set("diarize", "true")
	query.Set("utterances", "true")
	if b.opts.Language != "" {
		query.Set("language", b.opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.opts.BaseURL+"/v1/listen?"+query.Encode(), bytes.NewReader(data))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Token "+b.opts.APIKey)
	req.Header.Set("Content-Type", contentTypeFor(audioPath))

	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("deepgram API error (HTTP %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed deepgramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode deepgram: %w", err)
	}

	result := Result{
		Provider: b.Name(),
		JobID:    parsed.Metadata.RequestID,
		Duration: seconds(parsed.Metadata.Duration),
	}
	for _, u := range parsed.Results.Utterances {
		result.Utterances = append(result.Utterances, meeting.Utterance{
			Speaker:    SpeakerLabel(u.Speaker),
			Start:      seconds(u.Start),
			End:        seconds(u.End),
			Text:       strings.TrimSpace(u.Transcript),
			Confidence: u.Confidence,
		})
	}
	return result, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second)).Round(time.Millisecond)
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
