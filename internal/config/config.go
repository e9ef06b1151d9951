// Package config loads meetingagent settings from defaults, a TOML file, an
// optional .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	ProviderAssemblyAI = "assemblyai"
	ProviderDeepgram   = "deepgram"

	CalendarGoogle = "google"
	CalendarICS    = "ics"
	CalendarNone   = "none"
)

// Duration lets TOML files spell durations as "45m" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Transcription struct {
	Provider         string   `toml:"provider"`
	AssemblyAIKey    string   `toml:"assemblyai_api_key"`
	AssemblyAIURL    string   `toml:"assemblyai_base_url"`
	DeepgramKey      string   `toml:"deepgram_api_key"`
	DeepgramURL      string   `toml:"deepgram_base_url"`
	DeepgramModel    string   `toml:"deepgram_model"`
	Formats          []string `toml:"formats"`
	MaxDuration      Duration `toml:"max_duration"`
	SilenceDBFS      float64  `toml:"silence_dbfs"`
	SpeakersExpected int      `toml:"speakers_expected"`
	Language         string   `toml:"language"`
	PollInterval     Duration `toml:"poll_interval"`
	MaxWait          Duration `toml:"max_wait"`
}

type LLM struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	Temperature float32 `toml:"temperature"`
	Seed        *int    `toml:"seed"`
	MaxTokens   int     `toml:"max_tokens"`
}

type Minutes struct {
	EventThreshold float64 `toml:"event_threshold"`
	TimeZone       string  `toml:"timezone"`
}

type Calendar struct {
	Backend         string            `toml:"backend"`
	CalendarID      string            `toml:"calendar_id"`
	TimeZone        string            `toml:"timezone"`
	CredentialsFile string            `toml:"credentials_file"`
	TokenFile       string            `toml:"token_file"`
	ICSPath         string            `toml:"ics_path"`
	Workers         int               `toml:"workers"`
	AttendeeEmails  map[string]string `toml:"attendee_emails"`
}

type Artifacts struct {
	Dir         string `toml:"dir"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Prefix    string `toml:"s3_prefix"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Insecure  bool   `toml:"s3_insecure"`
}

type Store struct {
	Dir         string `toml:"dir"`
	PostgresDSN string `toml:"postgres_dsn"`
}

type Pipeline struct {
	CallTimeout          Duration `toml:"call_timeout"`
	TranscriptionRetries int      `toml:"transcription_retries"`
	RetryBackoff         Duration `toml:"retry_backoff"`
}

type Output struct {
	TranscriptsDir string `toml:"transcripts_dir"`
	MinutesDir     string `toml:"minutes_dir"`
}

type Config struct {
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Minutes       Minutes       `toml:"minutes"`
	Calendar      Calendar      `toml:"calendar"`
	Artifacts     Artifacts     `toml:"artifacts"`
	Store         Store         `toml:"store"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Output        Output        `toml:"output"`
}

// Default returns settings rooted at dataDir. Paths are left relative to it
// so that a config file can move the whole tree.
func Default(dataDir string) Config {
	return Config{
		Transcription: Transcription{
			Provider:    ProviderAssemblyAI,
			Formats:     []string{".mp3", ".wav", ".m4a", ".flac"},
			MaxDuration: Duration{time.Hour},
			SilenceDBFS: -65,
			MaxWait:     Duration{30 * time.Minute},
		},
		LLM: LLM{
			BaseURL:     "http://localhost:11434/v1",
			Model:       "llama3.1",
			Temperature: 0.1,
		},
		Minutes: Minutes{
			EventThreshold: 0.7,
		},
		Calendar: Calendar{
			Backend:    CalendarICS,
			CalendarID: "primary",
			ICSPath:    filepath.Join(dataDir, "events.ics"),
			Workers:    4,
		},
		Artifacts: Artifacts{
			Dir: filepath.Join(dataDir, "cache"),
		},
		Store: Store{
			Dir: filepath.Join(dataDir, "history"),
		},
		Pipeline: Pipeline{
			CallTimeout:          Duration{10 * time.Minute},
			TranscriptionRetries: 2,
			RetryBackoff:         Duration{5 * time.Second},
		},
		Output: Output{
			TranscriptsDir: filepath.Join(dataDir, "transcripts"),
			MinutesDir:     filepath.Join(dataDir, "minutes"),
		},
	}
}

type Options struct {
	// Path of the TOML file. A missing file is not an error unless Required.
	Path     string
	Required bool
	// EnvFile is read into a map; it never modifies the process environment.
	EnvFile string
	DataDir string
	Getenv  func(string) string
}

// Load applies defaults, the TOML file, the .env file and the environment.
// Flags are applied by the caller on the returned value.
func Load(opts Options) (Config, error) {
	cfg := Default(opts.DataDir)

	if opts.Path != "" {
		if _, err := toml.DecodeFile(opts.Path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) || opts.Required {
				return Config{}, fmt.Errorf("read config %s: %w", opts.Path, err)
			}
		}
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	dotenv := map[string]string{}
	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read env file %s: %w", opts.EnvFile, err)
		}
	}

	lookup := func(key string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return strings.TrimSpace(dotenv[key])
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	cfg.expandPaths()
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) string) error {
	fields := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"MEETINGAGENT_TRANSCRIPTION_PROVIDER"}, &cfg.Transcription.Provider},
		{[]string{"MEETINGAGENT_ASSEMBLYAI_API_KEY", "ASSEMBLYAI_API_KEY"}, &cfg.Transcription.AssemblyAIKey},
		{[]string{"MEETINGAGENT_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY"}, &cfg.Transcription.DeepgramKey},
		{[]string{"MEETINGAGENT_LANGUAGE"}, &cfg.Transcription.Language},
		{[]string{"MEETINGAGENT_LLM_BASE_URL"}, &cfg.LLM.BaseURL},
		{[]string{"MEETINGAGENT_LLM_MODEL"}, &cfg.LLM.Model},
		{[]string{"MEETINGAGENT_LLM_API_KEY", "OPENAI_API_KEY"}, &cfg.LLM.APIKey},
		{[]string{"MEETINGAGENT_CALENDAR_BACKEND"}, &cfg.Calendar.Backend},
		{[]string{"MEETINGAGENT_CALENDAR_ID"}, &cfg.Calendar.CalendarID},
		{[]string{"MEETINGAGENT_CALENDAR_TIMEZONE"}, &cfg.Calendar.TimeZone},
		{[]string{"MEETINGAGENT_GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS"}, &cfg.Calendar.CredentialsFile},
		{[]string{"MEETINGAGENT_GOOGLE_TOKEN"}, &cfg.Calendar.TokenFile},
		{[]string{"MEETINGAGENT_ICS_PATH"}, &cfg.Calendar.ICSPath},
		{[]string{"MEETINGAGENT_S3_ENDPOINT"}, &cfg.Artifacts.S3Endpoint},
		{[]string{"MEETINGAGENT_S3_BUCKET"}, &cfg.Artifacts.S3Bucket},
		{[]string{"MEETINGAGENT_S3_ACCESS_KEY", "AWS_ACCESS_KEY_ID"}, &cfg.Artifacts.S3AccessKey},
		{[]string{"MEETINGAGENT_S3_SECRET_KEY", "AWS_SECRET_ACCESS_KEY"}, &cfg.Artifacts.S3SecretKey},
		{[]string{"MEETINGAGENT_POSTGRES_DSN"}, &cfg.Store.PostgresDSN},
		{[]string{"MEETINGAGENT_TRANSCRIPTS_DIR"}, &cfg.Output.TranscriptsDir},
		{[]string{"MEETINGAGENT_MINUTES_DIR"}, &cfg.Output.MinutesDir},
	}
	for _, s := range fields {
		for _, key := range s.keys {
			if v := lookup(key); v != "" {
				*s.dst = v
				break
			}
		}
	}

	if v := lookup("MEETINGAGENT_EVENT_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MEETINGAGENT_EVENT_THRESHOLD: %w", err)
		}
		cfg.Minutes.EventThreshold = threshold
	}
	if v := lookup("MEETINGAGENT_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MEETINGAGENT_CALL_TIMEOUT: %w", err)
		}
		cfg.Pipeline.CallTimeout = Duration{d}
	}
	if v := lookup("MEETINGAGENT_TRANSCRIPTION_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEETINGAGENT_TRANSCRIPTION_RETRIES: %w", err)
		}
		cfg.Pipeline.TranscriptionRetries = n
	}
	return nil
}

func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Calendar.CredentialsFile,
		&c.Calendar.TokenFile,
		&c.Calendar.ICSPath,
		&c.Artifacts.Dir,
		&c.Store.Dir,
		&c.Output.TranscriptsDir,
		&c.Output.MinutesDir,
	} {
		*p = expandTilde(*p)
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Transcription.Provider) {
	case ProviderAssemblyAI:
		if c.Transcription.AssemblyAIKey == "" {
			problems = append(problems, "transcription.assemblyai_api_key (or ASSEMBLYAI_API_KEY) is required")
		}
	case ProviderDeepgram:
		if c.Transcription.DeepgramKey == "" {
			problems = append(problems, "transcription.deepgram_api_key (or DEEPGRAM_API_KEY) is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("transcription.provider %q must be assemblyai or deepgram", c.Transcription.Provider))
	}
	if c.Transcription.MaxDuration.Duration <= 0 {
		problems = append(problems, "transcription.max_duration must be positive")
	}

	if strings.TrimSpace(c.LLM.Model) == "" {
		problems = append(problems, "llm.model is required")
	}
	if c.Minutes.EventThreshold < 0 || c.Minutes.EventThreshold > 1 {
		problems = append(problems, "minutes.event_threshold must be between 0 and 1")
	}

	switch strings.ToLower(c.Calendar.Backend) {
	case CalendarGoogle:
		if c.Calendar.CredentialsFile == "" || c.Calendar.TokenFile == "" {
			problems = append(problems, "calendar.credentials_file and calendar.token_file are required for the google backend")
		}
	case CalendarICS:
		if c.Calendar.ICSPath == "" {
			problems = append(problems, "calendar.ics_path is required for the ics backend")
		}
	case CalendarNone, "":
	default:
		problems = append(problems, fmt.Sprintf("calendar.backend %q must be google, ics or none", c.Calendar.Backend))
	}

	if c.Artifacts.S3Endpoint != "" && c.Artifacts.S3Bucket == "" {
		problems = append(problems, "artifacts.s3_bucket is required when artifacts.s3_endpoint is set")
	}
	if c.Pipeline.TranscriptionRetries < 0 {
		problems = append(problems, "pipeline.transcription_retries must not be negative")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
