package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/config"
	"github.com/fmueller/meetingagent/internal/logging"
	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/fmueller/meetingagent/internal/platform"
	"github.com/fmueller/meetingagent/internal/store"
	"github.com/fmueller/meetingagent/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	logFile    string
	configPath string
	envFile    string
	dataDir    string

	overrides flagOverrides

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	loadConfigFn func() (config.Config, error)
	runtimeFn    func(ctx context.Context) (*runtime, error)
	analyzerFn   func() (*pipeline.Orchestrator, error)
	historyFn    func(ctx context.Context) (store.Store, error)
}

// flagOverrides are applied on top of the loaded configuration, but only for
// flags the user actually set.
type flagOverrides struct {
	provider        string
	language        string
	llmModel        string
	llmBaseURL      string
	calendarBackend string
	eventThreshold  float64
	retries         int
	callTimeout     time.Duration
	transcriptsDir  string
	minutesDir      string
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{out: os.Stdout})
}

func newRootCmd(app *appState) *cobra.Command {
	if app.loadConfigFn == nil {
		app.loadConfigFn = app.loadConfig
	}
	if app.runtimeFn == nil {
		app.runtimeFn = app.buildRuntime
	}
	if app.analyzerFn == nil {
		app.analyzerFn = func() (*pipeline.Orchestrator, error) { return buildAnalyzer(app.cfg, app.log()) }
	}
	if app.historyFn == nil {
		app.historyFn = func(ctx context.Context) (store.Store, error) { return openHistory(ctx, app.cfg) }
	}

	cmd := &cobra.Command{
		Use:           "meetingagent",
		Short:         "Turn meeting recordings into minutes, action items and calendar events",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs, File: app.logFile})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			if cmd.Name() == "version" {
				return nil
			}

			cfg, err := app.loadConfigFn()
			if err != nil {
				return err
			}
			app.cfg = app.applyOverrides(cmd, cfg)
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindConfigFlags(cmd, app)

	cmd.AddCommand(newProcessCmd(app))
	cmd.AddCommand(newMinutesCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newTranscriptCmd(app))
	cmd.AddCommand(newAnalyzeCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().StringVar(&app.logFile, "log-file", app.logFile, "Also write logs to this file")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindConfigFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Config file (default $XDG_CONFIG_HOME/meetingagent/config.toml)")
	cmd.PersistentFlags().StringVar(&app.envFile, "env-file", ".env", "Read API keys from this dotenv file when present")
	cmd.PersistentFlags().StringVar(&app.dataDir, "data-dir", app.dataDir, "Directory for cache, history and outputs")
}

func bindPipelineFlags(cmd *cobra.Command, app *appState) {
	o := &app.overrides
	cmd.Flags().StringVar(&o.provider, "provider", "", "Transcription provider: assemblyai|deepgram")
	cmd.Flags().StringVar(&o.language, "language", "", "Language code passed to the transcription provider")
	cmd.Flags().StringVar(&o.llmModel, "llm-model", "", "Language model used for speakers and minutes")
	cmd.Flags().StringVar(&o.llmBaseURL, "llm-base-url", "", "OpenAI-compatible endpoint, e.g. http://localhost:11434/v1")
	cmd.Flags().IntVar(&o.retries, "retries", 0, "Transcription retries for API errors and timeouts")
	cmd.Flags().DurationVar(&o.callTimeout, "call-timeout", 0, "Timeout for each external call")
	cmd.Flags().StringVar(&o.transcriptsDir, "transcripts-dir", "", "Where transcript text files are written")
	cmd.Flags().StringVar(&o.minutesDir, "minutes-dir", "", "Where minutes markdown files are written")
}

func bindCalendarFlags(cmd *cobra.Command, app *appState) {
	o := &app.overrides
	cmd.Flags().StringVar(&o.calendarBackend, "calendar", "", "Calendar backend: google|ics|none")
	cmd.Flags().Float64Var(&o.eventThreshold, "event-threshold", 0, "Minimum confidence for an event to be created")
}

func (a *appState) applyOverrides(cmd *cobra.Command, cfg config.Config) config.Config {
	o := a.overrides
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("provider") {
		cfg.Transcription.Provider = strings.ToLower(strings.TrimSpace(o.provider))
	}
	if changed("language") {
		cfg.Transcription.Language = strings.TrimSpace(o.language)
	}
	if changed("llm-model") {
		cfg.LLM.Model = o.llmModel
	}
	if changed("llm-base-url") {
		cfg.LLM.BaseURL = o.llmBaseURL
	}
	if changed("retries") {
		cfg.Pipeline.TranscriptionRetries = o.retries
	}
	if changed("call-timeout") {
		cfg.Pipeline.CallTimeout = config.Duration{Duration: o.callTimeout}
	}
	if changed("transcripts-dir") {
		cfg.Output.TranscriptsDir = o.transcriptsDir
	}
	if changed("minutes-dir") {
		cfg.Output.MinutesDir = o.minutesDir
	}
	if changed("calendar") {
		cfg.Calendar.Backend = strings.ToLower(strings.TrimSpace(o.calendarBackend))
	}
	if changed("event-threshold") {
		cfg.Minutes.EventThreshold = o.eventThreshold
	}
	return cfg
}

func (a *appState) loadConfig() (config.Config, error) {
	dataDir, err := platform.ResolveDataDir(a.dataDir)
	if err != nil {
		return config.Config{}, err
	}
	path, err := platform.ResolveConfigFile(a.configPath)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(config.Options{
		Path:     path,
		Required: a.configPath != "",
		EnvFile:  a.envFile,
		DataDir:  dataDir,
	})
	if err != nil {
		return config.Config{}, err
	}
	a.log().Debug("configuration loaded", zap.String("config", path), zap.String("data_dir", dataDir))
	return cfg, nil
}

func (a *appState) buildRuntime(ctx context.Context) (*runtime, error) {
	return buildRuntime(ctx, a.cfg, a.log())
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}
