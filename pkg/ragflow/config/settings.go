package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the resolved configuration of a newsrag process.
type Settings struct {
	Pipeline   PipelineSettings
	LLM        LLMSettings
	FineTuned  FineTunedSettings
	Store      StoreSettings
	Telemetry  TelemetrySettings
	Evaluation EvaluationSettings
}

// PipelineSettings configure the question-answering machine.
type PipelineSettings struct {
	DisableFineTunedAnalyzer bool
	MaxSteps                 int
	CleanerConcurrency       int
	// SnapshotPath is the SQLite file for run snapshots. Empty disables
	// snapshots.
	SnapshotPath string
}

// LLMSettings select the completion backend.
type LLMSettings struct {
	// Provider is one of openai, anthropic, ollama or cli.
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
}

// FineTunedSettings select the fine-tuned query analysis model, served by
// Ollama.
type FineTunedSettings struct {
	Model   string
	BaseURL string
}

// StoreSettings configure the vector store and its embedder.
type StoreSettings struct {
	DatabaseURL        string
	Table              string
	EmbeddingModel     string
	EmbeddingURL       string
	EmbeddingCacheSize int
}

// TelemetrySettings configure logging and OpenTelemetry export.
type TelemetrySettings struct {
	ServiceName    string
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	MetricsEnabled bool
	TracingEnabled bool
}

// EvaluationSettings configure the benchmark harness.
type EvaluationSettings struct {
	Output      string
	Concurrency int
}

// Provider names accepted in LLMSettings.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderCLI       = "cli"
)

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Pipeline: PipelineSettings{
			MaxSteps:           20,
			CleanerConcurrency: 4,
		},
		LLM: LLMSettings{
			Provider:          ProviderOpenAI,
			Model:             "gpt-3.5-turbo",
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		FineTuned: FineTunedSettings{
			Model:   "smollm2-lora-query-analyzer",
			BaseURL: "http://localhost:11434",
		},
		Store: StoreSettings{
			Table:              "documents",
			EmbeddingModel:     "all-minilm",
			EmbeddingURL:       "http://localhost:11434",
			EmbeddingCacheSize: 1024,
		},
		Telemetry: TelemetrySettings{
			ServiceName: "newsrag",
			LogLevel:    "info",
			LogFormat:   "text",
		},
		Evaluation: EvaluationSettings{
			Output:      "evaluation_results.json",
			Concurrency: 2,
		},
	}
}

// Load resolves settings from defaults, then the file at path (skipped
// when path is empty), then the environment.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s = s.merge(cfg)
	}
	s = s.withEnv(os.LookupEnv)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// merge overlays values present in cfg.
func (s Settings) merge(cfg Config) Settings {
	p := cfg.Sub("pipeline")
	s.Pipeline.DisableFineTunedAnalyzer = p.Bool("disable_fine_tuned_analyzer", s.Pipeline.DisableFineTunedAnalyzer)
	s.Pipeline.MaxSteps = p.Int("max_steps", s.Pipeline.MaxSteps)
	s.Pipeline.CleanerConcurrency = p.Int("cleaner_concurrency", s.Pipeline.CleanerConcurrency)
	s.Pipeline.SnapshotPath = p.String("snapshot_path", s.Pipeline.SnapshotPath)

	l := cfg.Sub("llm")
	s.LLM.Provider = l.String("provider", s.LLM.Provider)
	s.LLM.Model = l.String("model", s.LLM.Model)
	s.LLM.APIKey = l.String("api_key", s.LLM.APIKey)
	s.LLM.BaseURL = l.String("base_url", s.LLM.BaseURL)
	s.LLM.Timeout = l.Duration("timeout", s.LLM.Timeout)
	s.LLM.MaxRetries = l.Int("max_retries", s.LLM.MaxRetries)
	s.LLM.RequestsPerSecond = l.Float("requests_per_second", s.LLM.RequestsPerSecond)
	s.LLM.Burst = l.Int("burst", s.LLM.Burst)

	f := cfg.Sub("fine_tuned")
	s.FineTuned.Model = f.String("model", s.FineTuned.Model)
	s.FineTuned.BaseURL = f.String("base_url", s.FineTuned.BaseURL)

	st := cfg.Sub("store")
	s.Store.DatabaseURL = st.String("database_url", s.Store.DatabaseURL)
	s.Store.Table = st.String("table", s.Store.Table)
	s.Store.EmbeddingModel = st.String("embedding_model", s.Store.EmbeddingModel)
	s.Store.EmbeddingURL = st.String("embedding_url", s.Store.EmbeddingURL)
	s.Store.EmbeddingCacheSize = st.Int("embedding_cache_size", s.Store.EmbeddingCacheSize)

	t := cfg.Sub("telemetry")
	s.Telemetry.ServiceName = t.String("service_name", s.Telemetry.ServiceName)
	s.Telemetry.LogLevel = t.String("log_level", s.Telemetry.LogLevel)
	s.Telemetry.LogFormat = t.String("log_format", s.Telemetry.LogFormat)
	s.Telemetry.OTLPEndpoint = t.String("otlp_endpoint", s.Telemetry.OTLPEndpoint)
	s.Telemetry.MetricsEnabled = t.Bool("metrics", s.Telemetry.MetricsEnabled)
	s.Telemetry.TracingEnabled = t.Bool("tracing", s.Telemetry.TracingEnabled)

	e := cfg.Sub("evaluation")
	s.Evaluation.Output = e.String("output", s.Evaluation.Output)
	s.Evaluation.Concurrency = e.Int("concurrency", s.Evaluation.Concurrency)
	return s
}

type lookupFunc func(string) (string, bool)

// withEnv applies environment overrides. API keys follow the selected
// provider; every secret also accepts a *_FILE variant.
func (s Settings) withEnv(lookup lookupFunc) Settings {
	if v, ok := lookup("NEWSRAG_LLM_PROVIDER"); ok {
		s.LLM.Provider = v
	}
	if v, ok := lookup("NEWSRAG_LLM_MODEL"); ok {
		s.LLM.Model = v
	}
	switch s.LLM.Provider {
	case ProviderOpenAI:
		s.LLM.APIKey = getSecret(lookup, "OPENAI_API_KEY", "OPENAI_API_KEY_FILE", s.LLM.APIKey)
	case ProviderAnthropic:
		s.LLM.APIKey = getSecret(lookup, "ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY_FILE", s.LLM.APIKey)
	}

	s.Store.DatabaseURL = getSecret(lookup, "DATABASE_URL", "DATABASE_URL_FILE", s.Store.DatabaseURL)

	if v, ok := lookup("OLLAMA_URL"); ok {
		s.FineTuned.BaseURL = v
		s.Store.EmbeddingURL = v
		if s.LLM.Provider == ProviderOllama {
			s.LLM.BaseURL = v
		}
	}
	s.Store.EmbeddingURL = getEnvWithAlt(lookup, "NEWSRAG_EMBEDDING_URL", "", s.Store.EmbeddingURL)

	if v, ok := lookup("NEWSRAG_DISABLE_FINE_TUNED_ANALYZER"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Pipeline.DisableFineTunedAnalyzer = b
		}
	}
	// DISABLE_LORA is the name older deployments used.
	if v, ok := lookup("DISABLE_LORA"); ok && strings.EqualFold(v, "true") {
		s.Pipeline.DisableFineTunedAnalyzer = true
	}

	s.Pipeline.MaxSteps = getEnvInt(lookup, "NEWSRAG_MAX_STEPS", s.Pipeline.MaxSteps)
	s.Pipeline.SnapshotPath = getEnvWithAlt(lookup, "NEWSRAG_SNAPSHOT_PATH", "", s.Pipeline.SnapshotPath)

	s.Telemetry.LogLevel = getEnvWithAlt(lookup, "LOG_LEVEL", "NEWSRAG_LOG_LEVEL", s.Telemetry.LogLevel)
	s.Telemetry.OTLPEndpoint = getEnvWithAlt(lookup, "OTEL_EXPORTER_OTLP_ENDPOINT", "", s.Telemetry.OTLPEndpoint)
	s.Telemetry.ServiceName = getEnvWithAlt(lookup, "OTEL_SERVICE_NAME", "", s.Telemetry.ServiceName)
	return s
}

// Validate reports settings no component can run with.
func (s Settings) Validate() error {
	var errs []error
	switch s.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderCLI:
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", s.LLM.Provider))
	}
	if s.Pipeline.MaxSteps <= 0 || s.Pipeline.MaxSteps > 1000 {
		errs = append(errs, fmt.Errorf("pipeline.max_steps: must be in (0, 1000], got %d", s.Pipeline.MaxSteps))
	}
	if s.Pipeline.CleanerConcurrency < 0 {
		errs = append(errs, fmt.Errorf("pipeline.cleaner_concurrency: must not be negative, got %d", s.Pipeline.CleanerConcurrency))
	}
	if s.LLM.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("llm.requests_per_second: must not be negative, got %v", s.LLM.RequestsPerSecond))
	}
	if s.Evaluation.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("evaluation.concurrency: must be positive, got %d", s.Evaluation.Concurrency))
	}
	return errors.Join(errs...)
}

func getSecret(lookup lookupFunc, envKey, fileEnvKey, fallback string) string {
	if value, ok := lookup(envKey); ok {
		return value
	}
	if filePath, ok := lookup(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(lookup lookupFunc, key, altKey, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	if altKey != "" {
		if value, ok := lookup(altKey); ok {
			return value
		}
	}
	return fallback
}

func getEnvInt(lookup lookupFunc, key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
