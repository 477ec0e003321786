/*
Package config loads newsrag settings.

# Overview

Config wraps decoded YAML or JSON and returns typed values with defaults.
Keys may be dotted paths into nested sections:

	cfg, err := config.FromFile("newsrag.yaml")
	if err != nil {
	    return err
	}
	model := cfg.String("llm.model", "gpt-3.5-turbo")
	timeout := cfg.Duration("llm.timeout", time.Minute)

# Settings

Load layers defaults, an optional file and the environment into a Settings
value:

	settings, err := config.Load(path)

A file looks like:

	pipeline:
	  disable_fine_tuned_analyzer: false
	  max_steps: 20
	  snapshot_path: newsrag.db
	llm:
	  provider: openai
	  model: gpt-3.5-turbo
	store:
	  database_url: postgres://localhost/news
	telemetry:
	  log_level: debug

Environment variables override the file:

  - OPENAI_API_KEY, ANTHROPIC_API_KEY (or the *_FILE variants)
  - DATABASE_URL
  - OLLAMA_URL
  - NEWSRAG_DISABLE_FINE_TUNED_ANALYZER
  - LOG_LEVEL
  - OTEL_EXPORTER_OTLP_ENDPOINT
*/
package config
