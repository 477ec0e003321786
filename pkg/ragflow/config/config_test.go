package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/newsrag/pkg/ragflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.NotNil(t, config.New(nil).Raw())
	assert.Equal(t, "v", config.New(map[string]any{"k": "v"}).String("k", ""))
}

func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"model": "gpt"}, "model", "default", "gpt"},
		{"key missing", map[string]any{"other": "value"}, "model", "default", "default"},
		{"empty string", map[string]any{"model": ""}, "model", "default", ""},
		{"wrong type", map[string]any{"model": 123}, "model", "default", "default"},
		{"nested path", map[string]any{"llm": map[string]any{"model": "claude"}}, "llm.model", "default", "claude"},
		{"nested yaml map", map[string]any{"llm": map[any]any{"model": "claude"}}, "llm.model", "default", "claude"},
		{"literal dotted key wins", map[string]any{"llm.model": "flat", "llm": map[string]any{"model": "nested"}}, "llm.model", "", "flat"},
		{"path through scalar", map[string]any{"llm": "openai"}, "llm.model", "default", "default"},
		{"nil map", nil, "model", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.New(tt.data).String(tt.key, tt.defaultVal))
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "30s", 30 * time.Second},
		{"complex string", "1h30m", 90 * time.Minute},
		{"int seconds", 5, 5 * time.Second},
		{"int64 seconds", int64(7), 7 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 2 * time.Minute, 2 * time.Minute},
		{"invalid string", "soon", 10 * time.Second},
		{"wrong type", true, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", 10*time.Second))
		})
	}
}

func TestNumbersAndBools(t *testing.T) {
	cfg := config.New(map[string]any{
		"steps":    20,
		"steps64":  int64(30),
		"stepsF":   40.0,
		"fraction": 2.5,
		"rps":      3,
		"enabled":  true,
		"word":     "yes",
	})

	assert.Equal(t, 20, cfg.Int("steps", 0))
	assert.Equal(t, 30, cfg.Int("steps64", 0))
	assert.Equal(t, 40, cfg.Int("stepsF", 0))
	assert.Equal(t, 9, cfg.Int("fraction", 9), "fractional floats are rejected")
	assert.Equal(t, 3.0, cfg.Float("rps", 0))
	assert.Equal(t, 2.5, cfg.Float("fraction", 0))
	assert.Equal(t, 1.0, cfg.Float("word", 1))
	assert.True(t, cfg.Bool("enabled", false))
	assert.False(t, cfg.Bool("word", false))
	assert.True(t, cfg.Bool("missing", true))
}

func TestStringSlice(t *testing.T) {
	cfg := config.New(map[string]any{
		"typed":  []string{"a", "b"},
		"any":    []any{"c", "d"},
		"mixed":  []any{"e", 1},
		"scalar": "f",
	})

	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("typed", nil))
	assert.Equal(t, []string{"c", "d"}, cfg.StringSlice("any", nil))
	assert.Equal(t, []string{"x"}, cfg.StringSlice("mixed", []string{"x"}))
	assert.Equal(t, []string{"x"}, cfg.StringSlice("scalar", []string{"x"}))
}

func TestSubAndHas(t *testing.T) {
	cfg := config.New(map[string]any{
		"store": map[string]any{"table": "articles", "embedding": map[string]any{"model": "all-minilm"}},
		"flat":  1,
	})

	store := cfg.Sub("store")
	assert.Equal(t, "articles", store.String("table", ""))
	assert.Equal(t, "all-minilm", store.String("embedding.model", ""))
	assert.True(t, cfg.Has("store.embedding.model"))
	assert.False(t, cfg.Has("store.missing"))
	assert.Empty(t, cfg.Sub("flat").Raw())
	assert.Empty(t, cfg.Sub("missing").Raw())
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
llm:
  provider: anthropic
  timeout: 45s
pipeline:
  max_steps: 12
`), config.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.String("llm.provider", ""))
	assert.Equal(t, 45*time.Second, cfg.Duration("llm.timeout", 0))
	assert.Equal(t, 12, cfg.Int("pipeline.max_steps", 0))

	cfg, err = config.Parse([]byte(`{"pipeline": {"max_steps": 15}}`), config.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Int("pipeline.max_steps", 0))

	tests := []struct {
		name   string
		data   string
		format config.Format
	}{
		{"bad yaml", "llm: [unclosed", config.FormatYAML},
		{"bad json", "{", config.FormatJSON},
		{"unknown format", "a: 1", config.Format("toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestParse_Blank(t *testing.T) {
	for _, format := range []config.Format{config.FormatYAML, config.FormatJSON} {
		cfg, err := config.Parse([]byte("  \n"), format)
		require.NoError(t, err, format)
		assert.Empty(t, cfg.Raw())
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "newsrag.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("llm:\n  model: m\n"), 0o600))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "m", cfg.String("llm.model", ""))

	jsonPath := filepath.Join(dir, "newsrag.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"llm": {"model": "j"}}`), 0o600))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "j", cfg.String("llm.model", ""))

	_, err = config.FromFile(filepath.Join(dir, "newsrag.toml"))
	assert.Error(t, err)

	tomlPath := filepath.Join(dir, "present.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x = 1"), 0o600))
	_, err = config.FromFile(tomlPath)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}
