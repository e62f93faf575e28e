package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// Config represents the complete docqa configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Corpus     CorpusConfig     `yaml:"corpus" json:"corpus"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Completion CompletionConfig `yaml:"completion" json:"completion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Resilience ResilienceConfig `yaml:"resilience" json:"resilience"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
	Tracing    TracingConfig    `yaml:"tracing" json:"tracing"`
}

// CorpusConfig lists the document folders that make up the corpus.
type CorpusConfig struct {
	// Folders are scanned in order; missing folders are skipped.
	Folders []string `yaml:"folders" json:"folders"`
}

// IndexConfig configures index building and the persisted artifact.
type IndexConfig struct {
	Path      string `yaml:"path" json:"path"`
	ChunkSize int    `yaml:"chunk_size" json:"chunk_size"`
	Workers   int    `yaml:"workers" json:"workers"`

	// FailFast aborts the whole rebuild on the first unreadable document.
	// When false a bad document is skipped and reported.
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`

	// RemoveStaleArtifact deletes the previous artifact when a rebuild finds no chunks.
	RemoveStaleArtifact bool `yaml:"remove_stale_artifact" json:"remove_stale_artifact"`

	// HNSW graph parameters.
	M        int `yaml:"m" json:"m"`
	EfSearch int `yaml:"ef_search" json:"ef_search"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string        `yaml:"provider" json:"provider"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	CacheSize  int           `yaml:"cache_size" json:"cache_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	BaseURL    string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	OllamaHost string        `yaml:"ollama_host,omitempty" json:"ollama_host,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty" json:"-"`
}

// CompletionConfig configures the answer-generation provider.
type CompletionConfig struct {
	Provider    string        `yaml:"provider" json:"provider"`
	Model       string        `yaml:"model" json:"model"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float32       `yaml:"temperature" json:"temperature"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	BaseURL     string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty" json:"-"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" json:"top_k"`
}

// ResilienceConfig configures retry, circuit breaking and rate limiting of provider calls.
type ResilienceConfig struct {
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay      time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	BreakerFailures   int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerReset      time.Duration `yaml:"breaker_reset" json:"breaker_reset"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr"`
	AuthToken       string        `yaml:"auth_token,omitempty" json:"-"`
	RateLimitRPM    int           `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	WatchDebounce   time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// TracingConfig configures OpenTelemetry export. An empty endpoint disables tracing.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure" json:"insecure"`
	ServiceName string `yaml:"service_name" json:"service_name"`
}

// Project config file names, in lookup order.
var projectConfigNames = []string{".docqa.yaml", ".docqa.yml"}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			Folders: []string{"data/qdd", "data/qcp", "data/plr", "data/opsex"},
		},
		Index: IndexConfig{
			Path:      "vector.index",
			ChunkSize: 500,
			Workers:   4,
			M:         16,
			EfSearch:  64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "openai",
			Model:      "text-embedding-ada-002",
			Dimensions: 1536,
			BatchSize:  256,
			CacheSize:  1000,
			Timeout:    30 * time.Second,
		},
		Completion: CompletionConfig{
			Provider:    "openai",
			Model:       "gpt-3.5-turbo",
			MaxTokens:   256,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Resilience: ResilienceConfig{
			MaxRetries:      3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        8 * time.Second,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			WatchDebounce:   2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Insecure:    true,
			ServiceName: "docqa",
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/docqa/config.yaml, or ~/.config/docqa/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docqa", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docqa", "config.yaml")
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load resolves the configuration for dir. Sources, lowest precedence first:
//  1. Defaults
//  2. User config ($XDG_CONFIG_HOME/docqa/config.yaml)
//  3. explicit if non-empty, otherwise .docqa.yaml / .docqa.yml in dir
//  4. Environment variables (DOCQA_*, OPENAI_API_KEY)
func Load(dir, explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if !fileExists(explicit) {
			return nil, docerrors.New(docerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicit), nil)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	} else if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromDir loads the first project config file found in dir. None is fine.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range projectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML overlays the keys present in path onto c. Unknown keys are rejected.
// c is left unchanged when the file fails to parse.
func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}
	defer func() { _ = f.Close() }()

	next := *c
	next.Corpus.Folders = append([]string(nil), c.Corpus.Folders...)

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&next); err != nil && !errors.Is(err, io.EOF) {
		return docerrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	*c = next
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if c.Embeddings.APIKey == "" {
			c.Embeddings.APIKey = v
		}
		if c.Completion.APIKey == "" {
			c.Completion.APIKey = v
		}
	}
	if v := os.Getenv("DOCQA_OPENAI_API_KEY"); v != "" {
		c.Embeddings.APIKey = v
		c.Completion.APIKey = v
	}

	if v := os.Getenv("DOCQA_CORPUS_FOLDERS"); v != "" {
		var folders []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				folders = append(folders, f)
			}
		}
		c.Corpus.Folders = folders
	}
	if v := os.Getenv("DOCQA_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("DOCQA_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.ChunkSize = n
		}
	}
	if v := os.Getenv("DOCQA_FAIL_FAST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Index.FailFast = b
		}
	}

	if v := os.Getenv("DOCQA_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCQA_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCQA_EMBEDDINGS_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("DOCQA_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCQA_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.BaseURL = v
		c.Completion.BaseURL = v
	}

	if v := os.Getenv("DOCQA_COMPLETION_PROVIDER"); v != "" {
		c.Completion.Provider = v
	}
	if v := os.Getenv("DOCQA_COMPLETION_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv("DOCQA_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			c.Completion.Temperature = float32(f)
		}
	}
	if v := os.Getenv("DOCQA_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = n
		}
	}

	if v := os.Getenv("DOCQA_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DOCQA_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("DOCQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("DOCQA_TRACING_ENDPOINT"); v != "" {
		c.Tracing.Endpoint = v
	}
}

var (
	validEmbedders  = map[string]bool{"openai": true, "ollama": true, "static": true}
	validCompleters = map[string]bool{"openai": true, "extractive": true}
	validLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate validates the configuration and returns a config error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return docerrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if c.Index.Path == "" {
		return invalid("index.path must not be empty")
	}
	if c.Index.ChunkSize <= 0 {
		return invalid("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.Workers < 0 {
		return invalid("index.workers must be non-negative, got %d", c.Index.Workers)
	}
	if c.Embeddings.Dimensions <= 0 {
		return invalid("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return invalid("completion.temperature must be between 0 and 2, got %.2f", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens <= 0 {
		return invalid("completion.max_tokens must be positive, got %d", c.Completion.MaxTokens)
	}
	if !validEmbedders[strings.ToLower(c.Embeddings.Provider)] {
		return invalid("embeddings.provider must be 'openai', 'ollama' or 'static', got %s", c.Embeddings.Provider)
	}
	if !validCompleters[strings.ToLower(c.Completion.Provider)] {
		return invalid("completion.provider must be 'openai' or 'extractive', got %s", c.Completion.Provider)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Server.RateLimitRPM < 0 {
		return invalid("server.rate_limit_rpm must be non-negative, got %d", c.Server.RateLimitRPM)
	}
	if c.Resilience.MaxRetries < 0 {
		return invalid("resilience.max_retries must be non-negative, got %d", c.Resilience.MaxRetries)
	}
	return nil
}

// ApplyOffline switches both providers to their offline implementations.
func (c *Config) ApplyOffline() {
	c.Embeddings.Provider = "static"
	c.Completion.Provider = "extractive"
}

// WriteYAML writes the configuration to a YAML file, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
