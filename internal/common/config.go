package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration tree, loaded from TOML with
// priority: defaults -> config files -> .env/environment -> CLI flags.
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Vector      VectorConfig    `toml:"vector"`
	Milvus      MilvusConfig    `toml:"milvus"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	FinData     FinDataConfig   `toml:"findata"`
	LLM         LLMConfig       `toml:"llm"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Workflow    WorkflowConfig  `toml:"workflow"`
	Prompts     PromptsConfig   `toml:"prompts"`
	Industries  IndustryConfig  `toml:"industries"`
	Companies   []CompanySeed   `toml:"companies"`
	Reports     ReportsConfig   `toml:"reports"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port" validate:"min=1,max=65535"`
}

type LoggingConfig struct {
	Level         string   `toml:"level"`
	Format        string   `toml:"format"`
	Output        []string `toml:"output"`
	MinEventLevel string   `toml:"min_event_level"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

type BadgerConfig struct {
	Path string `toml:"path"`
}

// VectorConfig selects and tunes the vector store backend.
type VectorConfig struct {
	Backend    string `toml:"backend" validate:"oneof=milvus embedded"`
	Collection string `toml:"collection"`
	Dimension  int    `toml:"dimension" validate:"min=1"`
	IndexPath  string `toml:"index_path"` // embedded backend graph file
}

type MilvusConfig struct {
	Address  string `toml:"address"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type EmbeddingConfig struct {
	BaseURL       string `toml:"base_url"`
	Model         string `toml:"model"`
	BatchSize     int    `toml:"batch_size" validate:"min=1"`
	TimeoutSec    int    `toml:"timeout_seconds"`
	RatePerSecond int    `toml:"rate_per_second"`
	MaxParallel   int    `toml:"max_parallel" validate:"min=1"`
}

type FinDataConfig struct {
	BaseURL       string `toml:"base_url"`
	TimeoutSec    int    `toml:"timeout_seconds"`
	ReportType    string `toml:"report_type" validate:"oneof=A B"`
	RatePerSecond int    `toml:"rate_per_second"`
}

type LLMProvider string

const (
	LLMProviderDeepSeek LLMProvider = "deepseek"
	LLMProviderClaude   LLMProvider = "claude"
	LLMProviderGemini   LLMProvider = "gemini"
)

type LLMConfig struct {
	Mode     LLMProvider    `toml:"mode" validate:"oneof=deepseek claude gemini"`
	DeepSeek DeepSeekConfig `toml:"deepseek"`
	Claude   ClaudeConfig   `toml:"claude"`
	Gemini   GeminiConfig   `toml:"gemini"`
}

type DeepSeekConfig struct {
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSec  int     `toml:"timeout_seconds"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSec  int     `toml:"timeout_seconds"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSec  int     `toml:"timeout_seconds"`
}

type ChunkingConfig struct {
	MaxChars  int    `toml:"max_chars" validate:"min=1"`
	MinChars  int    `toml:"min_chars"`
	RulesFile string `toml:"rules_file"` // optional YAML keyword rules override
}

type WorkflowConfig struct {
	MaxRegenerations int `toml:"max_regenerations"`
	QualityThreshold int `toml:"quality_threshold"`
	MaxSteps         int `toml:"max_steps"`
}

type PromptsConfig struct {
	Dir string `toml:"dir"` // optional template override directory
}

type IndustryConfig struct {
	ProfilesDir string `toml:"profiles_dir"` // optional YAML profile directory
}

// CompanySeed is a catalog entry mapping a display name to its stock code.
type CompanySeed struct {
	Name     string `toml:"name"`
	Code     string `toml:"code"`
	Industry string `toml:"industry"`
}

type ReportsConfig struct {
	OutputDir string `toml:"output_dir"`
}

type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	HealthCron  string `toml:"health_cron"`
	FlushCron   string `toml:"flush_cron"`
	HealthQuiet bool   `toml:"health_quiet"`
}

type WebSocketConfig struct {
	MinLevel          string            `toml:"min_level"`
	ExcludePatterns   []string          `toml:"exclude_patterns"`
	AllowedEvents     []string          `toml:"allowed_events"`
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
	TimeThreshold     string            `toml:"time_threshold"`
}

// NewDefaultConfig returns the configuration defaults used when no file,
// environment, or flag overrides are present.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Logging: LoggingConfig{
			Level:         "info",
			Format:        "text",
			Output:        []string{"stdout", "file"},
			MinEventLevel: "info",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/finreview.db",
			},
		},
		Vector: VectorConfig{
			Backend:    "milvus",
			Collection: "financial_reports",
			Dimension:  1024,
			IndexPath:  "./data/vectors.hnsw",
		},
		Milvus: MilvusConfig{
			Address: "localhost:19530",
		},
		Embedding: EmbeddingConfig{
			BaseURL:       "http://localhost:8086",
			Model:         "BAAI/bge-large-zh-v1.5",
			BatchSize:     32,
			TimeoutSec:    60,
			RatePerSecond: 10,
			MaxParallel:   4,
		},
		FinData: FinDataConfig{
			BaseURL:       "http://localhost:8087",
			TimeoutSec:    30,
			ReportType:    "A",
			RatePerSecond: 10,
		},
		LLM: LLMConfig{
			Mode: LLMProviderDeepSeek,
			DeepSeek: DeepSeekConfig{
				BaseURL:     "https://api.deepseek.com",
				Model:       "deepseek-chat",
				MaxTokens:   4096,
				Temperature: 1.0,
				TimeoutSec:  120,
			},
			Claude: ClaudeConfig{
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   4096,
				Temperature: 0.7,
				TimeoutSec:  120,
			},
			Gemini: GeminiConfig{
				Model:       "gemini-2.0-flash",
				MaxTokens:   4096,
				Temperature: 0.7,
				TimeoutSec:  120,
			},
		},
		Chunking: ChunkingConfig{
			MaxChars: 600,
			MinChars: 200,
		},
		Workflow: WorkflowConfig{
			MaxRegenerations: 2,
			QualityThreshold: 60,
			MaxSteps:         32,
		},
		Companies: []CompanySeed{
			{Name: "三六零", Code: "601360", Industry: "computer"},
			{Name: "海康威视", Code: "002415", Industry: "computer"},
			{Name: "科大讯飞", Code: "002230", Industry: "computer"},
			{Name: "用友网络", Code: "600588", Industry: "computer"},
		},
		Reports: ReportsConfig{
			OutputDir: "./data/reports",
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			HealthCron: "*/5 * * * *",
			FlushCron:  "*/15 * * * *",
		},
		WebSocket: WebSocketConfig{
			MinLevel: "info",
			ThrottleIntervals: map[string]string{
				"workflow_progress": "500ms",
			},
			TimeThreshold: "10s",
		},
	}
}

// LoadFromFile loads configuration from a single file (may be empty).
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> environment. Later files override
// earlier files. A .env file in the working directory is loaded into the
// process environment first so FINREVIEW_* variables can live there.
func LoadFromFiles(paths ...string) (*Config, error) {
	// .env is optional; ignore absence
	_ = godotenv.Load()

	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration tree against its struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies FINREVIEW_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINREVIEW_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("FINREVIEW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINREVIEW_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("FINREVIEW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINREVIEW_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Storage
	if badgerPath := os.Getenv("FINREVIEW_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Vector store
	if backend := os.Getenv("FINREVIEW_VECTOR_BACKEND"); backend != "" {
		config.Vector.Backend = backend
	}
	if collection := os.Getenv("FINREVIEW_VECTOR_COLLECTION"); collection != "" {
		config.Vector.Collection = collection
	}
	if dim := os.Getenv("FINREVIEW_VECTOR_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Vector.Dimension = d
		}
	}
	if addr := os.Getenv("FINREVIEW_MILVUS_ADDRESS"); addr != "" {
		config.Milvus.Address = addr
	}
	if user := os.Getenv("FINREVIEW_MILVUS_USER"); user != "" {
		config.Milvus.User = user
	}
	if password := os.Getenv("FINREVIEW_MILVUS_PASSWORD"); password != "" {
		config.Milvus.Password = password
	}

	// Embedding service
	if baseURL := os.Getenv("FINREVIEW_EMBEDDING_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}
	if model := os.Getenv("FINREVIEW_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if batch := os.Getenv("FINREVIEW_EMBEDDING_BATCH_SIZE"); batch != "" {
		if b, err := strconv.Atoi(batch); err == nil {
			config.Embedding.BatchSize = b
		}
	}

	// Financial data service
	if baseURL := os.Getenv("FINREVIEW_FINDATA_URL"); baseURL != "" {
		config.FinData.BaseURL = baseURL
	}
	if timeout := os.Getenv("FINREVIEW_FINDATA_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.FinData.TimeoutSec = t
		}
	}

	// LLM
	if mode := os.Getenv("FINREVIEW_LLM_MODE"); mode != "" {
		config.LLM.Mode = LLMProvider(mode)
	}
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		config.LLM.DeepSeek.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.LLM.Claude.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.LLM.Gemini.APIKey = key
	}

	// Workflow
	if regen := os.Getenv("FINREVIEW_MAX_REGENERATIONS"); regen != "" {
		if r, err := strconv.Atoi(regen); err == nil {
			config.Workflow.MaxRegenerations = r
		}
	}

	// Reports
	if dir := os.Getenv("FINREVIEW_REPORTS_DIR"); dir != "" {
		config.Reports.OutputDir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
