package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for SafeDesk
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Quiz      QuizConfig      `mapstructure:"quiz"`
	Whisper   WhisperConfig   `mapstructure:"whisper"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// KnowledgeConfig holds document corpus configuration
type KnowledgeConfig struct {
	Root         string `mapstructure:"root"`
	MaxChunkLen  int    `mapstructure:"max_chunk_len"`
	PDFPageLimit int    `mapstructure:"pdf_page_limit"`
	SearchLimit  int    `mapstructure:"search_limit"`
	Watch        bool   `mapstructure:"watch"`
}

// LLMConfig holds model endpoint configuration
type LLMConfig struct {
	APIURL             string  `mapstructure:"api_url"`
	Model              string  `mapstructure:"model"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	SystemPrompt       string  `mapstructure:"system_prompt"`
	MaxHistoryMessages int     `mapstructure:"max_history_messages"`
}

// QuizConfig holds quiz generation configuration
type QuizConfig struct {
	ContextChunks int `mapstructure:"context_chunks"`
}

// WhisperConfig holds speech-to-text configuration
type WhisperConfig struct {
	Binary        string `mapstructure:"binary"`
	ModelPath     string `mapstructure:"model_path"`
	Language      string `mapstructure:"language"`
	Threads       int    `mapstructure:"threads"`
	FFmpegBinary  string `mapstructure:"ffmpeg_binary"`
	LDLibraryPath string `mapstructure:"ld_library_path"`
	WorkDir       string `mapstructure:"work_dir"`
}

// DefaultSystemPrompt instructs the model to act as a workplace safety
// consultant and to stay on topic.
const DefaultSystemPrompt = "You are a virtual workplace safety consultant. " +
	"Answer briefly (2-3 sentences), formally, citing regulatory documents when known. " +
	"If you lack data, say so honestly and suggest which documents are needed. " +
	"Help with training, tests, and occupational safety questions. " +
	"Strictly refuse topics unrelated to occupational or industrial safety."

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SAFEDESK")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("admin.api_key", "")

	v.SetDefault("database.path", "./data/safedesk.db")

	v.SetDefault("knowledge.root", "./knowledge_base")
	v.SetDefault("knowledge.max_chunk_len", 1200)
	v.SetDefault("knowledge.pdf_page_limit", 40)
	v.SetDefault("knowledge.search_limit", 3)
	v.SetDefault("knowledge.watch", false)

	v.SetDefault("llm.api_url", "http://localhost:1234/v1/chat/completions")
	v.SetDefault("llm.model", "qwen/qwen3-vl-8b")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.system_prompt", DefaultSystemPrompt)
	v.SetDefault("llm.max_history_messages", 10)

	v.SetDefault("quiz.context_chunks", 2)

	v.SetDefault("whisper.binary", "whisper.cpp/build/bin/whisper-cli")
	v.SetDefault("whisper.model_path", "whisper.cpp/models/ggml-small.bin")
	v.SetDefault("whisper.language", "en")
	v.SetDefault("whisper.threads", 4)
	v.SetDefault("whisper.ffmpeg_binary", "ffmpeg")
	v.SetDefault("whisper.work_dir", ".runtime")
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ServerWriteTimeout returns the HTTP response write deadline. Chat endpoints
// answer synchronously, so the deadline must outlast the model call timeout.
func (c *Config) ServerWriteTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds)*time.Second + 30*time.Second
}
