// Package config loads voiceloop settings from defaults, an optional YAML
// file, a .env file, VOICELOOP_* environment variables and bound flags, in
// increasing order of precedence.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: store.kind is VOICELOOP_STORE_KIND.
const EnvPrefix = "VOICELOOP"

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the resolved configuration of a voiceloop process.
type Config struct {
	Log        LogConfig             `mapstructure:"log"`
	Dialogue   DialogueConfig        `mapstructure:"dialogue"`
	Backend    string                `mapstructure:"backend"`
	Completion CompletionConfig      `mapstructure:"completion"`
	Ollama     OllamaConfig          `mapstructure:"ollama"`
	OpenAI     OpenAIConfig          `mapstructure:"openai"`
	Speech     domain.SpeechSettings `mapstructure:"speech"`
	Store      StoreConfig           `mapstructure:"store"`
	Server     ServerConfig          `mapstructure:"server"`

	// ConfigFile is the file that was read, if any.
	ConfigFile string `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DialogueConfig tunes the dialogue engine.
type DialogueConfig struct {
	Variant     string `mapstructure:"variant"`
	MaxSilences int    `mapstructure:"max_silences"`
	Recovery    bool   `mapstructure:"recovery"`
	Greeting    string `mapstructure:"greeting"`
	CatalogFile string `mapstructure:"catalog_file"`
}

// CompletionConfig applies to every backend.
type CompletionConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	Stream      bool    `mapstructure:"stream"`
}

type OllamaConfig struct {
	Model string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// StoreConfig selects where snapshots are published.
type StoreConfig struct {
	Kind           string        `mapstructure:"kind"`
	Dir            string        `mapstructure:"dir"`
	Redact         bool          `mapstructure:"redact"`
	RedactPatterns []string      `mapstructure:"redact_patterns"`
	EncryptionKey  string        `mapstructure:"encryption_key"`
	Redis          RedisConfig   `mapstructure:"redis"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig holds the listen addresses of the outer surfaces.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	MCPAddr     string `mapstructure:"mcp_addr"`
	MCPBaseURL  string `mapstructure:"mcp_base_url"`
}

// SetDefaults registers every key, which also makes each one reachable
// through the environment during Unmarshal.
func SetDefaults(v *viper.Viper) {
	speech := domain.DefaultSpeechSettings()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", string(logging.FormatText))

	v.SetDefault("dialogue.variant", string(domain.VariantOrdering))
	v.SetDefault("dialogue.max_silences", 1)
	v.SetDefault("dialogue.recovery", false)
	v.SetDefault("dialogue.greeting", "")
	v.SetDefault("dialogue.catalog_file", "")

	v.SetDefault("backend", BackendOllama)
	v.SetDefault("completion.temperature", 0.1)
	v.SetDefault("completion.stream", false)
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")

	v.SetDefault("speech.region", speech.Region)
	v.SetDefault("speech.endpoint", speech.Endpoint)
	v.SetDefault("speech.key", "")
	v.SetDefault("speech.locale", speech.Locale)
	v.SetDefault("speech.voice", speech.Voice)
	v.SetDefault("speech.no_input_timeout", speech.NoInputTimeout)
	v.SetDefault("speech.complete_timeout", speech.CompleteTimeout)

	v.SetDefault("store.kind", StoreMemory)
	v.SetDefault("store.dir", "")
	v.SetDefault("store.redact", false)
	v.SetDefault("store.redact_patterns", []string{})
	v.SetDefault("store.encryption_key", "")
	v.SetDefault("store.lock_ttl", 30*time.Second)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "")
	v.SetDefault("store.redis.ttl", time.Duration(0))

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.mcp_addr", ":8081")
	v.SetDefault("server.mcp_base_url", "http://localhost:8081")
}

// New returns a viper instance wired for voiceloop: defaults, env prefix and
// the conventional config file locations.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	return v
}

// LoadDotEnv loads .env style files into the process environment.
// Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads file, or voiceloop.yaml from the working directory or
// $HOME/.voiceloop when file is empty, and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("voiceloop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.voiceloop")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	if !domain.Variant(c.Dialogue.Variant).Valid() {
		return fmt.Errorf("unknown dialogue variant %q", c.Dialogue.Variant)
	}
	if c.Dialogue.MaxSilences < 0 {
		return fmt.Errorf("dialogue.max_silences must not be negative, got %d", c.Dialogue.MaxSilences)
	}
	switch c.Backend {
	case BackendOllama, BackendOpenAI:
	default:
		return fmt.Errorf("unknown completion backend %q", c.Backend)
	}
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.Store.EncryptionKey != "" {
		if _, err := c.Store.Key(); err != nil {
			return err
		}
	}
	return nil
}

// Key decodes the base64 snapshot encryption key. It must be 32 bytes.
func (s StoreConfig) Key() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key is not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Logger builds the process logger from the log settings.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(os.Stderr, level, format), nil
}
