// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level odly configuration.
type Config struct {
	DataDir    string           `mapstructure:"data_dir"`
	Model      ModelConfig      `mapstructure:"model"`
	Sampling   SamplingConfig   `mapstructure:"sampling"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ModelConfig describes the model the inference session loads.
type ModelConfig struct {
	Path          string `mapstructure:"path"`
	ContextWindow int    `mapstructure:"context_window"`
	BatchSize     int    `mapstructure:"batch_size"`
	Threads       int    `mapstructure:"threads"`
	GPULayers     int    `mapstructure:"gpu_layers"`
	MinFreeBytes  uint64 `mapstructure:"min_free_bytes"`
	PromptFormat  string `mapstructure:"prompt_format"`
	CheckFile     bool   `mapstructure:"check_file"`
}

// SamplingConfig holds the fixed decoding parameters.
type SamplingConfig struct {
	Temperature   float64 `mapstructure:"temperature"`
	TopP          float64 `mapstructure:"top_p"`
	RepeatPenalty float64 `mapstructure:"repeat_penalty"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// EngineConfig selects and addresses the inference engine.
type EngineConfig struct {
	Backend  string        `mapstructure:"backend"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// KnowledgeConfig bounds assembled answer context.
type KnowledgeConfig struct {
	MaxContextTokens int    `mapstructure:"max_context_tokens"`
	Encoding         string `mapstructure:"encoding"`
	EncodingDir      string `mapstructure:"encoding_dir"`
}

// ClusteringConfig controls the semantic clustering call.
type ClusteringConfig struct {
	MaxTokens        int    `mapstructure:"max_tokens"`
	UncategorizedTag string `mapstructure:"uncategorized_tag"`
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// contextReserve is kept free for the prompt scaffolding around the context.
const contextReserve = 256

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "~/.odly")

	v.SetDefault("model.path", "")
	v.SetDefault("model.context_window", 2048)
	v.SetDefault("model.batch_size", 512)
	v.SetDefault("model.threads", 4)
	v.SetDefault("model.gpu_layers", 0)
	v.SetDefault("model.min_free_bytes", 0)
	v.SetDefault("model.prompt_format", "chatml")
	v.SetDefault("model.check_file", true)

	v.SetDefault("sampling.temperature", 0.7)
	v.SetDefault("sampling.top_p", 0.9)
	v.SetDefault("sampling.repeat_penalty", 1.1)
	v.SetDefault("sampling.max_tokens", 512)

	v.SetDefault("engine.backend", "llamacpp")
	v.SetDefault("engine.endpoint", "http://127.0.0.1:8080")
	v.SetDefault("engine.api_key", "")
	v.SetDefault("engine.timeout", "5m")

	v.SetDefault("storage.backend", "sqlite")

	v.SetDefault("knowledge.max_context_tokens", 0)
	v.SetDefault("knowledge.encoding", "cl100k_base")
	v.SetDefault("knowledge.encoding_dir", "")

	v.SetDefault("clustering.max_tokens", 1024)
	v.SetDefault("clustering.uncategorized_tag", "uncategorized")

	v.SetDefault("server.listen", "127.0.0.1:18790")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds ODLY_* environment variables, e.g. ODLY_MODEL_PATH.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("ODLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, odlyerr.Errorf(odlyerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, odlyerr.Errorf(odlyerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, odlyerr.Errorf(odlyerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// ResolvedDataDir expands a leading ~ in DataDir.
func (c *Config) ResolvedDataDir() (string, error) {
	return ExpandHome(c.DataDir)
}

// ResolvedEncodingDir is where tiktoken rank files are read from:
// knowledge.encoding_dir when set, otherwise <data_dir>/tiktoken.
func (c *Config) ResolvedEncodingDir() (string, error) {
	if c.Knowledge.EncodingDir != "" {
		return ExpandHome(c.Knowledge.EncodingDir)
	}
	dataDir, err := c.ResolvedDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "tiktoken"), nil
}

// NoContextRoom is the budget reported when the context window leaves no
// room for knowledge after the reply and the prompt scaffolding.
const NoContextRoom = -1

// ContextBudget is the token budget for assembled knowledge context. It is
// NoContextRoom, never 0, when the derived budget underflows: 0 means
// unbounded to the assembler.
func (c *Config) ContextBudget() int {
	if c.Knowledge.MaxContextTokens > 0 {
		return c.Knowledge.MaxContextTokens
	}
	budget := c.Model.ContextWindow - c.Sampling.MaxTokens - contextReserve
	if budget <= 0 {
		return NoContextRoom
	}
	return budget
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", odlyerr.Errorf(odlyerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, invalid("config: data_dir must not be empty"))
	}
	errs = append(errs, c.validateModel()...)
	errs = append(errs, c.validateSampling()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateKnowledge()...)
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateModel() []error {
	var errs []error

	if c.Model.ContextWindow <= 0 {
		errs = append(errs, invalid("config: model.context_window must be positive, got %d", c.Model.ContextWindow))
	}
	if c.Model.BatchSize <= 0 {
		errs = append(errs, invalid("config: model.batch_size must be positive, got %d", c.Model.BatchSize))
	}
	if c.Model.Threads <= 0 {
		errs = append(errs, invalid("config: model.threads must be positive, got %d", c.Model.Threads))
	}
	if c.Model.GPULayers < 0 {
		errs = append(errs, invalid("config: model.gpu_layers must be zero (CPU only) or positive, got %d", c.Model.GPULayers))
	}
	if !oneOf(c.Model.PromptFormat, "chatml", "llama3", "gemma") {
		errs = append(errs, invalid("config: model.prompt_format must be one of [chatml, llama3, gemma], got %q", c.Model.PromptFormat))
	}

	return errs
}

func (c *Config) validateSampling() []error {
	var errs []error
	s := c.Sampling

	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, invalid("config: sampling.temperature must be within [0, 2], got %g", s.Temperature))
	}
	if s.TopP <= 0 || s.TopP > 1 {
		errs = append(errs, invalid("config: sampling.top_p must be within (0, 1], got %g", s.TopP))
	}
	if s.RepeatPenalty <= 0 {
		errs = append(errs, invalid("config: sampling.repeat_penalty must be positive, got %g", s.RepeatPenalty))
	}
	if s.MaxTokens <= 0 {
		errs = append(errs, invalid("config: sampling.max_tokens must be positive, got %d", s.MaxTokens))
	} else if c.Model.ContextWindow > 0 && s.MaxTokens >= c.Model.ContextWindow {
		errs = append(errs, invalid("config: sampling.max_tokens (%d) must be smaller than model.context_window (%d)",
			s.MaxTokens, c.Model.ContextWindow))
	}
	if c.Clustering.MaxTokens <= 0 {
		errs = append(errs, invalid("config: clustering.max_tokens must be positive, got %d", c.Clustering.MaxTokens))
	}
	if strings.TrimSpace(c.Clustering.UncategorizedTag) == "" {
		errs = append(errs, invalid("config: clustering.uncategorized_tag must not be empty"))
	}

	return errs
}

func (c *Config) validateEngine() []error {
	var errs []error

	if !oneOf(c.Engine.Backend, "llamacpp", "openai") {
		errs = append(errs, invalid("config: engine.backend must be one of [llamacpp, openai], got %q", c.Engine.Backend))
	}
	if c.Engine.Endpoint == "" {
		errs = append(errs, invalid("config: engine.endpoint must not be empty"))
	}
	if c.Engine.Timeout < 0 {
		errs = append(errs, invalid("config: engine.timeout must not be negative, got %s", c.Engine.Timeout))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	if !oneOf(c.Storage.Backend, "sqlite", "sqlite-purego") {
		return []error{invalid("config: storage.backend must be one of [sqlite, sqlite-purego], got %q", c.Storage.Backend)}
	}
	return nil
}

func (c *Config) validateKnowledge() []error {
	var errs []error

	if c.Knowledge.MaxContextTokens < 0 {
		errs = append(errs, invalid("config: knowledge.max_context_tokens must not be negative, got %d", c.Knowledge.MaxContextTokens))
	}
	if c.Knowledge.Encoding == "" {
		errs = append(errs, invalid("config: knowledge.encoding must not be empty"))
	}

	return errs
}

func (c *Config) validateServer() []error {
	if c.Server.Listen == "" {
		return []error{invalid("config: server.listen must not be empty")}
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return []error{odlyerr.Errorf(odlyerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err)}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return []error{invalid("config: server.listen port must be a number, got %q", portStr)}
	}
	if port < 1 || port > 65535 {
		return []error{invalid("config: server.listen port must be between 1 and 65535, got %d", port)}
	}
	return nil
}

func (c *Config) validateLogging() []error {
	var errs []error

	if !oneOf(c.Logging.Level, "debug", "info", "warn", "error") {
		errs = append(errs, invalid("config: logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if !oneOf(c.Logging.Format, "text", "json") {
		errs = append(errs, invalid("config: logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return odlyerr.Errorf(odlyerr.CodeConfigValidateInvalidValue, format, args...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
