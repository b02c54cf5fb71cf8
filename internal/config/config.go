// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/progress"
	"github.com/jeranaias/nisa-chat/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NISA_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete NISA client configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend" json:"backend" envPrefix:"BACKEND_"`
	Progress ProgressConfig `toml:"progress" json:"progress" envPrefix:"PROGRESS_"`
	Storage  StorageConfig  `toml:"storage" json:"storage" envPrefix:"STORAGE_"`
	UI       UIConfig       `toml:"ui" json:"ui" envPrefix:"UI_"`
	Upload   UploadConfig   `toml:"upload" json:"upload" envPrefix:"UPLOAD_"`
	Log      LogConfig      `toml:"log" json:"log" envPrefix:"LOG_"`
	Server   ServerConfig   `toml:"server" json:"server" envPrefix:"SERVER_"`
}

// BackendConfig locates the archive backend. Paths are joined to BaseURL
// unless they are absolute URLs.
type BackendConfig struct {
	BaseURL         string `toml:"base_url" json:"base_url" env:"BASE_URL"`
	AskFast         string `toml:"ask_fast" json:"ask_fast" env:"ASK_FAST"`
	AskAdvanced     string `toml:"ask_advanced" json:"ask_advanced" env:"ASK_ADVANCED"`
	AskDocument     string `toml:"ask_document" json:"ask_document" env:"ASK_DOCUMENT"`
	ProcessPDF      string `toml:"process_pdf" json:"process_pdf" env:"PROCESS_PDF"`
	TranscribeAudio string `toml:"transcribe_audio" json:"transcribe_audio" env:"TRANSCRIBE_AUDIO"`
	TranscribeVideo string `toml:"transcribe_video" json:"transcribe_video" env:"TRANSCRIBE_VIDEO"`
}

// ProgressConfig drives the idle progress messages.
type ProgressConfig struct {
	TimeoutSeconds int      `toml:"timeout_seconds" json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	Messages       []string `toml:"messages" json:"messages" env:"MESSAGES" envSeparator:"|"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "redis".
	Backend          string `toml:"backend" json:"backend" env:"BACKEND"`
	Dir              string `toml:"dir" json:"dir" env:"DIR"`
	RedisAddr        string `toml:"redis_addr" json:"redis_addr" env:"REDIS_ADDR"`
	Key              string `toml:"key" json:"key" env:"KEY"`
	MaxConversations int    `toml:"max_conversations" json:"max_conversations" env:"MAX_CONVERSATIONS"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// LinksBreakpoint is the viewport width, in approximate pixels, at or
	// below which the links panel opens by itself.
	LinksBreakpoint int    `toml:"links_breakpoint" json:"links_breakpoint" env:"LINKS_BREAKPOINT"`
	DefaultModel    string `toml:"default_model" json:"default_model" env:"DEFAULT_MODEL"`
	Language        string `toml:"language" json:"language" env:"LANGUAGE"`
}

// UploadConfig limits attachments.
type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes" json:"max_bytes" env:"MAX_BYTES"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `toml:"level" json:"level" env:"LEVEL"`
	Format string `toml:"format" json:"format" env:"FORMAT"`
	// File receives logs; empty means stderr, except in the TUI.
	File string `toml:"file" json:"file" env:"FILE"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr           string `toml:"addr" json:"addr" env:"ADDR"`
	PartialDelayMS int    `toml:"partial_delay_ms" json:"partial_delay_ms" env:"PARTIAL_DELAY_MS"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:         "http://localhost:8000",
			AskFast:         "/ask-stream-flash",
			AskAdvanced:     "/ask-stream",
			AskDocument:     "/ask-pdf-stream",
			ProcessPDF:      "/process-pdf",
			TranscribeAudio: "/transcribe-audio-stream",
			TranscribeVideo: "/transcribe-video-stream",
		},

		Progress: ProgressConfig{
			TimeoutSeconds: int(progress.DefaultThreshold / time.Second),
			Messages:       append([]string(nil), progress.DefaultMessages...),
		},

		Storage: StorageConfig{
			Backend: "file",
			Dir:     "", // resolved to ~/.nisa by StorageDir
			Key:     "chatbot_conversations",
		},

		UI: UIConfig{
			LinksBreakpoint: 768,
			DefaultModel:    string(model.DefaultModel),
			Language:        "pt-BR",
		},

		Upload: UploadConfig{
			MaxBytes: 200 * 1024 * 1024,
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8000",
			PartialDelayMS: 40,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the NISA configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nisa"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// StorageDir returns the directory for file and sqlite storage, expanding
// a leading "~".
func (c *Config) StorageDir() (string, error) {
	dir := c.Storage.Dir
	if dir == "" {
		return ConfigDir()
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir, nil
}

// ProgressThreshold returns the idle threshold as a duration.
func (c *Config) ProgressThreshold() time.Duration {
	return time.Duration(c.Progress.TimeoutSeconds) * time.Second
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}
	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}
	return finish(Default())
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// finish applies env overrides, defaults and validation.
func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# NISA chat client configuration\n")
	sb.WriteString("# Environment variables NISA_<SECTION>_<KEY> override these values.\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Backend
	if u, err := url.Parse(c.Backend.BaseURL); err != nil {
		add("backend.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("backend.base_url", "scheme must be http or https, got '%s'", u.Scheme)
	}

	// Progress
	if c.Progress.TimeoutSeconds <= 0 {
		add("progress.timeout_seconds", "must be positive")
	}
	for i, m := range c.Progress.Messages {
		if strings.TrimSpace(m) == "" {
			add("progress.messages", "message %d is empty", i)
		}
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case "file", "sqlite":
	case "redis":
		if c.Storage.RedisAddr == "" {
			add("storage.redis_addr", "required when storage.backend is redis")
		}
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, redis", c.Storage.Backend)
	}
	if c.Storage.MaxConversations < 0 {
		add("storage.max_conversations", "cannot be negative")
	}

	// UI
	if _, err := model.ParseModelChoice(c.UI.DefaultModel); err != nil {
		add("ui.default_model", "%v", err)
	}
	if c.UI.LinksBreakpoint < 0 {
		add("ui.links_breakpoint", "cannot be negative")
	}

	// Upload
	if c.Upload.MaxBytes <= 0 {
		add("upload.max_bytes", "must be positive")
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format", "invalid format '%s', must be one of: text, json", c.Log.Format)
	}

	// Server
	if c.Server.PartialDelayMS < 0 {
		add("server.partial_delay_ms", "cannot be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value fields.
func (c *Config) SetDefaults() {
	d := Default()

	setString := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}

	setString(&c.Backend.BaseURL, d.Backend.BaseURL)
	setString(&c.Backend.AskFast, d.Backend.AskFast)
	setString(&c.Backend.AskAdvanced, d.Backend.AskAdvanced)
	setString(&c.Backend.AskDocument, d.Backend.AskDocument)
	setString(&c.Backend.ProcessPDF, d.Backend.ProcessPDF)
	setString(&c.Backend.TranscribeAudio, d.Backend.TranscribeAudio)
	setString(&c.Backend.TranscribeVideo, d.Backend.TranscribeVideo)

	if c.Progress.TimeoutSeconds == 0 {
		c.Progress.TimeoutSeconds = d.Progress.TimeoutSeconds
	}
	if len(c.Progress.Messages) == 0 {
		c.Progress.Messages = d.Progress.Messages
	}

	setString(&c.Storage.Backend, d.Storage.Backend)
	setString(&c.Storage.Key, d.Storage.Key)

	setString(&c.UI.DefaultModel, d.UI.DefaultModel)
	setString(&c.UI.Language, d.UI.Language)
	if c.UI.LinksBreakpoint == 0 {
		c.UI.LinksBreakpoint = d.UI.LinksBreakpoint
	}

	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = d.Upload.MaxBytes
	}

	setString(&c.Log.Level, d.Log.Level)
	setString(&c.Log.Format, d.Log.Format)
	setString(&c.Server.Addr, d.Server.Addr)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies NISA_* environment variables. Each field maps to
// NISA_<SECTION>_<KEY>, for example:
//   - NISA_BACKEND_BASE_URL
//   - NISA_STORAGE_BACKEND
//   - NISA_PROGRESS_MESSAGES (separated by "|")
//   - NISA_LOG_LEVEL
//
// Unset variables leave the current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "storage.backend").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Split(strVal, "|")))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, in
// declaration order.
func GetAllKeys() []string {
	var keys []string
	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		prefix := tomlName(section)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+tomlName(section.Type.Field(j)))
		}
	}
	return keys
}

func tomlName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

// String returns the configuration as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
