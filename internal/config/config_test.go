// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateHome points the home directory at a temp dir so Load never sees
// the developer's real ~/.nisa.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/ask-stream-flash", cfg.Backend.AskFast)
	assert.Equal(t, "/ask-stream", cfg.Backend.AskAdvanced)
	assert.Equal(t, "/ask-pdf-stream", cfg.Backend.AskDocument)
	assert.Equal(t, 15*time.Second, cfg.ProgressThreshold())
	assert.NotEmpty(t, cfg.Progress.Messages)
	assert.Equal(t, 768, cfg.UI.LinksBreakpoint)
	assert.Equal(t, "fast", cfg.UI.DefaultModel)
	assert.Equal(t, int64(200*1024*1024), cfg.Upload.MaxBytes)
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolateHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoad_TOMLPartialKeepsDefaults(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".nisa")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[backend]
base_url = "https://archive.example"

[progress]
timeout_seconds = 5
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://archive.example", cfg.Backend.BaseURL)
	assert.Equal(t, "/ask-stream", cfg.Backend.AskAdvanced)
	assert.Equal(t, 5*time.Second, cfg.ProgressThreshold())
	assert.Equal(t, "file", cfg.Storage.Backend)
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".nisa")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"storage":{"backend":"sqlite"}}`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"cassandra\"\n"), 0o644))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.backend")
}

func TestLoadFromPath_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend\n"), 0o644))

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "failed to load TOML config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NISA_BACKEND_BASE_URL", "http://10.0.0.5:9000")
	t.Setenv("NISA_PROGRESS_TIMEOUT_SECONDS", "30")
	t.Setenv("NISA_PROGRESS_MESSAGES", "Buscando, aguarde...|Quase lá...")
	t.Setenv("NISA_STORAGE_BACKEND", "redis")
	t.Setenv("NISA_STORAGE_REDIS_ADDR", "localhost:6379")
	t.Setenv("NISA_UPLOAD_MAX_BYTES", "1024")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "http://10.0.0.5:9000", cfg.Backend.BaseURL)
	assert.Equal(t, "/ask-stream", cfg.Backend.AskAdvanced, "unset variables keep their value")
	assert.Equal(t, 30*time.Second, cfg.ProgressThreshold())
	assert.Equal(t, []string{"Buscando, aguarde...", "Quase lá..."}, cfg.Progress.Messages)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvOverrides_BadNumber(t *testing.T) {
	t.Setenv("NISA_PROGRESS_TIMEOUT_SECONDS", "soon")
	err := Default().ApplyEnvOverrides()
	assert.ErrorContains(t, err, "environment overrides")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad scheme", func(c *Config) { c.Backend.BaseURL = "ftp://archive" }, "backend.base_url"},
		{"zero timeout", func(c *Config) { c.Progress.TimeoutSeconds = 0 }, "progress.timeout_seconds"},
		{"blank message", func(c *Config) { c.Progress.Messages = []string{"ok", " "} }, "progress.messages"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis" }, "storage.redis_addr"},
		{"unknown model", func(c *Config) { c.UI.DefaultModel = "turbo" }, "ui.default_model"},
		{"negative breakpoint", func(c *Config) { c.UI.LinksBreakpoint = -1 }, "ui.links_breakpoint"},
		{"zero upload", func(c *Config) { c.Upload.MaxBytes = 0 }, "upload.max_bytes"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("backend.base_url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", v)

	require.NoError(t, cfg.Set("storage.max_conversations", "25"))
	assert.Equal(t, 25, cfg.Storage.MaxConversations)

	require.NoError(t, cfg.Set("progress.messages", "a|b"))
	assert.Equal(t, []string{"a", "b"}, cfg.Progress.Messages)

	require.NoError(t, cfg.Set("ui.default-model", "thinking"))
	assert.Equal(t, "thinking", cfg.UI.DefaultModel)

	_, err = cfg.Get("backend.nope")
	assert.ErrorContains(t, err, "unknown field")
	assert.Error(t, cfg.Set("storage.max_conversations", "many"))
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestGetAllKeys_Resolvable(t *testing.T) {
	cfg := Default()
	keys := GetAllKeys()
	assert.Contains(t, keys, "backend.base_url")
	assert.Contains(t, keys, "progress.messages")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestSaveAndReload(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	cfg := Default()
	cfg.Backend.BaseURL = "https://archive.example"
	cfg.Progress.Messages = []string{"Aguarde..."}

	tomlPath := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(cfg, tomlPath))
	data, err := os.ReadFile(tomlPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# NISA chat client configuration"))

	loaded, err := LoadFromPath(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.Progress.Messages, loaded.Progress.Messages)

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, SaveJSON(cfg, jsonPath))
	loaded, err = LoadFromPath(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
}

func TestStorageDir(t *testing.T) {
	home := isolateHome(t)
	cfg := Default()

	dir, err := cfg.StorageDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".nisa"), dir)

	cfg.Storage.Dir = "~/arquivo"
	dir, err = cfg.StorageDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "arquivo"), dir)

	cfg.Storage.Dir = "/var/lib/nisa"
	dir, err = cfg.StorageDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/nisa", dir)
}
