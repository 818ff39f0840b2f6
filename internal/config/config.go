// Package config provides configuration loading and structs for the historias server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file.
const (
	EnvGeminiAPIKey     = "GEMINI_API_KEY"
	EnvObjectsAccessKey = "HISTORIAS_OBJECTS_ACCESS_KEY"
	EnvObjectsSecretKey = "HISTORIAS_OBJECTS_SECRET_KEY"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`
	Storage StorageConfig `yaml:"storage"`
	Objects ObjectsConfig `yaml:"objects"`
	LLM     LLMConfig     `yaml:"llm"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ArchiveConfig holds the local story archive settings.
type ArchiveConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
	// HTMLParser is "dom" or "regex".
	HTMLParser string `yaml:"html_parser"`
	// PDFText enables PDF text extraction; defaults to true when unset.
	PDFText *bool `yaml:"pdf_text"`
	// Watch keeps the search index in sync with the directory while the server runs.
	Watch bool `yaml:"watch"`
	// Formats saved when a request does not name any.
	Formats []string `yaml:"formats"`
}

// PDFTextOrDefault returns whether PDF text extraction is enabled; true when unset.
func (a *ArchiveConfig) PDFTextOrDefault() bool {
	if a.PDFText != nil {
		return *a.PDFText
	}
	return true
}

// StorageConfig holds the story database settings.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	UserID       string `yaml:"user_id"`
	ListLimit    int    `yaml:"list_limit"`
}

// ObjectsConfig holds S3-compatible object storage settings for uploaded images.
// An empty endpoint disables uploads.
type ObjectsConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// Enabled reports whether object storage is configured.
func (o *ObjectsConfig) Enabled() bool {
	return o.Endpoint != "" && o.Bucket != ""
}

// LLMConfig holds the Gemini client settings.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	VisionModel     string  `yaml:"vision_model"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// Load reads and parses the config file at path, expands paths, applies defaults
// and environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Archive.Directory = expandPath(cfg.Archive.Directory, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides secrets with their environment variables when set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvObjectsAccessKey); v != "" {
		cfg.Objects.AccessKeyID = v
	}
	if v := os.Getenv(EnvObjectsSecretKey); v != "" {
		cfg.Objects.SecretAccessKey = v
	}
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch c.Archive.HTMLParser {
	case "dom", "regex":
	default:
		return fmt.Errorf("archive.html_parser must be \"dom\" or \"regex\", got %q", c.Archive.HTMLParser)
	}
	for _, f := range c.Archive.Formats {
		switch strings.ToLower(f) {
		case "json", "markdown", "md", "html", "pdf":
		default:
			return fmt.Errorf("archive.formats: unknown format %q", f)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		path = path[2:]
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
