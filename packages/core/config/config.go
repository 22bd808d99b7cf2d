package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/restcheck/packages/core/env"
	"github.com/abdul-hamid-achik/restcheck/packages/http"
	"github.com/abdul-hamid-achik/restcheck/packages/logging"
)

// Config represents the restcheck configuration
type Config struct {
	BaseURI            string            `json:"baseUri,omitempty" yaml:"baseUri,omitempty"`
	DefaultEnvironment string            `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Timeout            int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers            map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	LogRequest         []string          `json:"logRequest,omitempty" yaml:"logRequest,omitempty"`   // Request log details, e.g. ["uri", "body"]
	LogResponse        []string          `json:"logResponse,omitempty" yaml:"logResponse,omitempty"` // Response log details
	Bail               *bool             `json:"bail,omitempty" yaml:"bail,omitempty"`
	NoColor            *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	EnvFile            string            `json:"envFile,omitempty" yaml:"envFile,omitempty"`     // .env file with credentials
	EnvPrefix          string            `json:"envPrefix,omitempty" yaml:"envPrefix,omitempty"` // Prefix for environment lookups
	History            string            `json:"history,omitempty" yaml:"history,omitempty"`     // SQLite history database path
}

// BoolPtr returns a pointer to b, for setting optional flags.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, in search order.
var ConfigFilenames = []string{
	".restcheck.yaml",
	".restcheck.yml",
	"restcheck.json",
	".restcheckrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile decodes JSON for .json files and YAML otherwise. An
// .restcheckrc may hold either, since YAML accepts JSON.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// A relative env file is relative to the config file.
	if config.EnvFile != "" && !filepath.IsAbs(config.EnvFile) {
		config.EnvFile = filepath.Join(filepath.Dir(path), config.EnvFile)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURI != "" {
		result.BaseURI = other.BaseURI
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.EnvPrefix != "" {
		result.EnvPrefix = other.EnvPrefix
	}
	if other.History != "" {
		result.History = other.History
	}
	if len(other.LogRequest) > 0 {
		result.LogRequest = other.LogRequest
	}
	if len(other.LogResponse) > 0 {
		result.LogResponse = other.LogResponse
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers into a fresh map so c keeps its own.
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	return &result
}

// ClientOptions translates the transport settings into http client options.
// Request and response logging filters write to w.
func (c *Config) ClientOptions(w io.Writer) ([]http.ClientOption, error) {
	opts := []http.ClientOption{
		http.WithFollowRedirects(c.GetFollowRedirects()),
		http.WithValidateSSL(c.GetValidateSSL()),
	}
	if c.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(c.Timeout)*time.Millisecond))
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(c.MaxRedirects))
	}
	if c.Proxy != "" {
		opts = append(opts, http.WithProxy(c.Proxy))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}

	var filters []http.Filter
	if len(c.LogRequest) > 0 {
		details, err := parseDetails(c.LogRequest)
		if err != nil {
			return nil, fmt.Errorf("logRequest: %w", err)
		}
		filters = append(filters, logging.RequestFilter(w, details...))
	}
	if len(c.LogResponse) > 0 {
		details, err := parseDetails(c.LogResponse)
		if err != nil {
			return nil, fmt.Errorf("logResponse: %w", err)
		}
		filters = append(filters, logging.ResponseFilter(w, details...))
	}
	if len(filters) > 0 {
		opts = append(opts, http.WithFilters(filters...))
	}

	return opts, nil
}

func parseDetails(names []string) ([]logging.Detail, error) {
	details := make([]logging.Detail, 0, len(names))
	for _, name := range names {
		d, err := logging.ParseDetail(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// CredentialSource returns where {{$KEY}} placeholders and OAuth2 settings
// are looked up: the process environment first, then EnvFile if set.
func (c *Config) CredentialSource() (env.Source, error) {
	chain := env.Chain{env.OSSource{Prefix: c.EnvPrefix}}
	if c.EnvFile != "" {
		dotenv, err := env.LoadDotEnvSource(c.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
		chain = append(chain, dotenv)
	}
	return chain, nil
}

// SaveConfig writes the configuration as JSON for .json paths and YAML
// otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
