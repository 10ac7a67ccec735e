package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/htsvoice/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// CacheOff disables the snapshot cache when used as Context.Cache.
const CacheOff = "disabled"

// Config is the context file of a CLI app.
type Config struct {
	// AppName is the application name (e.g., "htsvoice")
	AppName string `yaml:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `json:"current_context,omitempty" yaml:"current_context,omitempty"`

	Contexts map[string]*Context `json:"contexts,omitempty" yaml:"contexts,omitempty"`

	configPath string
}

// Context names where voices come from and how synthesized audio is
// written.
type Context struct {
	Name string `json:"name" yaml:"name"`

	// Voices is a local directory or "s3://bucket/prefix".
	Voices string `json:"voices" yaml:"voices"`

	// S3 holds endpoint and credentials for an s3:// source. Bucket and
	// prefix are taken from Voices.
	S3 *storage.S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`

	// Cache is the snapshot cache directory. Empty selects the app cache
	// directory; CacheOff disables caching.
	Cache string `json:"cache,omitempty" yaml:"cache,omitempty"`

	// DefaultVoice is used when a command names no voice.
	DefaultVoice string `json:"default_voice,omitempty" yaml:"default_voice,omitempty"`

	// SampleRate resamples output when set.
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, DefaultBaseDir, appName, DefaultConfigFile)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration with owner-only permissions; it may hold
// S3 secrets.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddContext adds or replaces a context. The first context added becomes
// current.
func (c *Config) AddContext(name string, ctx *Context) error {
	if ctx.Voices == "" {
		return fmt.Errorf("context %q: voices source is required", name)
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// GetContext returns a specific context
func (c *Config) GetContext(name string) (*Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// GetCurrentContext returns the current context
func (c *Config) GetCurrentContext() (*Context, error) {
	if c.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	return c.GetContext(c.CurrentContext)
}

// ResolveContext returns the context by name, or current context if name is empty
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		return c.GetCurrentContext()
	}
	return c.GetContext(name)
}

// ListContexts returns all context names in order.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Store opens the voice source of the context.
func (ctx *Context) Store() (storage.FileStore, error) {
	var s3cfg storage.S3Config
	if ctx.S3 != nil {
		s3cfg = *ctx.S3
	}
	return storage.Open(ctx.Voices, s3cfg)
}

// CacheDir resolves the snapshot cache directory against the app paths.
// It returns "" when caching is off.
func (ctx *Context) CacheDir(p *Paths) string {
	switch ctx.Cache {
	case CacheOff:
		return ""
	case "":
		return p.CachePath(ctx.Name)
	}
	return ctx.Cache
}

// MaskSecret masks a credential for display
func MaskSecret(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
