// Package config holds the storefrontctl configuration: named contexts, each
// pointing at an API endpoint and a session storage backend.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	AppName        = "storefrontctl"
	ConfigFileName = "config"
	ConfigFileType = "yaml"

	DefaultContextName = "local"
	DefaultAPIEndpoint = "http://localhost:8000/api"
	DefaultSessionFile = "session.db"
)

// Backend names a session storage implementation.
type Backend string

const (
	BackendBolt   Backend = "bbolt"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendMongo  Backend = "mongo"
)

var (
	ErrContextNotFound = errors.New("config: context not found")
	ErrNoContexts      = errors.New("config: no contexts configured")
)

// Storage selects where a context keeps its session.
type Storage struct {
	Backend Backend `mapstructure:"backend" yaml:"backend"`
	// Path of the bbolt database.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
	// Address is the Redis address or the MongoDB URI.
	Address  string `mapstructure:"address" yaml:"address,omitempty"`
	Database string `mapstructure:"database" yaml:"database,omitempty"`
}

// Context is one API endpoint the CLI can talk to.
type Context struct {
	Name        string  `mapstructure:"name" yaml:"name"`
	APIEndpoint string  `mapstructure:"api_endpoint" yaml:"api_endpoint"`
	Storage     Storage `mapstructure:"storage" yaml:"storage"`
}

// Validate checks the endpoint and storage settings.
func (c *Context) Validate() error {
	if c.Name == "" {
		return errors.New("context name is required")
	}
	u, err := url.Parse(c.APIEndpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("context %q: api_endpoint must be an absolute http(s) URL, got %q", c.Name, c.APIEndpoint)
	}
	switch c.Storage.Backend {
	case BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("context %q: bbolt storage needs a path", c.Name)
		}
	case BackendMemory:
	case BackendRedis, BackendMongo:
		if c.Storage.Address == "" {
			return fmt.Errorf("context %q: %s storage needs an address", c.Name, c.Storage.Backend)
		}
	default:
		return fmt.Errorf("context %q: unknown storage backend %q", c.Name, c.Storage.Backend)
	}
	return nil
}

// CLIConfig is the content of the configuration file.
type CLIConfig struct {
	CurrentContext string              `mapstructure:"current_context" yaml:"current_context"`
	Contexts       map[string]*Context `mapstructure:"contexts" yaml:"contexts"`
	LogLevel       string              `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogPretty      bool                `mapstructure:"log_pretty" yaml:"log_pretty,omitempty"`
}

// File is a loaded configuration together with the path it is saved to.
type File struct {
	path string
	CLIConfig
}

// DefaultPath returns $HOME/.storefrontctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, ConfigFileName+"."+ConfigFileType), nil
}

// Load reads the configuration at path, or at DefaultPath when path is
// empty. A missing file yields a configuration with a single local context.
// LOG_LEVEL, LOG_PRETTY and STOREFRONT_CONTEXT override the file.
func Load(path string) (*File, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(ConfigFileType)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_pretty", "LOG_PRETTY")
	_ = v.BindEnv("current_context", "STOREFRONT_CONTEXT")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_pretty", true)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	f := &File{path: path}
	if err := v.Unmarshal(&f.CLIConfig); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if len(f.Contexts) == 0 {
		f.Contexts = map[string]*Context{
			DefaultContextName: DefaultContext(filepath.Dir(path)),
		}
	}
	for name, c := range f.Contexts {
		if c.Name == "" {
			c.Name = name
		}
	}
	if f.CurrentContext == "" {
		f.CurrentContext = f.firstContext()
	}
	return f, nil
}

// DefaultContext points at a local API and keeps the session in a bbolt
// file inside dir.
func DefaultContext(dir string) *Context {
	return &Context{
		Name:        DefaultContextName,
		APIEndpoint: DefaultAPIEndpoint,
		Storage: Storage{
			Backend: BackendBolt,
			Path:    filepath.Join(dir, DefaultSessionFile),
		},
	}
}

func (f *File) firstContext() string {
	names := f.ContextNames()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// Path returns where the configuration is saved.
func (f *File) Path() string {
	return f.path
}

// ContextNames returns the configured context names in sorted order.
func (f *File) ContextNames() []string {
	names := make([]string, 0, len(f.Contexts))
	for name := range f.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the active context.
func (f *File) Current() (*Context, error) {
	if len(f.Contexts) == 0 {
		return nil, ErrNoContexts
	}
	c, ok := f.Contexts[f.CurrentContext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrContextNotFound, f.CurrentContext)
	}
	return c, nil
}

// SetContext adds or replaces a context.
func (f *File) SetContext(c *Context) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if f.Contexts == nil {
		f.Contexts = make(map[string]*Context)
	}
	f.Contexts[c.Name] = c
	if f.CurrentContext == "" {
		f.CurrentContext = c.Name
	}
	return nil
}

// UseContext makes name the active context.
func (f *File) UseContext(name string) error {
	if _, ok := f.Contexts[name]; !ok {
		return fmt.Errorf("%w: %q", ErrContextNotFound, name)
	}
	f.CurrentContext = name
	return nil
}

// DeleteContext removes name. Deleting the active context activates the
// first remaining one.
func (f *File) DeleteContext(name string) error {
	if _, ok := f.Contexts[name]; !ok {
		return fmt.Errorf("%w: %q", ErrContextNotFound, name)
	}
	delete(f.Contexts, name)
	if f.CurrentContext == name {
		f.CurrentContext = f.firstContext()
	}
	return nil
}

// Save writes the configuration as YAML, readable by the owner only.
func (f *File) Save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	raw, err := yaml.Marshal(&f.CLIConfig)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to save config to %s: %w", f.path, err)
	}
	return nil
}
