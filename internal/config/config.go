package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentx-labs/exthost/internal/branding"
	"github.com/agentx-labs/exthost/internal/userdata"
	"github.com/spf13/viper"
)

const fileType = "yaml"

// Defaults applied before the config file and environment are read.
const (
	DefaultFetchMaxBytes    int64 = 10 << 20
	DefaultFetchTimeout           = 30 * time.Second
	DefaultRuntime                = "js"
	DefaultShutdownTimeout        = 2 * time.Second
	DefaultTransportBuffer        = 16
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "console"
	DefaultConcurrency            = 4
)

// Config is the fully resolved host configuration.
type Config struct {
	Registry   RegistryConfig   `mapstructure:"registry"`
	Settings   SettingsConfig   `mapstructure:"settings"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Runtime    RuntimeConfig    `mapstructure:"runtime"`
	Log        LogConfig        `mapstructure:"log"`
	Activation ActivationConfig `mapstructure:"activation"`
}

// RegistryConfig locates the extension registry index. Mirrors are extra
// read-only index files consulted after Path; an id in Path wins.
type RegistryConfig struct {
	Path    string   `mapstructure:"path"`
	Mirrors []string `mapstructure:"mirrors"`
}

// SettingsConfig locates the settings cascade database.
type SettingsConfig struct {
	Database string `mapstructure:"database"`
}

// FetchConfig bounds bundle downloads. Zero disables a limit.
type FetchConfig struct {
	MaxBytes int64         `mapstructure:"max_bytes"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RuntimeConfig controls isolated extension runtimes.
type RuntimeConfig struct {
	Default         string        `mapstructure:"default"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Buffer          int           `mapstructure:"buffer"`
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ActivationConfig bounds concurrent activations.
type ActivationConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Dir returns the path to the config directory (~/.exthost/).
func Dir() string {
	root, err := userdata.GetHomeRoot()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return root
}

// FilePath returns the full path to the config file (~/.exthost/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), userdata.ConfigFile)
}

// New returns a viper instance bound to path (FilePath() when empty), the
// EXTHOST_ environment prefix, and the package defaults.
func New(path string) *viper.Viper {
	if path == "" {
		path = FilePath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	registryPath, _ := userdata.GetRegistryPath()
	dbPath, _ := userdata.GetSettingsDBPath()

	v.SetDefault("registry.path", registryPath)
	v.SetDefault("registry.mirrors", []string{})
	v.SetDefault("settings.database", dbPath)
	v.SetDefault("fetch.max_bytes", DefaultFetchMaxBytes)
	v.SetDefault("fetch.timeout", DefaultFetchTimeout)
	v.SetDefault("runtime.default", DefaultRuntime)
	v.SetDefault("runtime.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("runtime.buffer", DefaultTransportBuffer)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("activation.concurrency", DefaultConcurrency)
}

// Load reads the config file at path (if it exists) plus the environment and
// returns the resolved Config.
func Load(path string) (*Config, error) {
	v := New(path)

	// A missing config file is fine; everything has a default.
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config file %s: %w", v.ConfigFileUsed(), err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Fetch.MaxBytes < 0 {
		return fmt.Errorf("fetch.max_bytes must not be negative, got %d", c.Fetch.MaxBytes)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout)
	}
	if c.Runtime.Buffer < 0 {
		return fmt.Errorf("runtime.buffer must not be negative, got %d", c.Runtime.Buffer)
	}
	if c.Activation.Concurrency < 1 {
		return fmt.Errorf("activation.concurrency must be at least 1, got %d", c.Activation.Concurrency)
	}
	return nil
}

// ErrUnknownKey is returned by Get and Set for keys the host does not read.
var ErrUnknownKey = errors.New("unknown config key")

// Keys lists every configuration key, sorted.
func Keys() []string {
	keys := New("").AllKeys()
	sort.Strings(keys)
	return keys
}

func checkKey(key string) error {
	for _, k := range Keys() {
		if k == key {
			return nil
		}
	}
	return fmt.Errorf("%w %q; known keys: %s", ErrUnknownKey, key, strings.Join(Keys(), ", "))
}

// Get returns the resolved value of key (file, environment or default) from
// the config at path, formatted for display.
func Get(path, key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	v := New(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return "", fmt.Errorf("reading config file: %w", err)
	}
	return format(v.Get(key)), nil
}

// All returns every key with its resolved value, formatted as Get does.
func All(path string) (map[string]string, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	out := make(map[string]string)
	for _, k := range Keys() {
		out[k] = format(v.Get(k))
	}
	return out, nil
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(val, ",")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

// Set writes key=value into the file at path. Only what the file already
// holds plus the new key is written, so defaults don't get frozen into it.
// The result must still pass Validate.
func Set(path, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	v := New(path)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	configFile := v.ConfigFileUsed()

	// Check the candidate against the full resolved config first.
	v.Set(key, value)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	file := viper.New()
	file.SetConfigType(fileType)
	if data, err := os.ReadFile(configFile); err == nil {
		if err := file.ReadConfig(strings.NewReader(string(data))); err != nil {
			return fmt.Errorf("parsing config file %s: %w", configFile, err)
		}
	}
	file.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(configFile), userdata.DirPermSecure); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := file.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
