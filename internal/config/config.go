// ABOUTME: Configuration loading and parsing for the bank assistant client
// ABOUTME: Supports YAML or TOML files with .env loading, environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "BANK_ASSISTANT_CONFIG"

// Defaults applied when a key is absent.
const (
	DefaultBaseURL    = "http://localhost:8000/api/"
	DefaultTimeout    = 30 * time.Second
	DefaultCSRFCookie = "csrftoken"
	DefaultCSRFHeader = "X-CSRFToken"
	DefaultDriver     = "file"
	DefaultCacheTTL   = 30 * time.Second
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"
)

// Config represents the complete client configuration
type Config struct {
	Backend   BackendConfig   `yaml:"backend" toml:"backend"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Directory DirectoryConfig `yaml:"directory" toml:"directory"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// BackendConfig describes how to reach the banking backend
type BackendConfig struct {
	BaseURL    string        `yaml:"base_url" toml:"base_url" validate:"required,url"`
	CSRFCookie string        `yaml:"csrf_cookie" toml:"csrf_cookie" validate:"required"`
	CSRFHeader string        `yaml:"csrf_header" toml:"csrf_header" validate:"required"`
	Timeout    time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// StorageConfig selects where the session record and cookies are kept
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver" validate:"oneof=file sqlite memory"`
	Path   string `yaml:"path" toml:"path"`
}

// DirectoryConfig holds the admin user directory cache settings
type DirectoryConfig struct {
	CacheTTL    time.Duration `yaml:"-" toml:"-"`
	CacheTTLRaw string        `yaml:"cache_ttl" toml:"cache_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=text json"`
	// File, when set, sends logs to a rotated file instead of stderr
	File string `yaml:"file" toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:    DefaultBaseURL,
			CSRFCookie: DefaultCSRFCookie,
			CSRFHeader: DefaultCSRFHeader,
			Timeout:    DefaultTimeout,
		},
		Storage: StorageConfig{Driver: DefaultDriver},
		Directory: DirectoryConfig{
			CacheTTL: DefaultCacheTTL,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config is loaded first without overriding the environment.
// Environment variables in the format ${VAR_NAME} are expanded.
// Files ending in .toml are parsed as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Resolve finds the config file to use. An explicit path wins, then
// BANK_ASSISTANT_CONFIG, then ./bank-assistant.yaml, then the user config
// directory. It returns "" when no file exists and none was asked for.
func Resolve(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	candidates := []string{"bank-assistant.yaml", "bank-assistant.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(dir, "bank-assistant", "config.yaml"),
			filepath.Join(dir, "bank-assistant", "config.toml"),
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadDefault resolves and loads the config. With no file it returns Default().
// The returned path is the file that was loaded, if any.
func LoadDefault(explicit string) (*Config, string, error) {
	path := Resolve(explicit)
	if path == "" {
		if err := loadDotEnv(".env"); err != nil {
			return nil, "", err
		}
		cfg := Default()
		if err := cfg.finish(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// StateDir is where local state lives when storage.path is not set.
func StateDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "bank-assistant"), nil
}

// finish fills in values that depend on the environment.
func (c *Config) finish() error {
	if c.Storage.Path != "" || c.Storage.Driver == "memory" {
		return nil
	}
	dir, err := StateDir()
	if err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "sqlite":
		c.Storage.Path = filepath.Join(dir, "state.db")
	default:
		c.Storage.Path = filepath.Join(dir, "state")
	}
	return nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config key
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			key := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				return fmt.Errorf("%s must satisfy %s=%s, got %q", key, fe.Tag(), fe.Param(), fe.Value())
			}
			return fmt.Errorf("%s must satisfy %s, got %q", key, fe.Tag(), fe.Value())
		}
		return err
	}

	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http or https URL")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if c.Directory.CacheTTL <= 0 {
		return fmt.Errorf("directory.cache_ttl must be positive")
	}
	if c.Storage.Driver != "memory" && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	if cfg.Directory.CacheTTLRaw != "" {
		cfg.Directory.CacheTTL, err = time.ParseDuration(cfg.Directory.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Directory.CacheTTLRaw, err)
		}
	}

	return nil
}
