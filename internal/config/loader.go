package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces environment overrides, e.g. APYNENG_DEFAULT_BRANCH.
	EnvPrefix = "APYNENG"
	// TokenEnvVar supplies the GitHub API token.
	TokenEnvVar = "GITHUB_TOKEN"
	// ConfigName is the base name of the optional config file.
	ConfigName = "apyneng"

	DefaultBranch       = "main"
	DefaultPython       = "python3"
	DefaultLookbackDays = 60
	DefaultCacheDirName = ".advpyneng-course-tasks"
)

// Config is the immutable runtime configuration threaded through the CLI.
type Config struct {
	DefaultBranch string
	Token         string
	Python        string
	CacheDir      string
	Lookback      time.Duration
	IgnoreTLS     bool
	APIBaseURL    string
	LogLevel      string
	LogFile       string // JSON records at debug level, in addition to stderr
	ConfigFile    string
}

// Overrides conveys caller-specified values (CLI flags) that win over file and
// environment sources. Nil fields are left untouched.
type Overrides struct {
	DefaultBranch *string
	IgnoreTLS     *bool
	LogLevel      *string
}

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	homeDir    func() (string, error)
	configPath string
	searchDirs []string
	overrides  Overrides
}

// WithConfigPath forces the loader to read configuration from a specific file.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) {
		o.configPath = path
	}
}

// WithSearchDirs adds directories searched for apyneng.{yaml,json,toml}.
func WithSearchDirs(dirs ...string) Option {
	return func(o *loadOptions) {
		o.searchDirs = append(o.searchDirs, dirs...)
	}
}

// WithHomeDir overrides how the loader resolves the user's home directory.
func WithHomeDir(resolver func() (string, error)) Option {
	return func(o *loadOptions) {
		o.homeDir = resolver
	}
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) {
		o.overrides = overrides
	}
}

// Load merges defaults, the optional config file, the environment and caller
// overrides, in that order of increasing precedence.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{homeDir: os.UserHomeDir}
	for _, opt := range opts {
		opt(&options)
	}

	home, err := options.homeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	v := viper.New()
	v.SetDefault("default_branch", DefaultBranch)
	v.SetDefault("python", DefaultPython)
	v.SetDefault("cache_dir", filepath.Join(home, DefaultCacheDirName))
	v.SetDefault("lookback_days", DefaultLookbackDays)
	v.SetDefault("ignore_ssl_cert", false)
	v.SetDefault("api_base_url", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("token", EnvPrefix+"_TOKEN", TokenEnvVar); err != nil {
		return Config{}, fmt.Errorf("bind token env: %w", err)
	}

	if err := readConfigFile(v, home, options); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DefaultBranch: strings.TrimSpace(v.GetString("default_branch")),
		Token:         strings.TrimSpace(v.GetString("token")),
		Python:        strings.TrimSpace(v.GetString("python")),
		CacheDir:      expandHome(v.GetString("cache_dir"), home),
		Lookback:      time.Duration(v.GetInt("lookback_days")) * 24 * time.Hour,
		IgnoreTLS:     v.GetBool("ignore_ssl_cert"),
		APIBaseURL:    strings.TrimSpace(v.GetString("api_base_url")),
		LogLevel:      strings.TrimSpace(v.GetString("log_level")),
		LogFile:       expandHome(v.GetString("log_file"), home),
		ConfigFile:    v.ConfigFileUsed(),
	}
	applyOverrides(&cfg, options.overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, home string, options loadOptions) error {
	if options.configPath != "" {
		v.SetConfigFile(options.configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", options.configPath, err)
		}
		return nil
	}

	v.SetConfigName(ConfigName)
	for _, dir := range options.searchDirs {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(home)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func applyOverrides(cfg *Config, overrides Overrides) {
	if overrides.DefaultBranch != nil && strings.TrimSpace(*overrides.DefaultBranch) != "" {
		cfg.DefaultBranch = strings.TrimSpace(*overrides.DefaultBranch)
	}
	if overrides.IgnoreTLS != nil {
		cfg.IgnoreTLS = *overrides.IgnoreTLS
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}
}

// Validate checks values that would otherwise fail late in a git or API call.
func (c Config) Validate() error {
	if c.DefaultBranch == "" {
		return fmt.Errorf("default_branch must not be empty")
	}
	if strings.ContainsAny(c.DefaultBranch, " \t\n") {
		return fmt.Errorf("default_branch %q must not contain whitespace", c.DefaultBranch)
	}
	if c.Python == "" {
		return fmt.Errorf("python must not be empty")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback_days must be positive")
	}
	return nil
}

func expandHome(path, home string) string {
	path = strings.TrimSpace(path)
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
