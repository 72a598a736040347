// Package config loads client and stub-server settings from defaults, an
// optional TOML file, .env.local, and RULEBOOK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "RULEBOOK"
	stubEnvPrefix = "RULEBOOK_STUB"
	// DefaultEnvFile follows the backend's convention for local secrets.
	DefaultEnvFile = ".env.local"
)

// Config holds client configuration.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Auth       AuthConfig       `mapstructure:"auth"`
	UI         UIConfig         `mapstructure:"ui"`
	Log        LogConfig        `mapstructure:"log"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
}

// APIConfig describes the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0s"`
}

// AuthConfig prefills the login form. Values are never written back.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	AltScreen bool `mapstructure:"alt_screen"`
}

// LogConfig selects where and how verbosely to log.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Debug bool   `mapstructure:"debug"`
}

// TranscriptConfig holds the export target for ctrl+s.
type TranscriptConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// Stub holds settings for the local development backend.
type Stub struct {
	Addr      string        `mapstructure:"addr" validate:"required"`
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=8"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0s"`
	// Users is a comma-separated list of username:password pairs.
	Users   string `mapstructure:"users" validate:"required"`
	LogFile string `mapstructure:"log_file"`
	Debug   bool   `mapstructure:"debug"`
}

// Options selects the files consulted by Load.
type Options struct {
	// ConfigFile overrides the RULEBOOK_CONFIG lookup.
	ConfigFile string
	// EnvFiles are loaded into the process environment before reading
	// env overrides. Missing files are skipped.
	EnvFiles []string
}

// DefaultOptions reads ~/.config/rulebook/config.toml and .env.local.
func DefaultOptions() Options {
	return Options{EnvFiles: []string{DefaultEnvFile}}
}

var validate = validator.New()

// Load reads client configuration. Env var overrides use prefix RULEBOOK_,
// e.g. RULEBOOK_API_BASE_URL.
func Load(opts Options) (Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return Config{}, err
	}
	v := newViper(envPrefix, opts.ConfigFile, os.Getenv(envPrefix+"_CONFIG"))

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 2*time.Minute)
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("ui.alt_screen", true)
	v.SetDefault("log.file", filepath.Join(stateDir(), "rulebook.log"))
	v.SetDefault("log.debug", false)
	v.SetDefault("transcript.path", filepath.Join(stateDir(), "transcript.json"))

	if err := readConfig(v); err != nil {
		return Config{}, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field constraints. It is called by Load and again by main
// after flag overrides.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadStub reads stub-server configuration with prefix RULEBOOK_STUB_.
func LoadStub(opts Options) (Stub, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return Stub{}, err
	}
	v := newViper(stubEnvPrefix, opts.ConfigFile, os.Getenv(stubEnvPrefix+"_CONFIG"))

	v.SetDefault("addr", "127.0.0.1:8000")
	v.SetDefault("jwt_secret", "rulebook-development-secret")
	v.SetDefault("token_ttl", 30*time.Minute)
	v.SetDefault("users", "testuser:testpassword")
	v.SetDefault("log_file", filepath.Join(stateDir(), "rulebook-stub.log"))
	v.SetDefault("debug", false)

	if err := readConfig(v); err != nil {
		return Stub{}, err
	}
	var s Stub
	if err := v.Unmarshal(&s); err != nil {
		return Stub{}, fmt.Errorf("unmarshal stub config: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return Stub{}, fmt.Errorf("invalid stub config: %w", err)
	}
	return s, nil
}

// Credentials splits Users into a username → password map.
func (s Stub) Credentials() (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(s.Users, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, password, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("invalid user entry %q: want username:password", pair)
		}
		users[name] = password
	}
	if len(users) == 0 {
		return nil, errors.New("no stub users configured")
	}
	return users, nil
}

func newViper(prefix, explicit, fromEnv string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	switch {
	case explicit != "":
		v.SetConfigFile(explicit)
	case fromEnv != "":
		v.SetConfigFile(fromEnv)
	default:
		v.AddConfigPath(filepath.Join(homeDir(), ".config", "rulebook"))
		if prefix == stubEnvPrefix {
			v.SetConfigName("stub")
		} else {
			v.SetConfigName("config")
		}
	}
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// readConfig tolerates a missing default config file but not a broken one
// or a missing explicitly named one.
func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func stateDir() string {
	return filepath.Join(homeDir(), ".local", "state", "rulebook")
}
