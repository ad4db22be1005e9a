package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/logging"
	"github.com/teemow/mailfront/internal/mailbox"
)

// Session store backends.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
	StoreMemory  = "memory"
)

// ZohoConfig holds the provider application credentials and endpoints.
type ZohoConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	AuthURL      string `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL     string `mapstructure:"token_url" yaml:"token_url"`
	APIURL       string `mapstructure:"api_url" yaml:"api_url"`
}

// SessionConfig selects where the CLI and MCP server keep the token pair.
type SessionConfig struct {
	Store      string `mapstructure:"store" yaml:"store"`
	File       string `mapstructure:"file" yaml:"file"`
	KeyringDir string `mapstructure:"keyring_dir" yaml:"keyring_dir"`
}

// ServerConfig configures the HTTP proxy.
type ServerConfig struct {
	Addr           string  `mapstructure:"addr" yaml:"addr"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst" yaml:"rate_burst"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	MetricsAddr    string  `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DisplayConfig holds terminal rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// Config is the top-level configuration.
type Config struct {
	Zoho    ZohoConfig    `mapstructure:"zoho" yaml:"zoho"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// envAliases are accepted in addition to the MAILFRONT_ names.
var envAliases = map[string][]string{
	"zoho.client_id":     {"ZOHO_CLIENT_ID", "NEXT_PUBLIC_ZOHO_CLIENT_ID"},
	"zoho.client_secret": {"ZOHO_CLIENT_SECRET"},
	"zoho.redirect_uri":  {"REDIRECT_URI", "NEXT_PUBLIC_REDIRECT_URI"},
}

// FlagKeys maps command line flag names to configuration keys. Load binds
// every flag of the set that appears here.
var FlagKeys = map[string]string{
	"client-id":       "zoho.client_id",
	"client-secret":   "zoho.client_secret",
	"redirect-uri":    "zoho.redirect_uri",
	"api-url":         "zoho.api_url",
	"store":           "session.store",
	"session-file":    "session.file",
	"addr":            "server.addr",
	"rate-limit":      "server.rate_limit",
	"rate-burst":      "server.rate_burst",
	"metrics-enabled": "server.metrics_enabled",
	"metrics-addr":    "server.metrics_addr",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"theme":           "display.theme",
}

// DefaultPath returns ~/.config/mailfront/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailfront", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zoho.auth_url", auth.DefaultAuthURL)
	v.SetDefault("zoho.token_url", auth.DefaultTokenURL)
	v.SetDefault("zoho.api_url", gateway.DefaultBaseURL)
	v.SetDefault("session.store", StoreFile)
	v.SetDefault("session.file", auth.DefaultSessionFile())
	v.SetDefault("session.keyring_dir", filepath.Dir(auth.DefaultSessionFile()))
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
	v.SetDefault("display.theme", string(mailbox.ThemeLight))
}

// Load reads the configuration. An empty path reads DefaultPath when it
// exists; an explicit path must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MAILFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		envs := append([]string{"MAILFRONT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)):
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that do not depend on the command being run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Session.Store {
	case StoreFile, StoreKeyring, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("session.store must be one of %s, %s, %s (got %q)", StoreFile, StoreKeyring, StoreMemory, c.Session.Store))
	}
	if c.Session.Store == StoreFile && c.Session.File == "" {
		errs = append(errs, errors.New("session.file is required for the file store"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative (got %v)", c.Server.RateLimit))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("server.rate_burst must be at least 1 (got %d)", c.Server.RateBurst))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %s or %s (got %q)", logging.FormatText, logging.FormatJSON, c.Log.Format))
	}
	if _, err := mailbox.ParseTheme(c.Display.Theme); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequireCredentials checks that the provider application is configured.
// The token grants need them; the mail operations do not.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.Zoho.ClientID == "" {
		missing = append(missing, "client id (ZOHO_CLIENT_ID)")
	}
	if c.Zoho.ClientSecret == "" {
		missing = append(missing, "client secret (ZOHO_CLIENT_SECRET)")
	}
	if c.Zoho.RedirectURI == "" {
		missing = append(missing, "redirect uri (REDIRECT_URI)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing provider credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}
