package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "HALLWAY"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultLogLevel       = "info"
	defaultCookieName     = "hallway_session"
	defaultSessionTTL     = 720
	defaultJWKSURL        = "https://www.googleapis.com/oauth2/v3/certs"
	defaultStorageDriver  = DriverFile
	defaultMessagesPath   = "data/messages.json"
	defaultUsersPath      = "data/users.json"
	defaultDatabasePath   = "hallway.db"
	defaultHistoryLimit   = 500
	defaultGoogleRedirect = "http://localhost:8080/auth/google/callback"
)

const (
	// DriverFile selects the JSON flat-file persistence engine.
	DriverFile = "file"
	// DriverSQLite selects the gorm/SQLite persistence engine.
	DriverSQLite = "sqlite"
)

// AppConfig captures runtime configuration for the chat API server.
type AppConfig struct {
	HTTPAddress        string
	LogLevel           string
	SessionSecret      string
	SessionCookieName  string
	SessionTTLMinutes  int
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleJWKSURL      string
	StorageDriver      string
	MessagesPath       string
	UsersPath          string
	DatabasePath       string
	HistoryLimit       int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.cookie_name", defaultCookieName)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTL)
	configViper.SetDefault("google.jwks_url", defaultJWKSURL)
	configViper.SetDefault("google.redirect_url", defaultGoogleRedirect)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("storage.messages_path", defaultMessagesPath)
	configViper.SetDefault("storage.users_path", defaultUsersPath)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("chat.history_limit", defaultHistoryLimit)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		LogLevel:           configViper.GetString("log.level"),
		SessionSecret:      configViper.GetString("session.signing_secret"),
		SessionCookieName:  configViper.GetString("session.cookie_name"),
		SessionTTLMinutes:  configViper.GetInt("session.ttl_minutes"),
		GoogleClientID:     configViper.GetString("google.client_id"),
		GoogleClientSecret: configViper.GetString("google.client_secret"),
		GoogleRedirectURL:  configViper.GetString("google.redirect_url"),
		GoogleJWKSURL:      configViper.GetString("google.jwks_url"),
		StorageDriver:      configViper.GetString("storage.driver"),
		MessagesPath:       configViper.GetString("storage.messages_path"),
		UsersPath:          configViper.GetString("storage.users_path"),
		DatabasePath:       configViper.GetString("database.path"),
		HistoryLimit:       configViper.GetInt("chat.history_limit"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("session.ttl_minutes must be positive")
	}
	switch c.StorageDriver {
	case DriverFile:
		if strings.TrimSpace(c.MessagesPath) == "" || strings.TrimSpace(c.UsersPath) == "" {
			return fmt.Errorf("storage.messages_path and storage.users_path are required for the file driver")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q", DriverFile, DriverSQLite)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("chat.history_limit must be positive")
	}
	return nil
}
