package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration
type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Mail      MailConfig      `mapstructure:"mail"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ClientURL         string        `mapstructure:"client_url"`
	CORSOriginPattern string        `mapstructure:"cors_origin_pattern"`
	Production        bool          `mapstructure:"production"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	AdminDiscordIDs []string      `mapstructure:"admin_discord_ids"`
	Discord         OAuthClient   `mapstructure:"discord"`
	Google          OAuthClient   `mapstructure:"google"`
}

// OAuthClient holds the credentials of one identity provider.
// A provider with an empty ClientID is disabled.
type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Issuer       string `mapstructure:"issuer"`
}

func (c OAuthClient) Enabled() bool {
	return c.ClientID != ""
}

type UploadsConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxBytes      int64  `mapstructure:"max_bytes"`
}

type MailConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	From           string   `mapstructure:"from"`
	AdminAddresses []string `mapstructure:"admin_addresses"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type SchedulerConfig struct {
	StatusSweepInterval time.Duration `mapstructure:"status_sweep_interval"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var secretKeys = []string{
	"auth.discord.client_id",
	"auth.discord.client_secret",
	"auth.discord.redirect_url",
	"auth.google.client_id",
	"auth.google.client_secret",
	"auth.google.redirect_url",
	"auth.admin_discord_ids",
	"server.cors_origin_pattern",
	"server.production",
	"uploads.endpoint",
	"uploads.access_key",
	"uploads.secret_key",
	"uploads.bucket",
	"uploads.public_base_url",
	"mail.host",
	"mail.username",
	"mail.password",
	"mail.from",
	"mail.admin_addresses",
	"nats.url",
	"log.file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.client_url", "http://localhost:5173")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "rprepo.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auth.jwt_secret", "rprepo-dev-secret-change-in-production")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.google.issuer", "https://accounts.google.com")
	v.SetDefault("uploads.max_bytes", 5<<20)
	v.SetDefault("uploads.use_ssl", true)
	v.SetDefault("mail.port", 587)
	v.SetDefault("nats.subject_prefix", "rprepo")
	v.SetDefault("scheduler.status_sweep_interval", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
}

// Load reads config.<env>.yaml (optional) and applies RPREPO_* environment overrides.
func Load() (*Config, error) {
	env := os.Getenv("RPREPO_ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// RPREPO_DATABASE_DSN overrides database.dsn, etc.
	v.SetEnvPrefix("rprepo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.Set("env", env)

	// AutomaticEnv only covers keys viper already knows about
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
