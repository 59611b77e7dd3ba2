package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"approval-ledger/internal/ledger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreFile     = "file"
	StoreMongo    = "mongo"
)

// Config is the root configuration of the server and ledgerctl.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Store    StoreConfig    `mapstructure:"store"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	S3       S3Config       `mapstructure:"s3"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// StoreConfig selects the Document Store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	File   string `mapstructure:"file"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	DBName     string `mapstructure:"db_name"`
	Collection string `mapstructure:"collection"`
}

type LedgerConfig struct {
	Transitions string `mapstructure:"transitions"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AdminConfig seeds the first admin account when none exists.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether mail notifications are configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

type S3Config struct {
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	CloudFrontDomain string `mapstructure:"cloudfront_domain"`
	Prefix           string `mapstructure:"prefix"`
}

// Enabled reports whether export publishing is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != "" && s.Region != ""
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

var defaults = map[string]interface{}{
	"server.port":             8080,
	"server.mode":             "debug",
	"server.cors_origins":     []string{"http://localhost:5173", "http://127.0.0.1:5173"},
	"server.shutdown_timeout": 10 * time.Second,
	"db.host":                 "localhost",
	"db.port":                 5432,
	"db.user":                 "postgres",
	"db.password":             "postgres",
	"db.name":                 "postgres",
	"db.sslmode":              "disable",
	"store.driver":            StorePostgres,
	"store.file":              filepath.Join("data", "documents.json"),
	"mongo.uri":               "mongodb://localhost:27017",
	"mongo.db_name":           "approval_ledger",
	"mongo.collection":        "documents",
	"ledger.transitions":      ledger.RulesForward,
	"jwt.secret":              "",
	"jwt.expiration":          24 * time.Hour,
	"admin.username":          "",
	"admin.email":             "",
	"admin.password":          "",
	"smtp.host":               "",
	"smtp.port":               587,
	"smtp.username":           "",
	"smtp.password":           "",
	"smtp.from":               "",
	"s3.bucket":               "",
	"s3.region":               "",
	"s3.access_key_id":        "",
	"s3.secret_access_key":    "",
	"s3.cloudfront_domain":    "",
	"s3.prefix":               "exports",
	"log.level":               "info",
	"log.file":                "",
}

// Load reads <dir>/.env into the environment, then layers <dir>/config.yaml
// and environment variables over the defaults. Keys map to variables by
// upper-casing and replacing dots with underscores, so db.host is DB_HOST.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("server.mode", "SERVER_MODE", "GIN_MODE"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations, normalizing case where harmless.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be one of debug, release, test; got %q", c.Server.Mode)
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StorePostgres, StoreMongo:
	case StoreFile:
		if strings.TrimSpace(c.Store.File) == "" {
			return errors.New("store.file must be set when store.driver is \"file\"")
		}
	default:
		return fmt.Errorf("store.driver must be one of postgres, file, mongo; got %q", c.Store.Driver)
	}

	if _, err := ledger.ParseTransitions(c.Ledger.Transitions); err != nil {
		return fmt.Errorf("ledger.transitions: %w", err)
	}

	if c.JWT.Secret == "" && c.Server.Mode == "release" {
		return errors.New("jwt.secret is required in release mode")
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("jwt.expiration must be positive, got %s", c.JWT.Expiration)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	return nil
}
