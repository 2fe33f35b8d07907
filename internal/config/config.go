package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers accepted in STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	AppName  string   `yaml:"app_name"`
	Env      string   `yaml:"env"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	LogLevel string   `yaml:"log_level"`
	Debug    bool     `yaml:"debug"`
	CORS     []string `yaml:"cors_origins"`

	StoreDriver string      `yaml:"store_driver"`
	SQLitePath  string      `yaml:"sqlite_path"`
	DatabaseURL string      `yaml:"database_url"`
	Redis       RedisConfig `yaml:"redis"`

	JWTSecret          string   `yaml:"jwt_secret"`
	AccessTokenMinutes int      `yaml:"access_token_minutes"`
	EncryptKey         string   `yaml:"encryption_key"`
	LegacyKeys         []string `yaml:"legacy_keys"`
	AdminPasswordHash  string   `yaml:"admin_password_hash"`

	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Namespace string `yaml:"namespace"`
}

// S3Config leaves photo uploads disabled while Bucket is empty.
type S3Config struct {
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// KafkaConfig leaves the event stream disabled while Brokers is empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

func defaults() *Config {
	return &Config{
		AppName:            "MapCask API",
		Env:                "development",
		Host:               "0.0.0.0",
		Port:               8000,
		LogLevel:           "info",
		Debug:              true,
		CORS:               []string{"http://localhost:3000", "http://localhost:8081"},
		StoreDriver:        DriverSQLite,
		SQLitePath:         "mapcask.db",
		AccessTokenMinutes: 60 * 24,
		Redis:              RedisConfig{Addr: "localhost:6379", Namespace: "mapcask"},
		S3:                 S3Config{Region: "us-east-1"},
		Kafka:              KafkaConfig{Topic: "mapcask.events"},
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE, then
// the process environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.AppName = getEnv("APP_NAME", c.AppName)
	c.Env = getEnv("APP_ENV", c.Env)
	c.Host = getEnv("HTTP_HOST", c.Host)
	c.Port = getEnvAsInt("HTTP_PORT", c.Port)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.Debug = getEnvAsBool("DEBUG", c.Debug)
	c.CORS = getEnvAsList("CORS_ORIGINS", c.CORS)

	c.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", c.StoreDriver))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	if c.DatabaseURL == "" && c.StoreDriver == DriverPostgres {
		c.DatabaseURL = postgresURL()
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.Namespace = getEnv("REDIS_NAMESPACE", c.Redis.Namespace)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.AccessTokenMinutes = getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", c.AccessTokenMinutes)
	c.EncryptKey = getEnv("ENCRYPTION_KEY", c.EncryptKey)
	c.LegacyKeys = getEnvAsList("LEGACY_ENCRYPTION_KEYS", c.LegacyKeys)
	c.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", c.AdminPasswordHash)

	c.S3.Region = getEnv("AWS_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKey = getEnv("AWS_ACCESS_KEY_ID", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", c.S3.SecretKey)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.PublicBaseURL = getEnv("S3_PUBLIC_BASE_URL", c.S3.PublicBaseURL)

	c.Kafka.Brokers = getEnvAsList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.AccessTokenMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "postgres")),
		Host:     fmt.Sprintf("%s:%s", getEnv("POSTGRES_HOST", "localhost"), getEnv("POSTGRES_PORT", "5432")),
		Path:     getEnv("POSTGRES_DB", "mapcask"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var res []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
