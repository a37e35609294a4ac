package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"` // empty disables the health server
}

type WS struct {
	MaxFrameBytes  int64         `yaml:"maxFrameBytes"`
	PingEvery      time.Duration `yaml:"pingEvery"`
	SendBuffer     int           `yaml:"sendBuffer"`
	AllowedOrigins []string      `yaml:"allowedOrigins"` // empty allows any origin
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // watch-party
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Storage struct {
	Driver string `yaml:"driver"` // postgres|memory
}

type Postgres struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
}

type Redis struct {
	Addr     string        `yaml:"addr"` // empty disables the profile cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type Auth struct {
	JWTPublicKeyPath string        `yaml:"jwtPublicKeyPath"` // empty: trust X-User-ID
	Issuer           string        `yaml:"issuer"`
	Audience         string        `yaml:"audience"`
	ClockSkew        time.Duration `yaml:"clockSkew"`
}

type Chat struct {
	MaxMessageLen int `yaml:"maxMessageLen"`
}

type Sync struct {
	DriftTolerance time.Duration `yaml:"driftTolerance"`
	SettleWindow   time.Duration `yaml:"settleWindow"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	WS       WS       `yaml:"ws"`
	Logging  Logging  `yaml:"logging"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Chat     Chat     `yaml:"chat"`
	Sync     Sync     `yaml:"sync"`
}

// LoadConfig reads .env (if present), then the YAML file at CONFIG_PATH, then env overrides.
// A missing default config file is not an error; a missing CONFIG_PATH file is.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if _, err := os.Stat(defaultPath); err == nil {
			path = defaultPath
		}
	}
	return Load(path)
}

// Load reads path (may be empty for defaults only) and applies env overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTP.Addr, "WATCHPARTY_HTTP_ADDR")
	setString(&c.GRPC.Addr, "WATCHPARTY_GRPC_ADDR")
	setString(&c.Storage.Driver, "WATCHPARTY_STORAGE_DRIVER")
	setString(&c.Postgres.DSN, "DATABASE_URL")
	setString(&c.Postgres.DSN, "WATCHPARTY_POSTGRES_DSN")
	setString(&c.Redis.Addr, "WATCHPARTY_REDIS_ADDR")
	setString(&c.Redis.Password, "WATCHPARTY_REDIS_PASSWORD")
	setString(&c.Auth.JWTPublicKeyPath, "WATCHPARTY_JWT_PUBLIC_KEY_PATH")
	setString(&c.Logging.Env, "APP_ENV")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("WATCHPARTY_CORS_ORIGINS"); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	if v, err := strconv.Atoi(os.Getenv("WATCHPARTY_CHAT_MAX_LEN")); err == nil {
		c.Chat.MaxMessageLen = v
	}
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout <= 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = "memory"
		if c.Postgres.DSN != "" {
			c.Storage.Driver = "postgres"
		}
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported (postgres|memory)", c.Storage.Driver)
	}

	if c.WS.MaxFrameBytes <= 0 {
		c.WS.MaxFrameBytes = 64 << 10
	}
	if c.WS.PingEvery <= 0 {
		c.WS.PingEvery = 25 * time.Second
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "watchparty:"
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 5 * time.Minute
	}

	if c.Auth.ClockSkew <= 0 {
		c.Auth.ClockSkew = 30 * time.Second
	}
	if c.Chat.MaxMessageLen <= 0 {
		c.Chat.MaxMessageLen = 4000
	}
	if c.Sync.DriftTolerance <= 0 {
		c.Sync.DriftTolerance = 2 * time.Second
	}
	if c.Sync.SettleWindow <= 0 {
		c.Sync.SettleWindow = 500 * time.Millisecond
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "watch-party"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
