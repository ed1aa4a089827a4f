package processor

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/robfig/cron/v3"
    "github.com/spf13/viper"
)

// Config is a configuration for the payment simulator
type Config struct {
    HTTPAddr  string `mapstructure:"http_addr"`
    LogLevel  string `mapstructure:"log_level"`
    // LogFormat is "json" or "text".
    LogFormat string `mapstructure:"log_format"`

    Store   StoreConfig   `mapstructure:"store"`
    Auth    AuthConfig    `mapstructure:"auth"`
    CORS    CORSConfig    `mapstructure:"cors"`
    Charges ChargesConfig `mapstructure:"charges"`
    Sweep   SweepConfig   `mapstructure:"sweep"`
}

type StoreConfig struct {
    // Backend is one of mem, postgres, sqlite.
    Backend      string `mapstructure:"backend"`
    DSN          string `mapstructure:"dsn"`
    MaxOpenConns int    `mapstructure:"max_open_conns"`
    MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type AuthConfig struct {
    // JWTSecret signs HS256 bearer tokens. Empty means bearer tokens are refused.
    JWTSecret   string        `mapstructure:"jwt_secret"`
    StubSubject string        `mapstructure:"stub_subject"`
    TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type CORSConfig struct {
    AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ChargesConfig struct {
    DefaultCurrency string        `mapstructure:"default_currency"`
    DefaultPageSize int           `mapstructure:"default_page_size"`
    MaxPageSize     int           `mapstructure:"max_page_size"`
    PendingTTL      time.Duration `mapstructure:"pending_ttl"`
}

type SweepConfig struct {
    // Schedule is a cron spec; empty disables the sweep.
    Schedule string        `mapstructure:"schedule"`
    Timeout  time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() *Config {
    return &Config{
        HTTPAddr:  "localhost:8000",
        LogLevel:  "info",
        LogFormat: "json",
        Store: StoreConfig{
            Backend:      "mem",
            MaxOpenConns: 10,
            MaxIdleConns: 5,
        },
        Auth: AuthConfig{
            StubSubject: "sandbox",
            TokenTTL:    time.Hour,
        },
        CORS: CORSConfig{
            AllowedOrigins: []string{"*"},
        },
        Charges: ChargesConfig{
            DefaultCurrency: "MXN",
            DefaultPageSize: 100,
            MaxPageSize:     500,
            PendingTTL:      72 * time.Hour,
        },
        Sweep: SweepConfig{
            Schedule: "@every 5m",
            Timeout:  30 * time.Second,
        },
    }
}

// LoadConfig reads .env (if present), then the optional YAML file at path, then
// PAYSIM_* environment variables, on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
    // a missing .env is fine
    _ = godotenv.Load()

    v := viper.New()
    setDefaults(v, DefaultConfig())

    if path != "" {
        v.SetConfigFile(path)
        v.SetConfigType("yaml")
        if err := v.ReadInConfig(); err != nil {
            return nil, fmt.Errorf("reading config %s: %w", path, err)
        }
    }

    v.SetEnvPrefix("PAYSIM")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    cfg := &Config{}
    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decoding config: %w", err)
    }
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

// viper only resolves env vars for keys it already knows about
func setDefaults(v *viper.Viper, d *Config) {
    v.SetDefault("http_addr", d.HTTPAddr)
    v.SetDefault("log_level", d.LogLevel)
    v.SetDefault("log_format", d.LogFormat)
    v.SetDefault("store.backend", d.Store.Backend)
    v.SetDefault("store.dsn", d.Store.DSN)
    v.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
    v.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
    v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
    v.SetDefault("auth.stub_subject", d.Auth.StubSubject)
    v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
    v.SetDefault("cors.allowed_origins", d.CORS.AllowedOrigins)
    v.SetDefault("charges.default_currency", d.Charges.DefaultCurrency)
    v.SetDefault("charges.default_page_size", d.Charges.DefaultPageSize)
    v.SetDefault("charges.max_page_size", d.Charges.MaxPageSize)
    v.SetDefault("charges.pending_ttl", d.Charges.PendingTTL)
    v.SetDefault("sweep.schedule", d.Sweep.Schedule)
    v.SetDefault("sweep.timeout", d.Sweep.Timeout)
}

func (c *Config) Validate() error {
    var errs []error

    switch c.Store.Backend {
    case "mem":
    case "postgres", "sqlite":
        if c.Store.DSN == "" {
            errs = append(errs, fmt.Errorf("store.dsn is required for %s backend", c.Store.Backend))
        }
    default:
        errs = append(errs, fmt.Errorf("unsupported store.backend %q", c.Store.Backend))
    }

    if c.Charges.DefaultPageSize <= 0 || c.Charges.MaxPageSize < c.Charges.DefaultPageSize {
        errs = append(errs, fmt.Errorf("charges page sizes must satisfy 0 < default_page_size <= max_page_size"))
    }
    if c.Charges.PendingTTL <= 0 {
        errs = append(errs, fmt.Errorf("charges.pending_ttl must be positive"))
    }
    if len(c.Charges.DefaultCurrency) != 3 {
        errs = append(errs, fmt.Errorf("charges.default_currency must be a 3-letter code"))
    }
    if c.Sweep.Schedule != "" {
        if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
            errs = append(errs, fmt.Errorf("sweep.schedule: %w", err))
        }
    }

    return errors.Join(errs...)
}
