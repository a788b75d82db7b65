package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Pickup       PickupConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VENDHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VENDHUB_DB_DSN"`
	Driver string `envconfig:"VENDHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VENDHUB_DB_HOST"`
	Port     int    `envconfig:"VENDHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDHUB_DB_USER"`
	Password string `envconfig:"VENDHUB_DB_PASSWORD"`
	Name     string `envconfig:"VENDHUB_DB_NAME"`
	SSLMode  string `envconfig:"VENDHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDHUB_REDIS_URL"`
	Address      string        `envconfig:"VENDHUB_REDIS_ADDR"`
	Password     string        `envconfig:"VENDHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VENDHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

// StripeConfig carries the gateway credentials. The secret key, publishable
// key and webhook signing secret are all required at boot; a missing secret
// is fatal rather than silently defaulted.
type StripeConfig struct {
	APIKey         string `envconfig:"VENDHUB_STRIPE_API_KEY" required:"true"`
	PublishableKey string `envconfig:"VENDHUB_STRIPE_PUBLISHABLE_KEY" required:"true"`
	WebhookSecret  string `envconfig:"VENDHUB_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env            string `envconfig:"VENDHUB_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PickupConfig controls pickup-token issuance.
type PickupConfig struct {
	HMACSecret string `envconfig:"VENDHUB_PICKUP_TOKEN_SECRET" required:"true"`
	TTLSeconds int    `envconfig:"VENDHUB_PICKUP_TOKEN_TTL_SECONDS" default:"900"`
}

// TTL returns the configured pickup-token lifetime.
func (p PickupConfig) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"VENDHUB_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"VENDHUB_CRON_LOCK_TTL" default:"10m"`
	CheckoutWindow  time.Duration `envconfig:"VENDHUB_CHECKOUT_WINDOW" default:"30m"`
	ExpiryBatchSize int           `envconfig:"VENDHUB_ORDER_EXPIRY_BATCH" default:"100"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"VENDHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"VENDHUB_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range componentDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
