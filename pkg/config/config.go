package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "VRX"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "VRX_APP_ENV"
	EnvDBDSN  = "VRX_DB_DSN"
	EnvDBHost = "VRX_DB_HOST"
	EnvDBUser = "VRX_DB_USER"
	EnvDBName = "VRX_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Ordering OrderingConfig
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
	Env          string `envconfig:"VRX_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"VRX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VRX_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VRX_DB_DSN"`
	Driver string `envconfig:"VRX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VRX_DB_HOST"`
	LegacyPort     int    `envconfig:"VRX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VRX_DB_USER"`
	LegacyPassword string `envconfig:"VRX_DB_PASSWORD"`
	LegacyName     string `envconfig:"VRX_DB_NAME"`
	LegacySSLMode  string `envconfig:"VRX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VRX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VRX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VRX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VRX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VRX_REDIS_URL"`
	Address      string        `envconfig:"VRX_REDIS_ADDR"`
	Password     string        `envconfig:"VRX_REDIS_PASSWORD"`
	DB           int           `envconfig:"VRX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VRX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VRX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VRX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VRX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VRX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// OrderingConfig controls order-number assignment and checkout guards.
type OrderingConfig struct {
	NumberPrefix       string        `envconfig:"VRX_ORDER_NUMBER_PREFIX" default:"VRX"`
	SequenceMaxRetries int           `envconfig:"VRX_ORDER_SEQUENCE_MAX_RETRIES" default:"3"`
	IdempotencyTTL     time.Duration `envconfig:"VRX_ORDER_IDEMPOTENCY_TTL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
