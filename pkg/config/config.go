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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Provider     ProviderConfig
	Discovery    DiscoveryConfig
	Ingestion    IngestionConfig
	Settlement   SettlementConfig
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
	Env          string `envconfig:"CLUBHOUSE_APP_ENV" required:"true"`
	Port         string `envconfig:"CLUBHOUSE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CLUBHOUSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CLUBHOUSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLUBHOUSE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CLUBHOUSE_DB_DSN"`
	Driver string `envconfig:"CLUBHOUSE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CLUBHOUSE_DB_HOST"`
	LegacyPort     int    `envconfig:"CLUBHOUSE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLUBHOUSE_DB_USER"`
	LegacyPassword string `envconfig:"CLUBHOUSE_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLUBHOUSE_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLUBHOUSE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLUBHOUSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLUBHOUSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLUBHOUSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLUBHOUSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLUBHOUSE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLUBHOUSE_REDIS_ADDR"`
	Password     string        `envconfig:"CLUBHOUSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLUBHOUSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLUBHOUSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLUBHOUSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLUBHOUSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLUBHOUSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLUBHOUSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ProviderConfig bounds every outbound call to the sports data provider.
type ProviderConfig struct {
	BaseURL        string        `envconfig:"CLUBHOUSE_PROVIDER_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"CLUBHOUSE_PROVIDER_API_KEY"`
	LeagueID       string        `envconfig:"CLUBHOUSE_PROVIDER_LEAGUE_ID" default:"pga"`
	RequestTimeout time.Duration `envconfig:"CLUBHOUSE_PROVIDER_REQUEST_TIMEOUT" default:"8s"`
	MaxRetries     int           `envconfig:"CLUBHOUSE_PROVIDER_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"CLUBHOUSE_PROVIDER_RETRY_BASE_DELAY" default:"250ms"`
}

type DiscoveryConfig struct {
	HorizonDays          int `envconfig:"CLUBHOUSE_DISCOVERY_HORIZON_DAYS" default:"120"`
	DefaultEntryFeeCents int `envconfig:"CLUBHOUSE_DISCOVERY_DEFAULT_ENTRY_FEE_CENTS" default:"1000"`
}

type IngestionConfig struct {
	SelfFetch bool `envconfig:"CLUBHOUSE_INGESTION_SELF_FETCH" default:"true"`
}

type SettlementConfig struct {
	RakeBps int `envconfig:"CLUBHOUSE_SETTLEMENT_RAKE_BPS" default:"1000"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"CLUBHOUSE_CRON_INTERVAL" default:"1m"`
	SweepBatchSize int           `envconfig:"CLUBHOUSE_CRON_SWEEP_BATCH_SIZE" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CLUBHOUSE_AUTO_MIGRATE" default:"false"`
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
