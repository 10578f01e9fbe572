package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/nimasrn/church-messaging/pkg/logger"
)

const EnvProduction = "production"

var config *Config

// Config holds every configuration value of the api, the worker and the
// cli. Only this struct must be used to hold configuration values, no
// direct access to env or any other config source should be made.
type Config struct {
	AppEnv              string `env:"APP_ENV,default=dev"`
	AppName             string `env:"APP_NAME,default=church_messaging"`
	AppDebug            bool   `env:"APP_DEBUG,default=false"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI,default=/metrics"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpServerReadTimeout  time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=5s"`
	HttpServerWriteTimeout time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=60s"`
	HttpRequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=120s"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=church:"`

	PromNamespace string `env:"PROM_NAMESPACE,default=church_messaging"`

	SMTPHost       string        `env:"SMTP_HOST"`
	SMTPPort       int           `env:"SMTP_PORT,default=587"`
	SMTPUsername   string        `env:"SMTP_USERNAME"`
	SMTPPassword   string        `env:"SMTP_PASSWORD"`
	SMTPEncryption string        `env:"SMTP_ENCRYPTION,default=tls"`
	SMTPFrom       string        `env:"SMTP_FROM"`
	SMTPFromName   string        `env:"SMTP_FROM_NAME"`
	SMTPTimeout    time.Duration `env:"SMTP_TIMEOUT,default=30s"`

	SMSProviderURL          string        `env:"SMS_PROVIDER_URL"`
	SMSAPIKey               string        `env:"SMS_API_KEY"`
	SMSAPISecret            string        `env:"SMS_API_SECRET"`
	SMSSenderID             string        `env:"SMS_SENDER_ID"`
	SMSDefaultRegion        string        `env:"SMS_DEFAULT_REGION,default=US"`
	SMSTimeout              time.Duration `env:"SMS_TIMEOUT,default=10s"`
	SMSMaxConns             int           `env:"SMS_MAX_CONNS,default=16"`
	SMSCircuitBreakerLimit  int           `env:"SMS_CIRCUIT_BREAKER_THRESHOLD,default=5"`
	SMSCircuitBreakerWindow time.Duration `env:"SMS_CIRCUIT_BREAKER_TIMEOUT,default=30s"`

	// DispatchAllowSimulated is "auto", "true" or "false". auto allows
	// simulated delivery everywhere but production.
	DispatchAllowSimulated string        `env:"DISPATCH_ALLOW_SIMULATED,default=auto"`
	DispatchTimeout        time.Duration `env:"DISPATCH_TIMEOUT,default=30s"`

	WorkerBatchSize         int           `env:"WORKER_BATCH_SIZE,default=10"`
	WorkerThrottle          time.Duration `env:"WORKER_THROTTLE,default=100ms"`
	WorkerStaleAfter        time.Duration `env:"WORKER_STALE_AFTER,default=30m"`
	WorkerLegacyLedgerReuse bool          `env:"WORKER_LEGACY_LEDGER_REUSE,default=false"`
	WorkerCron              string        `env:"WORKER_CRON"`
	WorkerLockKey           string        `env:"WORKER_LOCK_KEY,default=delivery:worker:lock"`
	WorkerLockTTL           time.Duration `env:"WORKER_LOCK_TTL,default=10m"`
}

// AllowSimulated resolves DISPATCH_ALLOW_SIMULATED against APP_ENV.
func (c *Config) AllowSimulated() bool {
	switch c.DispatchAllowSimulated {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return c.AppEnv != EnvProduction
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
