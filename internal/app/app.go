// Package app wires configuration into the database, redis, dispatchers and
// delivery worker shared by the api and worker binaries.
package app

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/nimasrn/church-messaging/internal/config"
	"github.com/nimasrn/church-messaging/internal/delivery"
	"github.com/nimasrn/church-messaging/internal/dispatch"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/internal/repository"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/pg"
	"github.com/nimasrn/church-messaging/pkg/redis"
)

type App struct {
	DB         *pg.DB
	Redis      redis.RedisAdapter // nil when REDIS_ADDR is unset
	Repos      *repository.Repositories
	Dispatcher *dispatch.Registry
	Worker     *delivery.Worker
}

func New(cfg *config.Config) (*App, error) {
	if err := ValidateWorker(cfg); err != nil {
		return nil, err
	}

	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}

	var rds redis.RedisAdapter
	if cfg.RedisAddr != "" {
		rds, err = redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{cfg.RedisAddr},
			ClientName: cfg.AppName,
			DB:         cfg.RedisDatabase,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("redis not configured, worker cycles run without the run lock")
	}

	dispatcher, err := NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}

	repos := repository.NewRepositories(db)

	var lock delivery.Locker
	if rds != nil {
		lock = delivery.NewRunLock(rds, cfg.WorkerLockKey, cfg.WorkerLockTTL)
	}
	worker := delivery.NewWorker(WorkerConfig(cfg), delivery.NewStores(repos), dispatcher, lock)

	return &App{
		DB:         db,
		Redis:      rds,
		Repos:      repos,
		Dispatcher: dispatcher,
		Worker:     worker,
	}, nil
}

func OpenDatabase(cfg *config.Config) (*pg.DB, error) {
	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := WriteConfig(cfg)
	return pg.CreateReadWrite(readConf, writeConf, cfg.AppDebug)
}

func WriteConfig(cfg *config.Config) pg.Config {
	return pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
}

// NewDispatcher builds the channel registry. A provider without credentials
// is still registered; the dispatch policy decides what it does.
func NewDispatcher(cfg *config.Config) (*dispatch.Registry, error) {
	policy := dispatch.Policy{AllowSimulated: cfg.AllowSimulated()}

	email, err := dispatch.NewEmailDispatcher(dispatch.EmailConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		Encryption: cfg.SMTPEncryption,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		Timeout:    cfg.SMTPTimeout,
	}, policy)
	if err != nil {
		return nil, err
	}

	sms := dispatch.NewSMSDispatcher(dispatch.SMSConfig{
		URL:                     cfg.SMSProviderURL,
		APIKey:                  cfg.SMSAPIKey,
		APISecret:               cfg.SMSAPISecret,
		SenderID:                cfg.SMSSenderID,
		DefaultRegion:           cfg.SMSDefaultRegion,
		Timeout:                 cfg.SMSTimeout,
		MaxConns:                cfg.SMSMaxConns,
		CircuitBreakerThreshold: cfg.SMSCircuitBreakerLimit,
		CircuitBreakerTimeout:   cfg.SMSCircuitBreakerWindow,
	}, policy)

	return dispatch.NewRegistry().
		Register(model.ChannelEmail, email).
		Register(model.ChannelSMS, sms), nil
}

func WorkerConfig(cfg *config.Config) delivery.Config {
	return delivery.Config{
		BatchSize:         cfg.WorkerBatchSize,
		Throttle:          cfg.WorkerThrottle,
		DispatchTimeout:   cfg.DispatchTimeout,
		StaleAfter:        cfg.WorkerStaleAfter,
		LegacyLedgerReuse: cfg.WorkerLegacyLedgerReuse,
	}
}

// ValidateWorker checks the worker timings against each other. A claim must
// survive one dispatch without a heartbeat, and must outlive the run lock of
// the cycle that took it.
func ValidateWorker(cfg *config.Config) error {
	if err := WorkerConfig(cfg).Validate(); err != nil {
		return errors.Wrap(err, "WORKER_STALE_AFTER")
	}
	if cfg.WorkerStaleAfter <= cfg.WorkerLockTTL {
		return errors.Errorf("WORKER_STALE_AFTER (%s) must exceed WORKER_LOCK_TTL (%s)", cfg.WorkerStaleAfter, cfg.WorkerLockTTL)
	}
	return nil
}

// EnvPath returns the value of a --env=path argument when the file exists.
func EnvPath(args []string) string {
	return argValue(args, "--env=")
}

func argValue(args []string, prefix string) string {
	for _, v := range args {
		if strings.HasPrefix(v, prefix) {
			p := strings.TrimPrefix(v, prefix)
			if _, err := os.Stat(p); err != nil {
				logger.Error("failed to open the passed env file", "path", p, "error", err)
				return ""
			}
			return p
		}
	}
	return ""
}
