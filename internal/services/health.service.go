package services

import (
	"context"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService checks the database and, when configured, Redis.
type HealthService struct {
	db    Pinger
	redis Pinger
}

func NewHealthService(db Pinger, redis Pinger) *HealthService {
	return &HealthService{db: db, redis: redis}
}

// Check returns a status per dependency and whether all of them are up.
func (s *HealthService) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	check := func(name string, p Pinger) {
		if p == nil {
			return
		}
		if err := p.Ping(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			return
		}
		status[name] = "ok"
	}
	check("database", s.db)
	check("redis", s.redis)
	return status, healthy
}
