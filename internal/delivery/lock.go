package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/redis"
)

var ErrLockHeld = errors.New("worker run lock held by another process")

const DefaultLockKey = "delivery:worker:lock"

// Locker keeps two cycles from overlapping. The schedule claim is what makes
// overlapping cycles safe; the lock only saves the second one the work.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// RunLock is a Redis SET NX lock with a TTL. Release only deletes the key
// while it still holds this holder's token.
type RunLock struct {
	redis redis.RedisAdapter
	key   string
	ttl   time.Duration
}

func NewRunLock(adapter redis.RedisAdapter, key string, ttl time.Duration) *RunLock {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RunLock{redis: adapter, key: key, ttl: ttl}
}

func (l *RunLock) Acquire(ctx context.Context) (func(), error) {
	token := []byte(uuid.NewString())

	acquired, err := l.redis.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	logger.Debug("Run lock acquired", "key", l.key, "ttl", l.ttl)

	return func() {
		// the cycle's ctx may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		released, err := l.redis.DelIfEquals(ctx, l.key, token)
		if err != nil {
			logger.Warn("Failed to release run lock", "key", l.key, "error", err)
			return
		}
		if !released {
			logger.Warn("Run lock expired before release", "key", l.key, "ttl", l.ttl)
		}
	}, nil
}

// Held reports whether any process holds the lock.
func (l *RunLock) Held(ctx context.Context) (bool, error) {
	n, err := l.redis.Exist(ctx, l.key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
