package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "privatedrops:lock:"

var (
	ErrLockerDisabled = errors.New("locker_disabled")
	ErrInvalidLock    = errors.New("invalid_lock")
)

// Deletes the key only while it still carries the holder's token, so a lease
// that outlived its TTL cannot drop a lock another instance took since.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out cross-instance leases for scheduler jobs.
type Locker struct {
	client *redis.Client
}

// NewLocker returns nil without Redis; callers treat a nil Locker as
// "every instance runs its own jobs".
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Lease is a held lock.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes the lock for name. It returns a nil lease when another
// instance already holds it.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockerDisabled
	}
	name = strings.TrimSpace(name)
	if name == "" || ttl <= 0 {
		return nil, ErrInvalidLock
	}

	lease := &Lease{client: l.client, key: lockKeyPrefix + name, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	return releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.token).Err()
}
