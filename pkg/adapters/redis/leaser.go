package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces lease keys.
const DefaultPrefix = "colloquy:lease:"

var (
	releaseScript = backend.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	refreshScript = backend.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// Leaser implements ports.Leaser using Redis, so session identifiers stay unique
// across every replica that shares the server.
type Leaser struct {
	client *backend.Client
	prefix string
}

type Option func(*Leaser)

// WithPrefix sets the key prefix for leases.
func WithPrefix(prefix string) Option {
	return func(l *Leaser) {
		l.prefix = prefix
	}
}

// New creates a new Redis leaser with its own client.
func New(address, password string, db int, opts ...Option) *Leaser {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis leaser from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Leaser {
	l := &Leaser{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Ping checks connectivity.
func (l *Leaser) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (l *Leaser) Close() error {
	return l.client.Close()
}

func (l *Leaser) key(id string) string {
	return l.prefix + id
}

// Acquire takes the lease using SET NX PX with a random token, so that only the
// holder can later refresh or release it.
func (l *Leaser) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lease %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLeaseHeld)
	}
	return &lease{owner: l, key: key, token: token}, nil
}

type lease struct {
	owner *Leaser
	key   string
	token string
}

func (s *lease) Key() string { return s.key }

func (s *lease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, s.owner.client, []string{s.owner.key(s.key)}, s.token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis error refreshing lease %s: %w", s.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", s.key, domain.ErrLeaseLost)
	}
	return nil
}

func (s *lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, s.owner.client, []string{s.owner.key(s.key)}, s.token).Err(); err != nil {
		return fmt.Errorf("redis error releasing lease %s: %w", s.key, err)
	}
	return nil
}
