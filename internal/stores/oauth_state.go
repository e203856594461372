package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultOAuthStateTTL bounds how long a login redirect may take.
	DefaultOAuthStateTTL = 10 * time.Minute
	defaultOAuthPrefix   = "bk:oauth:state"
)

var (
	ErrOAuthStateNotFound         = errors.New("oauth state not found")
	ErrOAuthStateRedisUnavailable = errors.New("oauth state redis unavailable")
)

// OAuthStateStore keeps single-use OAuth state values. Only the SHA-256 of
// a state is stored, so a Redis dump cannot be replayed.
type OAuthStateStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewOAuthStateStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *OAuthStateStore {
	if prefix == "" {
		prefix = defaultOAuthPrefix
	}
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	return &OAuthStateStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *OAuthStateStore) key(state string) string {
	sum := sha256.Sum256([]byte(state))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}

// Save records state. A state already present is rejected so two redirects
// never share one value.
func (s *OAuthStateStore) Save(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("empty oauth state")
	}
	ok, err := s.redis.SetNX(ctx, s.key(state), s.now().Unix(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOAuthStateRedisUnavailable, err)
	}
	if !ok {
		return errors.New("oauth state collision")
	}
	return nil
}

// Consume deletes state and reports ErrOAuthStateNotFound when it was never
// saved, already used or expired.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrOAuthStateNotFound
	}
	_, err := s.redis.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOAuthStateNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOAuthStateRedisUnavailable, err)
	}
	return nil
}
