package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// codeKeyPrefix is the Redis key prefix for pending verification codes.
const codeKeyPrefix = "code:"

// CodeStore is durable keyed storage for pending verification codes.
// Expiry is owned by the store: an expired code reads as absent without any
// cleanup pass.
//
// Both operations are atomic with respect to concurrent calls for the same
// phone. PutIfAbsent folds the "is a code already pending?" check and the
// insert into one conditional write, and Consume folds the compare and the
// delete into one script, so two racing issue or verify calls for one phone
// can never both succeed.
type CodeStore interface {
	// PutIfAbsent stores the code under the phone with the given TTL unless
	// a live code already exists. Returns false without writing when one does.
	PutIfAbsent(ctx context.Context, phone, code string, ttl time.Duration) (bool, error)

	// Consume deletes the stored code and returns true only if it exactly
	// equals the submitted one. Absent, expired, or mismatched codes return
	// false; a mismatch leaves the stored code in place.
	Consume(ctx context.Context, phone, code string) (bool, error)
}

// consumeScript compares and deletes in a single Redis round trip. GET on an
// expired key yields false, so expiry never needs separate handling.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// redisCodeStore implements CodeStore on a shared Redis client.
type redisCodeStore struct {
	rdb *redis.Client
}

// NewCodeStore creates a Redis-backed code store.
func NewCodeStore(rdb *redis.Client) CodeStore {
	return &redisCodeStore{rdb: rdb}
}

func (s *redisCodeStore) PutIfAbsent(ctx context.Context, phone, code string, ttl time.Duration) (bool, error) {
	stored, err := s.rdb.SetNX(ctx, codeKeyPrefix+phone, code, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("storing verification code: %w", err)
	}
	return stored, nil
}

func (s *redisCodeStore) Consume(ctx context.Context, phone, code string) (bool, error) {
	n, err := consumeScript.Run(ctx, s.rdb, []string{codeKeyPrefix + phone}, code).Int()
	if err != nil {
		return false, fmt.Errorf("consuming verification code: %w", err)
	}
	return n == 1, nil
}
