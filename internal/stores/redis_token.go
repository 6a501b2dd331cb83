package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore persists reset tokens as versioned binary records with a
// sorted-set expiry index used by SweepExpired.
type RedisTokenStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	answers   AnswerMatcher
	now       func() time.Time
}

// NewRedisTokenStore creates a Redis-backed token store. Records keep a key
// TTL of ttl+retention so an unswept record still ages out.
func NewRedisTokenStore(redisClient redis.UniversalClient, prefix string, retention time.Duration, answers AnswerMatcher) *RedisTokenStore {
	if prefix == "" {
		prefix = "rst"
	}
	return &RedisTokenStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
		answers:   answers,
		now:       time.Now,
	}
}

// WithClock replaces the store clock. Intended for tests.
func (s *RedisTokenStore) WithClock(now func() time.Time) *RedisTokenStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *RedisTokenStore) key(tenantID, tokenID string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + tokenID
}

func (s *RedisTokenStore) indexKey() string {
	return s.prefix + ":exp"
}

func (s *RedisTokenStore) Create(
	ctx context.Context,
	tenantID, accountRef string,
	challengeID int,
	ttl time.Duration,
	maxAttempts int,
) (TokenRecord, error) {
	rec, err := newTokenRecord(tenantID, accountRef, challengeID, s.now(), ttl, maxAttempts)
	if err != nil {
		return TokenRecord{}, err
	}

	encoded, err := encodeTokenRecord(&rec)
	if err != nil {
		return TokenRecord{}, err
	}

	key := s.key(tenantID, rec.TokenID)
	var setNX *redis.BoolCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, key, encoded, ttl+s.retention)
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{
			Score:  float64(rec.ExpiresAt.UnixMilli()),
			Member: key,
		})
		return nil
	})
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !setNX.Val() {
		return TokenRecord{}, ErrTokenConflict
	}

	return rec, nil
}

// ConsumeIfValid applies one attempt under WATCH. A conflicting write by a
// concurrent attempt restarts the transaction until ctx is done, so every
// attempt ends with its own verdict and is counted against the cap.
func (s *RedisTokenStore) ConsumeIfValid(ctx context.Context, tenantID, tokenID, answer string) (TokenRecord, error) {
	key := s.key(tenantID, tokenID)

	for {
		var result TokenRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrTokenNotFound
				}
				return err
			}

			rec, err := decodeTokenRecord(data)
			if err != nil {
				return err
			}
			rec.TokenID = tokenID
			rec.TenantID = normalizeTenantID(tenantID)

			changed, verdict := applyAttempt(rec, s.now(), answer, s.answers)
			result = *rec
			if !changed {
				return verdict
			}

			updated, err := encodeTokenRecord(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}
			return verdict
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return TokenRecord{}, fmt.Errorf("%w: consume contention: %v", ErrStoreUnavailable, ctxErr)
			}
			continue
		}
		if err != nil {
			if isVerdict(err) {
				return result, err
			}
			return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		return result, nil
	}
}

func (s *RedisTokenStore) Get(ctx context.Context, tenantID, tokenID string) (TokenRecord, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID, tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TokenRecord{}, ErrTokenNotFound
		}
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	rec, err := decodeTokenRecord(data)
	if err != nil {
		return TokenRecord{}, err
	}
	rec.TokenID = tokenID
	rec.TenantID = normalizeTenantID(tenantID)
	return *rec, nil
}

// SweepExpired removes up to limit records that expired before the cutoff.
func (s *RedisTokenStore) SweepExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}

	members, err := s.redis.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	removed := make([]interface{}, len(members))
	for i, m := range members {
		removed[i] = m
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, members...)
		pipe.ZRem(ctx, s.indexKey(), removed...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return len(members), nil
}
