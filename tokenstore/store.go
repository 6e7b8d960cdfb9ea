package tokenstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists refresh token records in Redis, keyed by the SHA-256 of
// the token value. Each owner additionally has a set of their token hashes
// so cascade revocation is a single set read plus a batched delete.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a [Store] using the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

// compareAndRevokeScript flips the revoked flag iff the record is live.
// The revoked byte sits at offset 2 (1-based) and expiry at offsets 3-10,
// so the script never needs to decode the full blob.
//
// Returns one of: 0 not found, 1 revoked, 2 expired, 3 already revoked,
// 4 unrecognized blob version.
var compareAndRevokeScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {0}
end
if string.byte(data, 1) ~= 1 then
  return {4}
end

local exp = 0
for i = 3, 10 do
  exp = exp * 256 + string.byte(data, i)
end
if exp <= tonumber(ARGV[1]) then
  return {2}
end

if string.byte(data, 2) == 1 then
  return {3}
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
  return {2}
end

local updated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3)
redis.call('SET', KEYS[1], updated, 'PX', ttl)
return {1}
`)

// Save persists the record with a TTL matching its expiry and registers it
// in the owner's token set.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" || rec.OwnerID == "" {
		return ErrRecordCorrupt
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return ErrTokenExpired
	}

	blob := encodeRecord(rec)
	key := s.tokenKey(rec.ValueHash)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, blob, ttl)
		pipe.SAdd(ctx, s.ownerKey(rec.OwnerID), hex.EncodeToString(rec.ValueHash[:]))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// FindByValue returns the record stored under the given token hash.
// Revoked records are returned as-is; callers decide whether a revoked
// hit means an error or a reuse incident.
func (s *Store) FindByValue(ctx context.Context, hash [32]byte) (*Record, error) {
	data, err := s.redis.Get(ctx, s.tokenKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	rec.ValueHash = hash

	return rec, nil
}

// CompareAndRevoke atomically marks the record revoked. Exactly one caller
// per record ever gets nil; concurrent callers racing on the same token
// observe [ErrAlreadyRevoked].
func (s *Store) CompareAndRevoke(ctx context.Context, hash [32]byte) error {
	res, err := compareAndRevokeScript.Run(ctx, s.redis,
		[]string{s.tokenKey(hash)},
		time.Now().Unix(),
	).Int64Slice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 1 {
		return fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	switch res[0] {
	case 0:
		return ErrTokenNotFound
	case 1:
		return nil
	case 2:
		return ErrTokenExpired
	case 3:
		return ErrAlreadyRevoked
	default:
		return ErrRecordCorrupt
	}
}

// DeleteAllByOwner removes every token record belonging to ownerID along
// with the owner's set, returning how many records were deleted.
func (s *Store) DeleteAllByOwner(ctx context.Context, ownerID string) (int, error) {
	ownerKey := s.ownerKey(ownerID)

	members, err := s.redis.SMembers(ctx, ownerKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if len(members) == 0 {
		if err := s.redis.Del(ctx, ownerKey).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return 0, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, s.prefix+":t:"+m)
	}

	var delCmd *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, keys...)
		pipe.Del(ctx, ownerKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(delCmd.Val()), nil
}

// DeleteExpiredBefore removes token records that expired before cutoff and
// prunes owner-set entries whose record already vanished via Redis TTL.
// Returns the number of entries removed.
func (s *Store) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0

	iter := s.redis.Scan(ctx, 0, s.prefix+":o:*", 100).Iterator()
	for iter.Next(ctx) {
		ownerKey := iter.Val()

		members, err := s.redis.SMembers(ctx, ownerKey).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		remaining := len(members)
		for _, m := range members {
			key := s.prefix + ":t:" + m

			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}
				// Record already expired out of Redis; prune the dangling entry.
				if err := s.redis.SRem(ctx, ownerKey, m).Err(); err != nil {
					return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}
				removed++
				remaining--
				continue
			}

			rec, err := decodeRecord(data)
			if err != nil {
				continue
			}
			if rec.ExpiresAt.Before(cutoff) {
				_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					pipe.SRem(ctx, ownerKey, m)
					return nil
				})
				if err != nil {
					return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}
				removed++
				remaining--
			}
		}

		if remaining == 0 {
			if err := s.redis.Del(ctx, ownerKey).Err(); err != nil {
				return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return removed, nil
}

func (s *Store) tokenKey(hash [32]byte) string {
	return s.prefix + ":t:" + hex.EncodeToString(hash[:])
}

func (s *Store) ownerKey(ownerID string) string {
	return s.prefix + ":o:" + ownerID
}
