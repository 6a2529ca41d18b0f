package rotation

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore shares rotation state across service instances. Each record is a
// hash keyed by jti with family/owner index sets alongside; everything carries
// the record's own expiry so Redis handles TTL pruning natively.
//
// Swap runs as a single Lua script, which is what gives it the per-id
// compare-and-swap the rotation protocol requires: Redis executes scripts
// serially, so a concurrent rotation of the same token observes the revoke.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

const (
	swapResultOK      = "ok"
	swapResultMissing = "missing"
	swapResultReused  = "reused"
	swapResultDup     = "dup"
)

var swapScript = redis.NewScript(`
local revoked = redis.call('HGET', KEYS[1], 'revoked')
if revoked == false then return 'missing' end
if revoked == '1' then return 'reused' end
if redis.call('EXISTS', KEYS[2]) == 1 then return 'dup' end
redis.call('HSET', KEYS[2], 'owner', ARGV[1], 'family', ARGV[2], 'revoked', '0', 'iat', ARGV[3], 'exp', ARGV[4])
redis.call('EXPIREAT', KEYS[2], tonumber(ARGV[4]))
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('EXPIREAT', KEYS[3], tonumber(ARGV[4]))
redis.call('SADD', KEYS[4], ARGV[5])
redis.call('EXPIREAT', KEYS[4], tonumber(ARGV[4]))
redis.call('HSET', KEYS[1], 'revoked', '1')
return 'ok'
`)

var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 'dup' end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'family', ARGV[2], 'revoked', '0', 'iat', ARGV[3], 'exp', ARGV[4])
redis.call('EXPIREAT', KEYS[1], tonumber(ARGV[4]))
redis.call('SADD', KEYS[2], ARGV[5])
redis.call('EXPIREAT', KEYS[2], tonumber(ARGV[4]))
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('EXPIREAT', KEYS[3], tonumber(ARGV[4]))
return 'ok'
`)

func recordKey(id string) string     { return "rt:" + id }
func familyKey(family string) string { return "rt:family:" + family }
func ownerKey(owner string) string   { return "rt:owner:" + owner }

func (s *RedisStore) Insert(ctx context.Context, rec *Record) error {
	res, err := insertScript.Run(ctx, s.client,
		[]string{recordKey(rec.ID), familyKey(rec.Family), ownerKey(rec.OwnerID)},
		rec.OwnerID, rec.Family, rec.IssuedAt.Unix(), rec.ExpiresAt.Unix(), rec.ID,
	).Text()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis insert: %v", err)
	}
	if res == swapResultDup {
		return apperrors.Wrapf(apperrors.ErrPersistence, "refresh token id %q already exists", rec.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistence, "redis get: %v", err)
	}
	if len(fields) == 0 {
		return nil, apperrors.ErrTokenNotFound
	}
	return recordFromFields(id, fields), nil
}

func recordFromFields(id string, fields map[string]string) *Record {
	iat, _ := strconv.ParseInt(fields["iat"], 10, 64)
	exp, _ := strconv.ParseInt(fields["exp"], 10, 64)
	return &Record{
		ID:        id,
		OwnerID:   fields["owner"],
		Family:    fields["family"],
		Revoked:   fields["revoked"] == "1",
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
	}
}

func (s *RedisStore) Revoke(ctx context.Context, id string) error {
	// HSET on a missing key would resurrect it as a stray hash, so guard
	// with EXISTS. Revoke is idempotent either way.
	exists, err := s.client.Exists(ctx, recordKey(id)).Result()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis revoke: %v", err)
	}
	if exists == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, recordKey(id), "revoked", "1").Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis revoke: %v", err)
	}
	return nil
}

func (s *RedisStore) RevokeFamily(ctx context.Context, family string) error {
	return s.revokeSet(ctx, familyKey(family))
}

func (s *RedisStore) RevokeAllForOwner(ctx context.Context, ownerID string) error {
	return s.revokeSet(ctx, ownerKey(ownerID))
}

// revokeSetScript marks every live record in an index set revoked. Index
// sets outlive records that reached their EXPIREAT, and an HSET on such an
// id would resurrect it as a hash without a TTL, so dead ids are dropped
// from the set instead of written to.
var revokeSetScript = redis.NewScript(`
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
	local key = 'rt:' .. id
	if redis.call('EXISTS', key) == 1 then
		redis.call('HSET', key, 'revoked', '1')
	else
		redis.call('SREM', KEYS[1], id)
	end
end
return 'ok'
`)

func (s *RedisStore) revokeSet(ctx context.Context, setKey string) error {
	if err := revokeSetScript.Run(ctx, s.client, []string{setKey}).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis revoke set: %v", err)
	}
	return nil
}

func (s *RedisStore) Swap(ctx context.Context, presentedID string, successor *Record) error {
	res, err := swapScript.Run(ctx, s.client,
		[]string{recordKey(presentedID), recordKey(successor.ID), familyKey(successor.Family), ownerKey(successor.OwnerID)},
		successor.OwnerID, successor.Family, successor.IssuedAt.Unix(), successor.ExpiresAt.Unix(), successor.ID,
	).Text()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis swap: %v", err)
	}
	switch res {
	case swapResultOK:
		return nil
	case swapResultMissing:
		return apperrors.ErrTokenNotFound
	case swapResultReused:
		return apperrors.ErrTokenReused
	case swapResultDup:
		return apperrors.Wrapf(apperrors.ErrPersistence, "successor id %q already exists", successor.ID)
	default:
		return apperrors.Wrapf(apperrors.ErrPersistence, "unexpected swap result %q", res)
	}
}
