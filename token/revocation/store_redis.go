package revocation

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore is the shared blacklist for horizontally-scaled deployments.
// Per-jti entries carry the token's own expiry via EXPIREAT; the per-owner
// cutoff lives for one access-token lifetime past the bulk revocation, after
// which every token it could reject has expired on its own.
type RedisStore struct {
	client       redis.UniversalClient
	accessExpiry time.Duration
}

func NewRedisStore(client redis.UniversalClient, accessExpiry time.Duration) *RedisStore {
	return &RedisStore{client: client, accessExpiry: accessExpiry}
}

// cutoffScript only moves the owner cutoff forward; a concurrent bulk
// revocation must never shorten another's reach.
var cutoffScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or tonumber(ARGV[1]) > tonumber(cur) then
	redis.call('SET', KEYS[1], ARGV[1], 'EX', tonumber(ARGV[2]))
end
return 1
`)

func blacklistKey(jti string) string  { return "bl:" + jti }
func cutoffKey(ownerID string) string { return "bl:owner:" + ownerID }

func (s *RedisStore) Blacklist(ctx context.Context, jti, _ string, reason Reason, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Token already past its own expiry; nothing to block.
		return nil
	}
	err := s.client.Set(ctx, blacklistKey(jti), string(reason), ttl).Err()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis blacklist: %v", err)
	}
	return nil
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, jti, ownerID string, issuedAt time.Time) (bool, error) {
	pipe := s.client.Pipeline()
	existsCmd := pipe.Exists(ctx, blacklistKey(jti))
	cutoffCmd := pipe.Get(ctx, cutoffKey(ownerID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, apperrors.Wrapf(apperrors.ErrPersistence, "redis blacklist check: %v", err)
	}

	if existsCmd.Val() > 0 {
		return true, nil
	}
	cutoffStr, err := cutoffCmd.Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrapf(apperrors.ErrPersistence, "redis cutoff read: %v", err)
	}
	cutoff, err := strconv.ParseInt(cutoffStr, 10, 64)
	if err != nil {
		return false, apperrors.Wrapf(apperrors.ErrPersistence, "corrupt cutoff for owner %s: %v", ownerID, err)
	}
	return !issuedAt.After(time.Unix(cutoff, 0)), nil
}

func (s *RedisStore) BlacklistAllForOwner(ctx context.Context, ownerID string, at time.Time) error {
	ttl := int64(s.accessExpiry / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	err := cutoffScript.Run(ctx, s.client, []string{cutoffKey(ownerID)}, at.Unix(), ttl).Err()
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis owner cutoff: %v", err)
	}
	return nil
}
