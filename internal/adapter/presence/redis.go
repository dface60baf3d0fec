package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/im-notification-service/internal/domain/model"
)

const (
	scanCount = 500
	mgetChunk = 500
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisClient defines the interface we need from go-redis.
type redisClient interface {
	redis.Scripter
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

var _ Directory = (*RedisDirectory)(nil)

// RedisDirectory stores one string key per user: "<prefix><userID>" -> handle.
type RedisDirectory struct {
	client redisClient
	prefix string
	logger *slog.Logger
}

func NewRedisDirectory(client redisClient, prefix string, logger *slog.Logger) (*RedisDirectory, error) {
	if client == nil {
		return nil, fmt.Errorf("presence: redis client cannot be nil")
	}
	return &RedisDirectory{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis_presence"),
	}, nil
}

func (d *RedisDirectory) key(userID string) string { return d.prefix + userID }

func (d *RedisDirectory) Put(ctx context.Context, userID string, handle model.Handle) error {
	if err := d.client.Set(ctx, d.key(userID), handle.String(), 0).Err(); err != nil {
		return fmt.Errorf("presence: set %s: %w: %w", d.key(userID), model.ErrDirectoryUnavailable, err)
	}
	return nil
}

func (d *RedisDirectory) Get(ctx context.Context, userID string) (model.Handle, bool, error) {
	val, err := d.client.Get(ctx, d.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("presence: get %s: %w: %w", d.key(userID), model.ErrDirectoryUnavailable, err)
	}
	return model.Handle(val), true, nil
}

func (d *RedisDirectory) DeleteIfMatches(ctx context.Context, userID string, handle model.Handle) (bool, error) {
	n, err := compareAndDelete.Run(ctx, d.client, []string{d.key(userID)}, handle.String()).Int64()
	if err != nil {
		return false, fmt.Errorf("presence: compare-and-delete %s: %w: %w", d.key(userID), model.ErrDirectoryUnavailable, err)
	}
	return n == 1, nil
}

// ListAll walks the key space with SCAN and resolves values in MGET chunks.
// Keys removed between the two steps are skipped.
func (d *RedisDirectory) ListAll(ctx context.Context) ([]model.PresenceEntry, error) {
	keys, err := d.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]model.PresenceEntry, 0, len(keys))
	for start := 0; start < len(keys); start += mgetChunk {
		chunk := keys[start:min(start+mgetChunk, len(keys))]

		vals, err := d.client.MGet(ctx, chunk...).Result()
		if err != nil {
			return nil, fmt.Errorf("presence: mget: %w: %w", model.ErrDirectoryUnavailable, err)
		}

		for i, v := range vals {
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			entries = append(entries, model.PresenceEntry{
				UserID: strings.TrimPrefix(chunk[i], d.prefix),
				Handle: model.Handle(s),
			})
		}
	}

	sortEntries(entries)
	return entries, nil
}

func (d *RedisDirectory) scanKeys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
		seen   = make(map[string]struct{})
	)

	for {
		batch, next, err := d.client.Scan(ctx, cursor, d.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("presence: scan: %w: %w", model.ErrDirectoryUnavailable, err)
		}
		// SCAN may return a key more than once.
		for _, k := range batch {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	d.logger.Debug("PRESENCE_SCAN_COMPLETED", "keys", len(keys))
	return keys, nil
}
