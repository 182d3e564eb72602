package seenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"igrelay/pkg/logger"
)

// redisAPI is the subset of *redis.Client the store uses
type redisAPI interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisOptions configures the redis backend
type RedisOptions struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps one key per story plus a sorted index by record time.
// Keys never expire.
type RedisStore struct {
	client redisAPI
	prefix string
	now    func() time.Time
	logger logger.Logger
}

// NewRedisStore connects to redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return newRedisStore(client, opts.KeyPrefix), nil
}

func newRedisStore(client redisAPI, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
		logger: logger.GetLogger().WithField("component", "seenstore"),
	}
}

func (r *RedisStore) storyKey(storyID string) string {
	return r.prefix + "story:" + storyID
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "stories"
}

func (r *RedisStore) Has(ctx context.Context, storyID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.storyKey(storyID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query story %s: %w", storyID, err)
	}
	return n > 0, nil
}

func (r *RedisStore) Record(ctx context.Context, storyID, userID string) error {
	now := r.now().UTC()
	value, err := json.Marshal(SeenStory{StoryID: storyID, UserID: userID, Timestamp: now})
	if err != nil {
		return fmt.Errorf("failed to marshal story %s: %w", storyID, err)
	}

	created, err := r.client.SetNX(ctx, r.storyKey(storyID), value, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to record story %s: %w", storyID, err)
	}
	if !created {
		return nil
	}

	// the story key alone makes it seen; a missing index entry only hides it from List
	if err := r.client.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: storyID}).Err(); err != nil {
		r.logger.WithError(err).WithField("story_id", storyID).Warn("Recorded story but could not index it")
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context, limit int) ([]SeenStory, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.storyKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load stories: %w", err)
	}

	stories := make([]SeenStory, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stories = append(stories, SeenStory{StoryID: ids[i]})
			continue
		}
		var story SeenStory
		if err := json.Unmarshal([]byte(raw), &story); err != nil {
			return nil, fmt.Errorf("failed to decode story %s: %w", ids[i], err)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

func (r *RedisStore) Close() error {
	err := r.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}
