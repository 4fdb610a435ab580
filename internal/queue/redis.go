package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the keys of a RedisStore.
const DefaultRedisPrefix = "flexible"

// RedisStore is a Store kept in Redis under a key prefix:
//
//	<prefix>:seen     set of every URL ever added
//	<prefix>:pending  list of pending items (JSON), oldest first
//	<prefix>:active   hash of active items by ID
//	<prefix>:seq      item ID counter
//	<prefix>:ended    number of ended items
//	<prefix>:failed   list of dead letters for items that ended with an error
//
// Design decision: Add and Get run as Lua scripts because each touches more
// than one key. A partial write would leave a URL marked seen but never
// queued, or an item popped but not active, and either one loses the URL.
type RedisStore struct {
	// client is shared with the caller and not closed by the store.
	client *redis.Client

	seenKey    string
	pendingKey string
	activeKey  string
	seqKey     string
	endedKey   string
	failedKey  string
}

// DeadLetter is the record pushed to the failed list.
type DeadLetter struct {
	Item  Item   `json:"item"`
	Error string `json:"error"`
	Time  string `json:"time"`
}

// NewRedisStore creates a RedisStore using client. An empty prefix means
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:     client,
		seenKey:    prefix + ":seen",
		pendingKey: prefix + ":pending",
		activeKey:  prefix + ":active",
		seqKey:     prefix + ":seq",
		endedKey:   prefix + ":ended",
		failedKey:  prefix + ":failed",
	}
}

// Reset deletes every key of the store.
func (s *RedisStore) Reset(ctx context.Context) error {
	err := s.client.Del(ctx,
		s.seenKey, s.pendingKey, s.activeKey, s.seqKey, s.endedKey, s.failedKey,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to reset redis queue: %w", err)
	}
	return nil
}

// Requeue moves items left active by an interrupted run back to the front
// of the pending list. It returns the number of items moved.
func (s *RedisStore) Requeue(ctx context.Context) (int, error) {
	active, err := s.client.HGetAll(ctx, s.activeKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read active items: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	values := make([]any, 0, len(active))
	for _, raw := range active {
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return 0, fmt.Errorf("failed to decode active item: %w", err)
		}
		item.Status = StatusPending
		data, err := json.Marshal(item)
		if err != nil {
			return 0, err
		}
		values = append(values, data)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.pendingKey, values...)
		pipe.Del(ctx, s.activeKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to re-queue active items: %w", err)
	}
	return len(values), nil
}

// addScript queues ARGV[1] unless it is in the seen set. The URL is marked
// seen only after the push succeeds, so a failed Add can be retried.
//
// KEYS: seen, seq, pending. ARGV: url.
var addScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
  return 0
end
local id = redis.call('INCR', KEYS[2])
local data = cjson.encode({id = tostring(id), url = ARGV[1], status = 'pending'})
local pushed = redis.pcall('RPUSH', KEYS[3], data)
if type(pushed) ~= 'number' then
  if type(pushed) == 'table' and pushed.err then
    return pushed
  end
  return redis.error_reply('ERR failed to push to ' .. KEYS[3])
end
redis.call('SADD', KEYS[1], ARGV[1])
return 1
`)

// getScript moves the head of the pending list into the active hash. An
// item that cannot be recorded active is put back at the head.
//
// KEYS: pending, active.
var getScript = redis.NewScript(`
local raw = redis.call('LPOP', KEYS[1])
if not raw then
  return false
end
local ok, item = pcall(cjson.decode, raw)
if not ok or type(item) ~= 'table' or item.id == nil then
  redis.call('LPUSH', KEYS[1], raw)
  return redis.error_reply('ERR undecodable item in ' .. KEYS[1])
end
item.status = 'active'
local data = cjson.encode(item)
local set = redis.pcall('HSET', KEYS[2], item.id, data)
if type(set) ~= 'number' then
  redis.call('LPUSH', KEYS[1], raw)
  if type(set) == 'table' and set.err then
    return set
  end
  return redis.error_reply('ERR failed to record item in ' .. KEYS[2])
end
return data
`)

// Add pushes rawURL to the pending list unless it was added before.
// Checking, numbering and pushing run as one script.
func (s *RedisStore) Add(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return ErrEmptyURL
	}

	keys := []string{s.seenKey, s.seqKey, s.pendingKey}
	if err := addScript.Run(ctx, s.client, keys, rawURL).Err(); err != nil {
		return fmt.Errorf("failed to add %s: %w", rawURL, err)
	}
	return nil
}

// Get pops the head of the pending list and records it in the active hash
// in one script, so an item is always in exactly one of the two.
func (s *RedisStore) Get(ctx context.Context) (*Item, error) {
	raw, err := getScript.Run(ctx, s.client, []string{s.pendingKey, s.activeKey}).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next item: %w", err)
	}

	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	item.Status = StatusActive
	return &item, nil
}

// End removes item from the active hash, counts it and, when cause is not
// nil, pushes a dead letter.
func (s *RedisStore) End(ctx context.Context, item *Item, cause error) (*Item, error) {
	if item == nil {
		return nil, ErrNilItem
	}

	removed, err := s.client.HDel(ctx, s.activeKey, item.ID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to end item %s: %w", item.ID, err)
	}
	if removed == 0 {
		return nil, ErrUnknownItem
	}

	ended := &Item{
		ID:     item.ID,
		URL:    item.URL,
		Status: StatusEnded,
		Error:  errorText(cause),
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, s.endedKey)
		if cause != nil {
			dl, err := json.Marshal(DeadLetter{
				Item:  *ended,
				Error: ended.Error,
				Time:  time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			pipe.RPush(ctx, s.failedKey, dl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record end of item %s: %w", item.ID, err)
	}
	return ended, nil
}

// Stats reads the list and hash lengths and the ended counter.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	pipe := s.client.Pipeline()
	pending := pipe.LLen(ctx, s.pendingKey)
	active := pipe.HLen(ctx, s.activeKey)
	ended := pipe.Get(ctx, s.endedKey)
	failed := pipe.LLen(ctx, s.failedKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("failed to count items: %w", err)
	}

	endedCount, err := ended.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("failed to read ended count: %w", err)
	}
	return Stats{
		Pending: int(pending.Val()),
		Active:  int(active.Val()),
		Ended:   endedCount,
		Failed:  int(failed.Val()),
	}, nil
}

// Failures returns the items of the dead-letter list, oldest first.
func (s *RedisStore) Failures(ctx context.Context) ([]Item, error) {
	raws, err := s.client.LRange(ctx, s.failedKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		items = append(items, dl.Item)
	}
	return items, nil
}
