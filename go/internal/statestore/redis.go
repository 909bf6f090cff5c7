package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// redisTxAttempts bounds optimistic retries against WATCH conflicts.
	redisTxAttempts = 32

	// livenessTTL is how long a client counts as alive without a
	// heartbeat. Reapers fire a dead client's disconnect hooks.
	livenessTTL = 15 * time.Second

	// heartbeatInterval refreshes the liveness key well inside the TTL.
	heartbeatInterval = 5 * time.Second
)

// RedisConfig configures a RedisClient.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key this client touches.
	Prefix string
	// ClientID names this client's liveness and hook records. Must be
	// unique per connection; the session's player id works well.
	ClientID string
}

// RedisClient implements Store on a Redis server: one Redis string per
// top-level document, WATCH/MULTI for optimistic transactions, pub/sub
// for subscriptions, and TTL-guarded hook records for disconnect writes.
// Documents are small (a room tops out at a dozen players), so sub-path
// operations rewrite the whole document.
type RedisClient struct {
	rdb    *redis.Client
	prefix string
	id     string

	mu     sync.Mutex
	hooks  map[string]*redisHook
	unsubs []Unsubscribe
	closed bool

	heartbeatCancel context.CancelFunc
	heartbeatDone   chan struct{}
}

var _ Store = (*RedisClient)(nil)

// NewRedisClient connects, verifies the server, and starts the liveness
// heartbeat.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		if isAuthErr(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
		}
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}

	c := &RedisClient{
		rdb:    rdb,
		prefix: cfg.Prefix,
		id:     cfg.ClientID,
		hooks:  make(map[string]*redisHook),
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	c.heartbeatCancel = cancel
	c.heartbeatDone = make(chan struct{})
	go c.heartbeat(hbCtx)

	return c, nil
}

func isAuthErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "WRONGPASS")
}

// docKey splits a store path into the Redis key of its document and the
// remaining inner path. The first two segments identify the document;
// a one-segment path addresses the whole collection.
func (c *RedisClient) docKey(path string) (key, inner string, err error) {
	parts := splitPath(path)
	switch {
	case len(parts) == 0:
		return "", "", fmt.Errorf("empty path")
	case len(parts) == 1:
		return "", "", fmt.Errorf("path %q addresses a collection", path)
	default:
		key = c.prefix + "doc:" + parts[0] + ":" + parts[1]
		inner = strings.Join(parts[2:], "/")
		return key, inner, nil
	}
}

func (c *RedisClient) channelFor(key string) string {
	return c.prefix + "chan:" + key
}

func (c *RedisClient) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Get implements Store. A one-segment path scans the collection and
// assembles a document map, which the stale-room sweeper relies on.
func (c *RedisClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	parts := splitPath(path)
	if len(parts) == 1 {
		return c.getCollection(ctx, parts[0])
	}

	key, inner, err := c.docKey(path)
	if err != nil {
		return nil, err
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, path, err)
	}
	return innerSnapshot(raw, inner)
}

func (c *RedisClient) getCollection(ctx context.Context, collection string) (json.RawMessage, error) {
	pattern := c.prefix + "doc:" + collection + ":*"
	docs := make(map[string]json.RawMessage)

	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
		}
		id := key[strings.LastIndex(key, ":")+1:]
		docs[id] = raw
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrUnavailable, pattern, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return json.Marshal(docs)
}

// innerSnapshot resolves a sub-path inside a document's JSON.
func innerSnapshot(raw []byte, inner string) (json.RawMessage, error) {
	if inner == "" {
		return json.RawMessage(raw), nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return snapshotJSON(doc, inner)
}

// Set implements Store.
func (c *RedisClient) Set(ctx context.Context, path string, value any) error {
	return c.Update(ctx, map[string]any{path: value})
}

// Update implements Store. Paths are grouped by document; each document
// is rewritten under WATCH so the patch is atomic per document, and in
// one MULTI across documents.
func (c *RedisClient) Update(ctx context.Context, values map[string]any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	byDoc := make(map[string]map[string]any)
	for path, value := range values {
		key, inner, err := c.docKey(path)
		if err != nil {
			return err
		}
		norm, err := normalize(value)
		if err != nil {
			return err
		}
		if byDoc[key] == nil {
			byDoc[key] = make(map[string]any)
		}
		byDoc[key][inner] = norm
	}

	keys := make([]string, 0, len(byDoc))
	for key := range byDoc {
		keys = append(keys, key)
	}

	txf := func(tx *redis.Tx) error {
		nextDocs := make(map[string][]byte, len(byDoc))
		for key, patch := range byDoc {
			doc, err := loadDoc(ctx, tx, key)
			if err != nil {
				return err
			}
			for inner, value := range patch {
				doc = setAt(doc, inner, value)
			}
			if doc == nil {
				nextDocs[key] = nil
				continue
			}
			enc, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			nextDocs[key] = enc
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for key, enc := range nextDocs {
				if enc == nil {
					pipe.Del(ctx, key)
					pipe.Publish(ctx, c.channelFor(key), "null")
				} else {
					pipe.Set(ctx, key, enc, 0)
					pipe.Publish(ctx, c.channelFor(key), enc)
				}
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		err := c.rdb.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: update: %v", ErrUnavailable, err)
		}
		return nil
	}
	return fmt.Errorf("%w: update: too many conflicts", ErrUnavailable)
}

func loadDoc(ctx context.Context, tx *redis.Tx, key string) (any, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", key, err)
	}
	return doc, nil
}

// Transaction implements Store via WATCH: fn runs against the watched
// document and the commit is retried when a concurrent write invalidates
// it.
func (c *RedisClient) Transaction(ctx context.Context, path string, fn TxFunc) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	key, inner, err := c.docKey(path)
	if err != nil {
		return err
	}

	var fnErr error
	txf := func(tx *redis.Tx) error {
		fnErr = nil
		doc, err := loadDoc(ctx, tx, key)
		if err != nil {
			return err
		}
		cur, err := snapshotJSON(doc, inner)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		norm, err := normalize(next)
		if err != nil {
			return err
		}

		doc = setAt(doc, inner, norm)
		var enc []byte
		if doc != nil {
			if enc, err = json.Marshal(doc); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if enc == nil {
				pipe.Del(ctx, key)
				pipe.Publish(ctx, c.channelFor(key), "null")
			} else {
				pipe.Set(ctx, key, enc, 0)
				pipe.Publish(ctx, c.channelFor(key), enc)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < redisTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if fnErr != nil {
			if errors.Is(fnErr, ErrAborted) {
				return ErrAborted
			}
			return fnErr
		}
		if err != nil {
			return fmt.Errorf("%w: transaction on %s: %v", ErrUnavailable, path, err)
		}
		return nil
	}
	return fmt.Errorf("%w: transaction on %s: too many conflicts", ErrUnavailable, path)
}

// Subscribe implements Store over Redis pub/sub on the document's
// channel. The current value is delivered first, read directly; inner
// paths are resolved from each published document.
func (c *RedisClient) Subscribe(path string, fn func(snapshot json.RawMessage)) (Unsubscribe, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	key, inner, err := c.docKey(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := c.rdb.Subscribe(ctx, c.channelFor(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrUnavailable, path, err)
	}

	go func() {
		// Initial snapshot, then published documents in commit order.
		if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			if snap, err := innerSnapshot(raw, inner); err == nil {
				fn(snap)
			}
		} else if errors.Is(err, redis.Nil) {
			fn(nil)
		}

		for msg := range pubsub.Channel() {
			if msg.Payload == "null" {
				fn(nil)
				continue
			}
			snap, err := innerSnapshot([]byte(msg.Payload), inner)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("failed to snapshot published document")
				continue
			}
			fn(snap)
		}
	}()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			cancel()
			pubsub.Close()
		})
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return unsub, nil
}

// redisHook persists the armed write in Redis so any reaper can apply it
// if this client's liveness key expires.
type redisHook struct {
	client *RedisClient
	path   string
}

// OnDisconnect implements Store.
func (c *RedisClient) OnDisconnect(path string) DisconnectHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.hooks[path]; ok {
		return h
	}
	h := &redisHook{client: c, path: path}
	c.hooks[path] = h
	return h
}

func (c *RedisClient) hooksKey() string {
	return c.prefix + "hooks:" + c.id
}

func (c *RedisClient) liveKey() string {
	return c.prefix + "live:" + c.id
}

// Set implements DisconnectHook.
func (h *redisHook) Set(value any) error {
	c := h.client
	if err := c.checkOpen(); err != nil {
		return err
	}
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	enc, err := json.Marshal(norm)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.rdb.HSet(ctx, c.hooksKey(), h.path, enc).Err(); err != nil {
		return fmt.Errorf("%w: arm hook %s: %v", ErrUnavailable, h.path, err)
	}
	return nil
}

// Cancel implements DisconnectHook.
func (h *redisHook) Cancel() error {
	c := h.client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.rdb.HDel(ctx, c.hooksKey(), h.path).Err(); err != nil {
		return fmt.Errorf("%w: disarm hook %s: %v", ErrUnavailable, h.path, err)
	}
	return nil
}

// heartbeat keeps the liveness key fresh so reapers leave our armed
// hooks alone.
func (c *RedisClient) heartbeat(ctx context.Context) {
	defer close(c.heartbeatDone)
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		if err := c.rdb.Set(ctx, c.liveKey(), "1", livenessTTL).Err(); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("client_id", c.id).Msg("liveness heartbeat failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReapExpiredHooks applies the armed disconnect writes of every client
// whose liveness key has lapsed. Any process may run it periodically;
// applying a dead client's hooks is idempotent.
func (c *RedisClient) ReapExpiredHooks(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	pattern := c.prefix + "hooks:*"
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		hooksKey := iter.Val()
		clientID := strings.TrimPrefix(hooksKey, c.prefix+"hooks:")
		alive, err := c.rdb.Exists(ctx, c.prefix+"live:"+clientID).Result()
		if err != nil {
			return fmt.Errorf("%w: check liveness: %v", ErrUnavailable, err)
		}
		if alive > 0 {
			continue
		}
		if err := c.applyHookRecord(ctx, hooksKey, clientID); err != nil {
			log.Warn().Err(err).Str("client_id", clientID).Msg("failed to apply expired disconnect hooks")
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan hooks: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RedisClient) applyHookRecord(ctx context.Context, hooksKey, clientID string) error {
	entries, err := c.rdb.HGetAll(ctx, hooksKey).Result()
	if err != nil {
		return err
	}
	writes := make(map[string]any, len(entries))
	for path, enc := range entries {
		var value any
		if err := json.Unmarshal([]byte(enc), &value); err != nil {
			log.Error().Err(err).Str("path", path).Msg("corrupt hook record, skipping")
			continue
		}
		writes[path] = value
	}
	if len(writes) > 0 {
		if err := c.Update(ctx, writes); err != nil {
			return err
		}
		log.Info().Str("client_id", clientID).Int("hook_writes", len(writes)).Msg("disconnect hooks fired for dead client")
	}
	return c.rdb.Del(ctx, hooksKey).Err()
}

// Close implements Store: subscriptions stop, armed hooks fire, and the
// liveness bookkeeping is removed.
func (c *RedisClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	// closed stays false until the hook flush below, which goes through
	// Update.
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	c.heartbeatCancel()
	<-c.heartbeatDone

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.applyHookRecord(ctx, c.hooksKey(), c.id); err != nil {
		log.Warn().Err(err).Str("client_id", c.id).Msg("failed to flush disconnect hooks on close")
	}
	c.rdb.Del(ctx, c.liveKey())

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.rdb.Close()
}
