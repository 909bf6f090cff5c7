package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

const subBufferSize = 64

// MemoryBackend is an embedded implementation of the shared state store.
// All clients of one backend observe the same tree. It backs tests and the
// single-process coordinator binary.
type MemoryBackend struct {
	mu      sync.Mutex
	root    any
	version uint64
	subs    map[uint64]*memSub
	nextSub uint64
}

type memSub struct {
	path string
	ch   chan json.RawMessage
	once sync.Once
}

func (s *memSub) stop() {
	s.once.Do(func() { close(s.ch) })
}

// NewMemoryBackend creates an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{subs: make(map[uint64]*memSub)}
}

// Connect returns a client handle. Each client has its own disconnect
// hooks and subscriptions; closing it simulates that client's connection
// dropping.
func (b *MemoryBackend) Connect(clientID string) *MemoryClient {
	return &MemoryClient{
		backend: b,
		id:      clientID,
		hooks:   make(map[string]*memHook),
	}
}

// applyLocked writes a multi-path patch and fans out snapshots to every
// subscription whose subtree the patch touches. Callers hold b.mu.
func (b *MemoryBackend) applyLocked(writes map[string]any) {
	for path, value := range writes {
		b.root = setAt(b.root, path, value)
	}
	b.version++
	for _, sub := range b.subs {
		affected := false
		for path := range writes {
			if touches(path, sub.path) {
				affected = true
				break
			}
		}
		if !affected {
			continue
		}
		snap, err := snapshotJSON(b.root, sub.path)
		if err != nil {
			log.Error().Err(err).Str("path", sub.path).Msg("failed to snapshot subtree for subscriber")
			continue
		}
		select {
		case sub.ch <- snap:
		default:
			log.Warn().Str("path", sub.path).Msg("subscriber buffer full, dropping snapshot")
		}
	}
}

// subscribe registers fn and queues the current snapshot as its first
// delivery, so subscribers never wait for a write to learn the state.
func (b *MemoryBackend) subscribe(path string, fn func(json.RawMessage)) Unsubscribe {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	sub := &memSub{path: path, ch: make(chan json.RawMessage, subBufferSize)}
	b.subs[id] = sub
	if snap, err := snapshotJSON(b.root, path); err == nil {
		sub.ch <- snap
	} else {
		log.Error().Err(err).Str("path", path).Msg("failed to snapshot subtree for subscriber")
	}
	b.mu.Unlock()

	go func() {
		for snap := range sub.ch {
			fn(snap)
		}
	}()

	return func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			sub.stop()
		}
		b.mu.Unlock()
	}
}

// MemoryClient is one client's connection to a MemoryBackend.
type MemoryClient struct {
	backend *MemoryBackend

	mu     sync.Mutex
	id     string
	hooks  map[string]*memHook
	unsubs []Unsubscribe
	closed bool
}

var _ Store = (*MemoryClient)(nil)

type memHook struct {
	client *MemoryClient
	path   string
	value  any
	armed  bool
}

func (c *MemoryClient) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Get implements Store.
func (c *MemoryClient) Get(ctx context.Context, path string) (json.RawMessage, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshotJSON(b.root, path)
}

// Set implements Store.
func (c *MemoryClient) Set(ctx context.Context, path string, value any) error {
	return c.Update(ctx, map[string]any{path: value})
}

// Update implements Store.
func (c *MemoryClient) Update(ctx context.Context, values map[string]any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	writes := make(map[string]any, len(values))
	for path, value := range values {
		norm, err := normalize(value)
		if err != nil {
			return err
		}
		writes[path] = norm
	}
	b := c.backend
	b.mu.Lock()
	b.applyLocked(writes)
	b.mu.Unlock()
	return nil
}

// Transaction implements Store. The callback runs outside the store lock;
// the commit is dropped and the callback re-run whenever another write
// lands in between.
func (c *MemoryClient) Transaction(ctx context.Context, path string, fn TxFunc) error {
	b := c.backend
	for {
		if err := c.checkOpen(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		b.mu.Lock()
		cur, err := snapshotJSON(b.root, path)
		version := b.version
		b.mu.Unlock()
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil {
			if errors.Is(err, ErrAborted) {
				return ErrAborted
			}
			return err
		}
		norm, err := normalize(next)
		if err != nil {
			return err
		}

		b.mu.Lock()
		if b.version != version {
			b.mu.Unlock()
			continue
		}
		b.applyLocked(map[string]any{path: norm})
		b.mu.Unlock()
		return nil
	}
}

// Subscribe implements Store.
func (c *MemoryClient) Subscribe(path string, fn func(json.RawMessage)) (Unsubscribe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	unsub := c.backend.subscribe(path, fn)
	c.unsubs = append(c.unsubs, unsub)
	return unsub, nil
}

// OnDisconnect implements Store.
func (c *MemoryClient) OnDisconnect(path string) DisconnectHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.hooks[path]; ok {
		return h
	}
	h := &memHook{client: c, path: path}
	c.hooks[path] = h
	return h
}

// Set implements DisconnectHook.
func (h *memHook) Set(value any) error {
	norm, err := normalize(value)
	if err != nil {
		return err
	}
	c := h.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	h.value = norm
	h.armed = true
	return nil
}

// Cancel implements DisconnectHook.
func (h *memHook) Cancel() error {
	c := h.client
	c.mu.Lock()
	defer c.mu.Unlock()
	h.armed = false
	h.value = nil
	return nil
}

// Close implements Store: subscriptions stop and armed disconnect hooks
// fire in a single patch, mirroring a dropped connection.
func (c *MemoryClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsubs := c.unsubs
	c.unsubs = nil
	writes := make(map[string]any)
	for _, h := range c.hooks {
		if h.armed {
			writes[h.path] = h.value
			h.armed = false
		}
	}
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if len(writes) > 0 {
		b := c.backend
		b.mu.Lock()
		b.applyLocked(writes)
		b.mu.Unlock()
		log.Debug().Str("client_id", c.id).Int("hook_writes", len(writes)).Msg("disconnect hooks fired")
	}
	return nil
}
