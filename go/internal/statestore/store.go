// Package statestore defines the narrow interface this system needs from a
// key-addressable shared state store: get, unconditional set/update,
// optimistic read-modify-write transactions, live subscription to subtrees,
// and a write that runs when the client's connection drops.
package statestore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrAborted reports that a transaction callback declined to commit.
	// This is expected and benign: the caller's precondition failed, which
	// usually means its intent was already satisfied.
	ErrAborted = errors.New("statestore: transaction aborted")

	// ErrUnavailable reports a transient store failure. Callers surface it
	// as a non-blocking warning except at session-critical points.
	ErrUnavailable = errors.New("statestore: unavailable")

	// ErrAuthenticationFailed reports rejected credentials. Fatal to the
	// session; no further store operation can succeed.
	ErrAuthenticationFailed = errors.New("statestore: authentication failed")

	// ErrClosed reports an operation on a closed client.
	ErrClosed = errors.New("statestore: client closed")
)

// TxFunc computes the next value for a path from its current value.
// current is nil when the path is absent. Returning ErrAborted (directly or
// wrapped) leaves the path untouched. Returning a nil next deletes the path.
type TxFunc func(current json.RawMessage) (next any, err error)

// Unsubscribe tears down a subscription. Safe to call more than once.
type Unsubscribe func()

// DisconnectHook is a write the store performs on the client's behalf if
// its connection drops without an explicit leave.
type DisconnectHook interface {
	// Set arms the hook to write value at the hook's path on disconnect.
	Set(value any) error
	// Cancel disarms the hook.
	Cancel() error
}

// Store is one client's connection to the shared state store. Paths are
// slash-separated; values round-trip through JSON.
type Store interface {
	// Get returns the JSON snapshot of the subtree at path, or nil if the
	// path is absent.
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Set unconditionally replaces the subtree at path. A nil value
	// deletes it.
	Set(ctx context.Context, path string, value any) error

	// Update applies a multi-path patch atomically. Keys are absolute
	// paths; nil values delete.
	Update(ctx context.Context, values map[string]any) error

	// Transaction runs fn against the current value at path and commits
	// its result, retrying fn on concurrent-write conflicts. Returns
	// ErrAborted when fn aborts.
	Transaction(ctx context.Context, path string, fn TxFunc) error

	// Subscribe registers fn to receive the subtree snapshot at path:
	// the current value first, then one snapshot after every change
	// touching the subtree. fn is invoked from a dedicated goroutine per
	// subscription, in commit order.
	Subscribe(path string, fn func(snapshot json.RawMessage)) (Unsubscribe, error)

	// OnDisconnect returns the disconnect hook for path. Hooks must be
	// re-armed after every reconnect.
	OnDisconnect(path string) DisconnectHook

	// Close tears down the client. Subscriptions stop and any armed
	// disconnect hooks fire, exactly as if the connection had dropped.
	Close() error
}
