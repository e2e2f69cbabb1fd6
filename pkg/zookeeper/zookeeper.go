// Package zookeeper provides a stash.Watcher for a ZooKeeper node.
package zookeeper

import (
	"context"
	"errors"

	"github.com/go-zookeeper/zk"
	"github.com/zoobzio/stash"
)

// Conn is the part of *zk.Conn the watcher needs.
type Conn interface {
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
}

var _ Conn = (*zk.Conn)(nil)

var _ stash.Watcher = (*Watcher)(nil)

// Watcher emits a node's data each time it changes. ZooKeeper watches fire
// once, so a new watch is set after every event.
type Watcher struct {
	conn     Conn
	path     string
	onDelete []byte
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDeletePayload emits payload when the node is deleted.
// Without it the watcher waits quietly for the node to be recreated.
func WithDeletePayload(payload []byte) Option {
	return func(w *Watcher) {
		w.onDelete = payload
	}
}

// New creates a Watcher for the node at path.
func New(conn Conn, path string, opts ...Option) *Watcher {
	w := &Watcher{
		conn: conn,
		path: path,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch emits the node's current data, then its data after every change.
// A missing node is waited on until it is created. The channel is closed
// when ctx is done or the connection returns an unexpected error.
func (w *Watcher) Watch(ctx context.Context) (<-chan []byte, error) {
	out := make(chan []byte)

	go func() {
		defer close(out)

		for {
			data, _, events, err := w.conn.GetW(w.path)
			if errors.Is(err, zk.ErrNoNode) {
				if !w.awaitCreate(ctx) {
					return
				}
				continue
			}
			if err != nil {
				return
			}

			select {
			case out <- data:
			case <-ctx.Done():
				return
			}

			select {
			case <-ctx.Done():
				return
			case event := <-events:
				if event.Type != zk.EventNodeDeleted || w.onDelete == nil {
					continue
				}
				select {
				case out <- w.onDelete:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// awaitCreate blocks until the node exists. It reports false when the
// watcher should stop.
func (w *Watcher) awaitCreate(ctx context.Context) bool {
	exists, _, events, err := w.conn.ExistsW(w.path)
	if err != nil {
		return false
	}
	if exists {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-events:
		return true
	}
}
