// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"log/slog"
	"sync"
)

// ChangeOp identifies the kind of write behind a change event.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpRemove ChangeOp = "remove"
)

// ChangeEvent is published on a collection's change feed after a write has
// been committed. Doc is nil for removals.
type ChangeEvent struct {
	Collection string
	Op         ChangeOp
	ID         string
	Doc        Document
}

// changeFeed fans change events out to subscribers. Delivery is best-effort:
// a subscriber whose buffer is full misses the event rather than blocking
// the writer.
type changeFeed struct {
	collection string
	logger     *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan ChangeEvent
	closed bool
}

func newChangeFeed(collection string, logger *slog.Logger) *changeFeed {
	return &changeFeed{
		collection: collection,
		logger:     logger,
		subs:       make(map[int]chan ChangeEvent),
	}
}

func (f *changeFeed) subscribe(buffer int) (<-chan ChangeEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan ChangeEvent, buffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (f *changeFeed) publish(ev ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, sub := range f.subs {
		select {
		case sub <- ev:
		default:
			f.logger.Debug("change feed subscriber lagging, dropping event",
				"collection", f.collection, "op", ev.Op, "id", ev.ID)
		}
	}
}

func (f *changeFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub)
	}
}
