// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package rpc

import (
	"encoding/json"
	"sync"

	"github.com/juju/driverrpc/rpc/params"
)

// call represents an active call.
type call struct {
	params.Request
	Result json.RawMessage
	Error  error
	Done   chan *call
}

func (c *call) done(logger Logger) {
	select {
	case c.Done <- c:
	default:
		// Done is buffered for exactly one reply, so a second
		// completion means the table let an entry resolve twice.
		logger.Errorf("discarding second completion of call %d", c.ID)
	}
}

// outcome returns the call's error, or decodes its result into
// result.
func (c *call) outcome(result any) error {
	if c.Error != nil {
		return c.Error
	}
	return decodeResult(c.Method, c.Result, result)
}

// pendingTable maps call ids to calls awaiting a response. Each entry
// is removed exactly once: by its response, by the caller giving up,
// or by the connection terminating.
type pendingTable struct {
	mu    sync.Mutex
	calls map[uint32]*call

	// tombstones holds ids whose caller gave up, so that a late
	// response can be told apart from a protocol violation. At most
	// maxTombstones are kept; the oldest go first.
	tombstones    map[uint32]struct{}
	maxTombstones int
}

// defaultMaxTombstones bounds the tombstones kept for calls the driver
// never answers.
const defaultMaxTombstones = 4096

func newPendingTable() *pendingTable {
	return &pendingTable{
		calls:         make(map[uint32]*call),
		tombstones:    make(map[uint32]struct{}),
		maxTombstones: defaultMaxTombstones,
	}
}

func (t *pendingTable) add(c *call) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls[c.ID] = c
}

// remove takes the call with the given id out of the table. It
// returns nil if there is no such call.
func (t *pendingTable) remove(id uint32) *call {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.calls[id]
	delete(t.calls, id)
	return c
}

// abandon removes the call and leaves a tombstone for it. It reports
// false if the call had already been removed.
func (t *pendingTable) abandon(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.calls[id]; !ok {
		return false
	}
	delete(t.calls, id)
	t.tombstones[id] = struct{}{}
	if len(t.tombstones) > t.maxTombstones {
		t.evictOldest()
	}
	return true
}

// evictOldest drops the tombstone with the lowest id. Ids are assigned
// in increasing order, so that is the oldest one.
func (t *pendingTable) evictOldest() {
	var oldest uint32
	first := true
	for id := range t.tombstones {
		if first || id < oldest {
			oldest, first = id, false
		}
	}
	delete(t.tombstones, oldest)
}

// buried reports whether id was abandoned, clearing its tombstone.
func (t *pendingTable) buried(id uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.tombstones[id]
	delete(t.tombstones, id)
	return ok
}

// drain empties the table, returning the calls that were pending.
func (t *pendingTable) drain() []*call {
	t.mu.Lock()
	defer t.mu.Unlock()
	calls := make([]*call, 0, len(t.calls))
	for _, c := range t.calls {
		calls = append(calls, c)
	}
	t.calls = make(map[uint32]*call)
	t.tombstones = make(map[uint32]struct{})
	return calls
}

func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
