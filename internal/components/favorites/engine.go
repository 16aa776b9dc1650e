// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2025 Marrfa Go Authors

package favorites

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/MahdiBaghbani/marrfa-go/internal/components/identity"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/apierr"
	"github.com/MahdiBaghbani/marrfa-go/internal/platform/logutil"
)

// Remote is the gateway seam used by the engine. Implemented by *Gateway.
type Remote interface {
	Add(ctx context.Context, email string, propertyID int64) (json.RawMessage, error)
	List(ctx context.Context, email string) (ListResult, error)
	Remove(ctx context.Context, email string, propertyID int64) (json.RawMessage, error)
}

// Phase is the engine's load phase.
type Phase string

const (
	PhaseUnloaded Phase = "unloaded"
	PhaseLoading  Phase = "loading"
	PhaseIdle     Phase = "idle"
)

// State is a snapshot of the engine.
type State struct {
	Identity  string
	Phase     Phase
	Favorites []Property
	Loading   bool

	// Pending lists property IDs with a mutation in flight, ascending.
	Pending []int64

	// Err is the last recorded failure, empty when none.
	Err string

	// Version increases with every change; subscribers can drop stale snapshots.
	Version uint64
}

// Engine owns the optimistic favorites set of one signed-in identity.
// Mutations apply locally first, then call the remote, and roll back on failure.
// At most one mutation per property ID is in flight; others wait their turn.
type Engine struct {
	remote Remote
	logger *slog.Logger
	locks  keyedMutex

	mu       sync.Mutex
	identity string
	gen      uint64 // bumped on identity change; stale completions are dropped
	loadSeq  uint64
	phase    Phase
	items    []Property
	pending  map[int64]int
	err      string
	version  uint64
	subs     map[int]func(State)
	nextSub  int

	// outbox holds states awaiting delivery; delivering is set while a
	// delivery goroutine drains it.
	outbox     []State
	delivering bool
}

// NewEngine creates an engine with no identity.
func NewEngine(remote Remote, logger *slog.Logger) *Engine {
	return &Engine{
		remote:  remote,
		logger:  logutil.NoopIfNil(logger),
		phase:   PhaseUnloaded,
		pending: make(map[int64]int),
		subs:    make(map[int]func(State)),
	}
}

// SetIdentity switches to email, clearing the set and the last error.
// A non-empty identity is loaded immediately; the load error is also recorded in State.
func (e *Engine) SetIdentity(ctx context.Context, email string) error {
	id := identity.Normalize(email)

	e.mu.Lock()
	e.identity = id
	e.gen++
	e.items = nil
	e.pending = make(map[int64]int)
	e.err = ""
	e.phase = PhaseUnloaded
	e.changedLocked()
	e.mu.Unlock()

	if id == "" {
		e.logger.Debug("favorites cleared")
		return nil
	}
	return e.Reload(ctx)
}

// Reload replaces the set with the server's list. On failure the set is
// emptied and the error recorded.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	id, gen := e.identity, e.gen
	if id == "" {
		e.mu.Unlock()
		e.logger.Warn("favorites reload skipped: not signed in")
		return nil
	}
	e.loadSeq++
	seq := e.loadSeq
	e.phase = PhaseLoading
	e.err = ""
	e.changedLocked()
	e.mu.Unlock()

	e.logger.Debug("loading favorites", "identity", id)
	result, err := e.remote.List(ctx, id)

	e.mu.Lock()
	if gen != e.gen || seq != e.loadSeq {
		e.mu.Unlock()
		return err
	}
	e.phase = PhaseIdle
	if err != nil {
		e.items = nil
		e.err = err.Error()
	} else {
		e.items = result.Items
	}
	e.changedLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to load favorites", "identity", id, "error", err)
		return err
	}
	e.logger.Info("favorites loaded", "identity", id, "count", len(result.Items))
	return nil
}

// IsFavorited reports whether propertyID is in the local set.
func (e *Engine) IsFavorited(propertyID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return indexOf(e.items, propertyID) >= 0
}

// Toggle removes p when favorited and adds it otherwise.
func (e *Engine) Toggle(ctx context.Context, p Property) {
	if !e.admit("toggle favorite", p.ID) {
		return
	}
	unlock := e.locks.Lock(p.ID)
	defer unlock()

	// Membership is read after the lock so a queued toggle sees the previous outcome.
	if e.IsFavorited(p.ID) {
		e.remove(ctx, p.ID)
		return
	}
	e.add(ctx, p)
}

// Add favorites p. Adding a present ID does nothing.
func (e *Engine) Add(ctx context.Context, p Property) {
	if !e.admit("add favorite", p.ID) {
		return
	}
	unlock := e.locks.Lock(p.ID)
	defer unlock()
	e.add(ctx, p)
}

// Remove unfavorites propertyID. The remote is called even when the ID is not
// in the local set.
func (e *Engine) Remove(ctx context.Context, propertyID int64) {
	if !e.admit("remove favorite", propertyID) {
		return
	}
	unlock := e.locks.Lock(propertyID)
	defer unlock()
	e.remove(ctx, propertyID)
}

// admit rejects mutations without a signed-in identity or a usable ID.
func (e *Engine) admit(op string, propertyID int64) bool {
	e.mu.Lock()
	signedIn := e.identity != ""
	if signedIn && propertyID <= 0 {
		e.err = apierr.Validation(op, apierr.ErrPropertyIDRequired).Error()
		e.changedLocked()
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()

	if !signedIn {
		e.logger.Warn("favorites mutation ignored: not signed in", "op", op, "property_id", propertyID)
	}
	return signedIn
}

func (e *Engine) add(ctx context.Context, p Property) {
	e.mu.Lock()
	id, gen := e.identity, e.gen
	if id == "" || indexOf(e.items, p.ID) >= 0 {
		e.mu.Unlock()
		return
	}
	e.items = append(e.items, p)
	e.pending[p.ID]++
	e.changedLocked()
	e.mu.Unlock()

	_, err := e.remote.Add(ctx, id, p.ID)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.donePendingLocked(p.ID)
	if err != nil {
		if i := indexOf(e.items, p.ID); i >= 0 {
			e.items = append(e.items[:i:i], e.items[i+1:]...)
		}
		e.err = err.Error()
	}
	e.changedLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to add favorite, rolled back", "identity", id, "property_id", p.ID, "error", err)
	}
}

func (e *Engine) remove(ctx context.Context, propertyID int64) {
	e.mu.Lock()
	id, gen := e.identity, e.gen
	if id == "" {
		e.mu.Unlock()
		return
	}
	var removed *Property
	if i := indexOf(e.items, propertyID); i >= 0 {
		p := e.items[i]
		removed = &p
		e.items = append(e.items[:i:i], e.items[i+1:]...)
	}
	e.pending[propertyID]++
	e.changedLocked()
	e.mu.Unlock()

	_, err := e.remote.Remove(ctx, id, propertyID)

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.donePendingLocked(propertyID)
	if err != nil {
		if removed != nil && indexOf(e.items, propertyID) < 0 {
			e.items = append(e.items, *removed)
		}
		e.err = err.Error()
	}
	e.changedLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("failed to remove favorite, rolled back", "identity", id, "property_id", propertyID, "error", err)
	}
}

func (e *Engine) donePendingLocked(propertyID int64) {
	if e.pending[propertyID] <= 1 {
		delete(e.pending, propertyID)
		return
	}
	e.pending[propertyID]--
}

// State returns a snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn to receive every new state. The returned func unsubscribes.
// States are delivered in Version order from a separate goroutine, one at a time,
// never under an engine or per-ID lock, so fn may call back into the engine,
// including mutating the ID it was notified about.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := e.nextSub
	e.nextSub++
	e.subs[key] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, key)
	}
}

// changedLocked bumps the version and queues the new state for subscribers.
func (e *Engine) changedLocked() {
	e.version++
	if len(e.subs) == 0 {
		return
	}
	e.outbox = append(e.outbox, e.snapshotLocked())
	if !e.delivering {
		e.delivering = true
		go e.deliver()
	}
}

func (e *Engine) snapshotLocked() State {
	s := State{
		Identity:  e.identity,
		Phase:     e.phase,
		Favorites: append([]Property{}, e.items...),
		Loading:   e.phase == PhaseLoading,
		Err:       e.err,
		Version:   e.version,
	}
	if len(e.pending) > 0 {
		s.Pending = make([]int64, 0, len(e.pending))
		for id := range e.pending {
			s.Pending = append(s.Pending, id)
		}
		sort.Slice(s.Pending, func(i, j int) bool { return s.Pending[i] < s.Pending[j] })
	}
	return s
}

// deliver drains the outbox and exits once it is empty.
func (e *Engine) deliver() {
	for {
		e.mu.Lock()
		if len(e.outbox) == 0 {
			e.delivering = false
			e.mu.Unlock()
			return
		}
		s := e.outbox[0]
		e.outbox[0] = State{}
		e.outbox = e.outbox[1:]
		subs := make([]func(State), 0, len(e.subs))
		for _, fn := range e.subs {
			subs = append(subs, fn)
		}
		e.mu.Unlock()

		for _, fn := range subs {
			fn(s)
		}
	}
}

func indexOf(items []Property, propertyID int64) int {
	for i, p := range items {
		if p.ID == propertyID {
			return i
		}
	}
	return -1
}

// keyedMutex serializes work per property ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the lock for id and returns its release func.
func (k *keyedMutex) Lock(id int64) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[int64]*refMutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
