package database

import (
	"sync"

	"github.com/mattn/go-sqlite3"
)

// ChangeKind is the kind of row mutation reported by SQLite.
type ChangeKind int

const (
	// Insert is a row inserted into a table.
	Insert ChangeKind = iota
	// Update is a row updated in place.
	Update
	// Delete is a row removed from a table.
	Delete
)

func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// changeKindFromOp maps an update-hook operation code.
func changeKindFromOp(op int) (ChangeKind, bool) {
	switch op {
	case sqlite3.SQLITE_INSERT:
		return Insert, true
	case sqlite3.SQLITE_UPDATE:
		return Update, true
	case sqlite3.SQLITE_DELETE:
		return Delete, true
	}
	return 0, false
}

// ChangeEvent describes one mutated row.
type ChangeEvent struct {
	RowID int64
	Table string
}

// Listener receives change events on the Connection's dispatcher goroutine.
type Listener func(conn *Connection, ev ChangeEvent)

type listenerEntry struct {
	id uint64
	fn Listener
}

// listenerSets holds the subscribers of each change kind.
type listenerSets struct {
	mu     sync.RWMutex
	nextID uint64
	byKind map[ChangeKind][]listenerEntry
}

func newListenerSets() *listenerSets {
	return &listenerSets{byKind: make(map[ChangeKind][]listenerEntry)}
}

func (s *listenerSets) add(kind ChangeKind, fn Listener) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.byKind[kind] = append(s.byKind[kind], listenerEntry{id: s.nextID, fn: fn})
	return s.nextID
}

func (s *listenerSets) remove(kind ChangeKind, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.byKind[kind]
	for i, e := range entries {
		if e.id == id {
			// Copy so snapshots taken for in-flight deliveries stay intact.
			next := make([]listenerEntry, 0, len(entries)-1)
			next = append(next, entries[:i]...)
			next = append(next, entries[i+1:]...)
			s.byKind[kind] = next
			return
		}
	}
}

func (s *listenerSets) empty(kind ChangeKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKind[kind]) == 0
}

func (s *listenerSets) snapshot(kind ChangeKind) []listenerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byKind[kind]
}

// Subscribe registers fn for changes of kind and returns a function that
// removes it. Listeners run on the dispatcher goroutine, in subscription
// order.
func (c *Connection) Subscribe(kind ChangeKind, fn Listener) (unsubscribe func()) {
	id := c.listeners.add(kind, fn)
	var once sync.Once
	return func() {
		once.Do(func() { c.listeners.remove(kind, id) })
	}
}

// OnInsert subscribes fn to inserted rows.
func (c *Connection) OnInsert(fn Listener) (unsubscribe func()) {
	return c.Subscribe(Insert, fn)
}

// OnUpdate subscribes fn to updated rows.
func (c *Connection) OnUpdate(fn Listener) (unsubscribe func()) {
	return c.Subscribe(Update, fn)
}

// OnDelete subscribes fn to deleted rows.
func (c *Connection) OnDelete(fn Listener) (unsubscribe func()) {
	return c.Subscribe(Delete, fn)
}

// EventsEnabled reports whether change notifications are being fired.
func (c *Connection) EventsEnabled() bool {
	return c.eventsEnabled.Load()
}

// SetEventsEnabled turns change notifications on or off.
func (c *Connection) SetEventsEnabled(enabled bool) {
	c.eventsEnabled.Store(enabled)
}

// WithEventsSuppressed runs fn with change notifications off and restores
// the previous setting afterwards, whether fn fails or not.
func (c *Connection) WithEventsSuppressed(fn func() error) error {
	prev := c.eventsEnabled.Swap(false)
	defer c.eventsEnabled.Store(prev)
	return fn()
}

// DroppedEvents returns how many notifications could not be posted to the
// dispatcher.
func (c *Connection) DroppedEvents() uint64 {
	return c.dropped.Load()
}

// onRowChange is the SQLite update hook. It runs on the goroutine executing
// the write, before that call returns, and never calls listeners itself.
func (c *Connection) onRowChange(op int, _ string, table string, rowid int64) {
	if !c.eventsEnabled.Load() {
		return
	}
	kind, ok := changeKindFromOp(op)
	if !ok {
		return
	}

	ev := ChangeEvent{RowID: rowid, Table: table}
	if obs := c.getObserver(); obs != nil {
		obs.ObserveChange(kind, ev)
	}

	if c.listeners.empty(kind) {
		return
	}

	if err := c.dispatcher.Post(func() { c.deliver(kind, ev) }); err != nil {
		c.dropped.Add(1)
		c.getLogger().Warn("change notification dropped",
			"id", c.id,
			"kind", kind.String(),
			"table", table,
			"rowid", rowid,
			"error", err,
		)
	}
}

// deliver runs on the dispatcher goroutine.
func (c *Connection) deliver(kind ChangeKind, ev ChangeEvent) {
	for _, e := range c.listeners.snapshot(kind) {
		e.fn(c, ev)
	}
}
