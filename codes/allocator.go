package codes

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Store persists the record history.
type Store interface {
	// Load returns the persisted records in the order they were allocated.
	// A store that has never been written returns no records and no error.
	Load() ([]Record, error)

	// Save persists the full record list. The last record is the one that
	// has just been allocated. If Save fails, the persisted data must be
	// left as it was before the call.
	Save(records []Record) error

	// Location describes where the records live, for example a file path.
	Location() string
}

// State is the lifecycle state of an Allocator.
type State int

// The allocator starts uninitialized and becomes ready after a successful
// Init. It never goes back.
const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Allocator hands out sequential codes per category key. All methods are safe
// for concurrent use. Allocations are serialized so that every key sees
// 1, 2, 3, ... without gaps or duplicates.
type Allocator struct {
	store  Store
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	counters map[Key]int
	records  []Record
}

// NewAllocator creates an uninitialized allocator that persists through the
// given store.
func NewAllocator(store Store) *Allocator {
	if store == nil {
		panic("allocator requires a store")
	}

	return &Allocator{
		store:    store,
		logger:   zap.NewNop(),
		counters: make(map[Key]int),
	}
}

// WithLogger sets the logger of the allocator.
func (a *Allocator) WithLogger(logger *zap.Logger) *Allocator {
	if logger != nil {
		a.logger = logger
	}

	return a
}

// Init loads the persisted records and rebuilds the counter of every key as
// the highest sequence number found for it.
func (a *Allocator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateReady {
		return ErrAlreadyInitialized
	}

	records, err := a.store.Load()
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return err
		}

		return &LoadError{Location: a.store.Location(), Err: err}
	}

	counters := make(map[Key]int)
	for _, r := range records {
		if r.Seq > counters[r.Key] {
			counters[r.Key] = r.Seq
		}
	}

	a.counters = counters
	a.records = append([]Record(nil), records...)
	a.state = StateReady

	a.logger.Info("Records loaded",
		zap.String("location", a.store.Location()),
		zap.Int("records", len(a.records)),
		zap.Int("keys", len(a.counters)))

	return nil
}

// Allocate issues the next code for the key made of the three parts. The new
// record is persisted before it becomes visible. If persisting fails, a
// *PersistenceError is returned and the counter does not advance.
func (a *Allocator) Allocate(division, area, doc string) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady {
		return Record{}, ErrNotInitialized
	}

	key := Key{Division: division, Area: area, Doc: doc}
	record := NewRecord(key, a.counters[key]+1)

	candidate := make([]Record, len(a.records), len(a.records)+1)
	copy(candidate, a.records)
	candidate = append(candidate, record)

	if err := a.store.Save(candidate); err != nil {
		a.logger.Error("Failed to persist code",
			zap.String("code", record.Code),
			zap.String("location", a.store.Location()),
			zap.Error(err))

		return Record{}, &PersistenceError{
			Location: a.store.Location(),
			Key:      key,
			Err:      err,
		}
	}

	a.counters[key] = record.Seq
	a.records = candidate

	a.logger.Info("Code allocated",
		zap.String("division", division),
		zap.String("area", area),
		zap.String("doc", doc),
		zap.String("code", record.Code))

	return record, nil
}

// State returns the lifecycle state.
func (a *Allocator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Location returns where the store keeps the records.
func (a *Allocator) Location() string {
	return a.store.Location()
}

// Last returns the last sequence number issued for the key, or 0 if none was.
func (a *Allocator) Last(key Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.counters[key]
}

// Records returns a copy of all records in allocation order.
func (a *Allocator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Record(nil), a.records...)
}

// Counters returns a copy of the counter table.
func (a *Allocator) Counters() map[Key]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	counters := make(map[Key]int, len(a.counters))
	for k, v := range a.counters {
		counters[k] = v
	}

	return counters
}

// Counter is one row of the counter table.
type Counter struct {
	Key
	Last int
}

// SortedCounters returns the counter table ordered by key.
func (a *Allocator) SortedCounters() []Counter {
	counters := a.Counters()

	list := make([]Counter, 0, len(counters))
	for k, v := range counters {
		list = append(list, Counter{Key: k, Last: v})
	}

	sort.Slice(list, func(i, j int) bool {
		ki, kj := list[i].Key, list[j].Key
		if ki.Division != kj.Division {
			return ki.Division < kj.Division
		}

		if ki.Area != kj.Area {
			return ki.Area < kj.Area
		}

		return ki.Doc < kj.Doc
	})

	return list
}
