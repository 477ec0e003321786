package snapshot

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]map[int]stored
	closed bool
}

type stored struct {
	stage     string
	data      []byte
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[int]stored)}
}

// Save implements Store.
func (m *MemoryStore) Save(runID string, sequence int, stage string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.runs[runID] == nil {
		m.runs[runID] = make(map[int]stored)
	}
	m.runs[runID][sequence] = stored{
		stage:     stage,
		data:      slices.Clone(data),
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string, sequence int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	s, ok := m.runs[runID][sequence]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.data), nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.runs[runID]
	infos := make([]Info, 0, len(run))
	for seq, s := range run {
		infos = append(infos, Info{
			RunID:     runID,
			Sequence:  seq,
			Stage:     s.stage,
			Timestamp: s.timestamp,
			Size:      int64(len(s.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	latest := make(map[string]time.Time, len(m.runs))
	ids := make([]string, 0, len(m.runs))
	for id, run := range m.runs {
		if len(run) == 0 {
			continue
		}
		for _, s := range run {
			if s.timestamp.After(latest[id]) {
				latest[id] = s.timestamp
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if latest[ids[i]].Equal(latest[ids[j]]) {
			return ids[i] < ids[j]
		}
		return latest[ids[i]].After(latest[ids[j]])
	})
	return ids, nil
}

// DeleteAfter implements Store.
func (m *MemoryStore) DeleteAfter(runID string, sequence int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	for seq := range m.runs[runID] {
		if seq > sequence {
			delete(m.runs[runID], seq)
		}
	}
	return nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.runs, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	return nil
}

// Len returns the number of snapshots across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, run := range m.runs {
		n += len(run)
	}
	return n
}
