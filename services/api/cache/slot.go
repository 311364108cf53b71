package cache

import (
	"sync"

	"github.com/02loveslollipop/Shizuku-weather-relay/services/api/models"
)

// Slot holds at most one snapshot: the most recent one known to the process.
// It starts empty and is overwritten wholesale by every Set.
type Slot struct {
	mu       sync.RWMutex
	snapshot models.Snapshot
	onSet    func()
}

// NewSlot returns an empty slot. onSet, if non-nil, is called after every Set.
func NewSlot(onSet func()) *Slot {
	return &Slot{onSet: onSet}
}

// Get returns the current snapshot and whether the slot has ever been populated.
// Callers must not mutate the returned bytes.
func (s *Slot) Get() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, false
	}
	return s.snapshot, true
}

// Set replaces the slot contents with a private copy of snapshot.
func (s *Slot) Set(snapshot models.Snapshot) {
	cp := make(models.Snapshot, len(snapshot))
	copy(cp, snapshot)

	s.mu.Lock()
	s.snapshot = cp
	s.mu.Unlock()

	if s.onSet != nil {
		s.onSet()
	}
}
