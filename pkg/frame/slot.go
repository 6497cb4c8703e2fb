package frame

import "sync/atomic"

// Slot is a single-entry, latest-wins buffer. One goroutine stores, any
// number load; a load sees either nil or a complete frame, never a partial one.
// Older unread frames are discarded on overwrite, so no backlog can build up.
type Slot struct {
	latest atomic.Pointer[Gray]
	stores atomic.Uint64
}

// Store publishes f, replacing whatever was there.
func (s *Slot) Store(f *Gray) {
	s.latest.Store(f)
	if f != nil {
		s.stores.Add(1)
	}
}

// Load returns the most recent frame or nil.
func (s *Slot) Load() *Gray {
	return s.latest.Load()
}

// Clear resets the slot to the empty state.
func (s *Slot) Clear() {
	s.latest.Store(nil)
}

// Stores reports how many frames have been published since creation.
func (s *Slot) Stores() uint64 {
	return s.stores.Load()
}
