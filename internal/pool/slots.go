package pool

import "sync"

// SlotStatus is the latest known state of one worker slot. Percent is -1
// when no meaningful percentage is known.
type SlotStatus struct {
	Text    string
	Percent int
}

// SlotTable holds one status per worker slot. Each slot is mutated only by
// the worker owning it; the display loop takes read-only snapshots.
type SlotTable struct {
	mu    sync.RWMutex
	slots []SlotStatus
}

// NewSlotTable returns a table with n idle slots.
func NewSlotTable(n int) *SlotTable {
	t := &SlotTable{slots: make([]SlotStatus, n)}
	for i := range t.slots {
		t.slots[i] = SlotStatus{Text: "idle", Percent: -1}
	}
	return t
}

// Len returns the number of slots.
func (t *SlotTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// Set replaces the status of one slot. Out-of-range slots are ignored.
func (t *SlotTable) Set(slot int, status SlotStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if slot < 0 || slot >= len(t.slots) {
		return
	}
	t.slots[slot] = status
}

// SetText replaces a slot's display text without a percentage.
func (t *SlotTable) SetText(slot int, text string) {
	t.Set(slot, SlotStatus{Text: text, Percent: -1})
}

// Snapshot returns a copy of every slot's current status.
func (t *SlotTable) Snapshot() []SlotStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]SlotStatus, len(t.slots))
	copy(out, t.slots)
	return out
}
