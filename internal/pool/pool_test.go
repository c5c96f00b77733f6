package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ProcessesEverythingAndDrains(t *testing.T) {
	// Fewer items than workers: all must conclude without deadlock.
	var mu sync.Mutex
	seen := make(map[int]bool)

	p := New(4, func(slot int, item Item) {
		mu.Lock()
		seen[item.Line] = true
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		p.Add(Item{Line: i, URL: "https://host.example/f"})
	}
	p.Close()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}

	if len(seen) != 3 {
		t.Errorf("processed %d items, want 3", len(seen))
	}
	if p.Outstanding() != 0 {
		t.Errorf("Outstanding() = %d after drain, want 0", p.Outstanding())
	}
	if p.Processed() != 3 {
		t.Errorf("Processed() = %d, want 3", p.Processed())
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const maxWorkers = 4
	var current, peak atomic.Int64

	p := New(maxWorkers, func(slot int, item Item) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
	})

	for i := 0; i < 10; i++ {
		p.Add(Item{Line: i})
	}
	p.Close()
	p.Wait()

	if got := peak.Load(); got > maxWorkers {
		t.Errorf("observed %d concurrent handlers, want at most %d", got, maxWorkers)
	}
	if p.Processed() != 10 {
		t.Errorf("Processed() = %d, want 10", p.Processed())
	}
}

func TestPool_SlotIDsAreStable(t *testing.T) {
	var mu sync.Mutex
	slots := make(map[int]int)

	p := New(2, func(slot int, item Item) {
		mu.Lock()
		slots[slot]++
		mu.Unlock()
	})

	for i := 0; i < 8; i++ {
		p.Add(Item{Line: i})
	}
	p.Close()
	p.Wait()

	total := 0
	for slot, n := range slots {
		if slot < 0 || slot > 1 {
			t.Errorf("unexpected slot id %d", slot)
		}
		total += n
	}
	if total != 8 {
		t.Errorf("slot work adds up to %d, want 8", total)
	}
}

func TestPool_HandlerPanicDoesNotKillWorker(t *testing.T) {
	var processed atomic.Int64

	p := New(1, func(slot int, item Item) {
		if item.Line == 0 {
			panic("boom")
		}
		processed.Add(1)
	})

	p.Add(Item{Line: 0})
	p.Add(Item{Line: 1})
	p.Close()

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after panic")
	}

	if processed.Load() != 1 {
		t.Errorf("later item not processed after panic, processed = %d", processed.Load())
	}
	if p.Processed() != 2 {
		t.Errorf("Processed() = %d, want 2 (panicked item counts as concluded)", p.Processed())
	}
}

func TestSlotTable(t *testing.T) {
	tbl := NewSlotTable(3)

	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}

	tbl.Set(1, SlotStatus{Text: "file.mkv 50%", Percent: 50})
	tbl.SetText(2, "verifying")
	tbl.Set(9, SlotStatus{Text: "ignored"}) // out of range, must not panic

	snap := tbl.Snapshot()
	if snap[0].Text != "idle" || snap[0].Percent != -1 {
		t.Errorf("slot 0 = %+v, want idle", snap[0])
	}
	if snap[1].Text != "file.mkv 50%" || snap[1].Percent != 50 {
		t.Errorf("slot 1 = %+v", snap[1])
	}
	if snap[2].Text != "verifying" || snap[2].Percent != -1 {
		t.Errorf("slot 2 = %+v", snap[2])
	}

	// Snapshot is a copy, not a view.
	snap[0].Text = "mutated"
	if tbl.Snapshot()[0].Text != "idle" {
		t.Error("Snapshot() leaked internal state")
	}
}
