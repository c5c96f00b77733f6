// Package pool runs a fixed set of long-lived workers over a shared FIFO
// queue. Each worker is bound to a stable slot id for its lifetime, so the
// display can attribute progress to a slot rather than to an entry.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/seriesdl/seriesdl/internal/utils"
)

// Item is one unit of queued work: a link-list line and its URL.
type Item struct {
	Line int
	URL  string
}

// Handler processes one item on behalf of the slot that claimed it.
type Handler func(slot int, item Item)

// WorkerPool owns the queue and the workers. Shutdown is cooperative:
// Close marks the queue complete and each worker exits once it drains.
type WorkerPool struct {
	taskChan    chan Item
	handler     Handler
	wg          sync.WaitGroup
	outstanding atomic.Int64
	processed   atomic.Int64
}

// New starts maxWorkers workers with slot ids 0..maxWorkers-1.
func New(maxWorkers int, handler Handler) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &WorkerPool{
		taskChan: make(chan Item, 100), // buffered so Add never blocks for small batches
		handler:  handler,
	}
	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Add enqueues an item. The outstanding counter is raised before the item
// becomes claimable, so a transient empty-queue observation while another
// worker is mid-pipeline never reads as completion.
func (p *WorkerPool) Add(item Item) {
	p.outstanding.Add(1)
	p.taskChan <- item
}

// Close marks the queue complete. Workers exit after draining it.
func (p *WorkerPool) Close() {
	close(p.taskChan)
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Outstanding reports queued plus in-flight items.
func (p *WorkerPool) Outstanding() int64 {
	return p.outstanding.Load()
}

// Processed reports items whose pipeline has fully concluded.
func (p *WorkerPool) Processed() int64 {
	return p.processed.Load()
}

func (p *WorkerPool) worker(slot int) {
	defer p.wg.Done()
	for item := range p.taskChan {
		p.runOne(slot, item)
	}
}

// runOne executes the handler for one item. A panic in the handler is
// converted into a logged failure of that item so the worker survives to
// pull further work.
func (p *WorkerPool) runOne(slot int, item Item) {
	defer func() {
		if r := recover(); r != nil {
			utils.Debug("worker %d: panic on line %d (%s): %v", slot, item.Line, item.URL, r)
		}
		p.outstanding.Add(-1)
		p.processed.Add(1)
	}()
	p.handler(slot, item)
}
