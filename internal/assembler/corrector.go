package assembler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Item is one segment awaiting the batched cleanup call.
type Item struct {
	ID   string
	Text string
}

// FixFunc repairs a batch of lines, returning one corrected line per input
// line in the same order.
type FixFunc func(ctx context.Context, lines []string) ([]string, error)

// Corrector batches emitted segments and runs a best-effort asynchronous
// correction pass. At most one cleanup call is in flight at a time; items
// queued during a call are deferred to the next batch, never dropped.
// Failures are swallowed — the original text stands.
type Corrector struct {
	fix         FixFunc
	delay       time.Duration
	onCorrected func(id, text string)

	mu        sync.Mutex
	queue     []Item
	inFlight  bool
	scheduled bool
	timer     *time.Timer
	closed    bool

	wg sync.WaitGroup
}

func NewCorrector(fix FixFunc, delay time.Duration, onCorrected func(id, text string)) *Corrector {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Corrector{fix: fix, delay: delay, onCorrected: onCorrected}
}

// Enqueue queues a segment for correction. The batch window starts on the
// first queued item; items arriving while a batch is in flight wait for it.
func (c *Corrector) Enqueue(id, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queue = append(c.queue, Item{ID: id, Text: text})
	c.scheduleLocked()
}

// InFlight reports whether a cleanup call is running. Never more than one.
func (c *Corrector) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// QueueLen reports how many items await the next batch.
func (c *Corrector) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Corrector) scheduleLocked() {
	if c.scheduled || c.inFlight || len(c.queue) == 0 {
		return
	}
	c.scheduled = true
	c.timer = time.AfterFunc(c.delay, c.run)
}

func (c *Corrector) run() {
	c.mu.Lock()
	c.scheduled = false
	if c.closed || c.inFlight || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.queue
	c.queue = nil
	c.inFlight = true
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()

	lines := make([]string, len(batch))
	for i, it := range batch {
		lines[i] = it.Text
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	corrected, err := c.fix(ctx, lines)
	cancel()

	if err != nil {
		// best effort: keep the originals
		log.Printf("corrector: batch of %d failed: %v", len(batch), err)
	} else {
		c.publish(batch, corrected)
	}

	c.mu.Lock()
	c.inFlight = false
	// a new batch is scheduled strictly after the previous one resolved
	c.scheduleLocked()
	c.mu.Unlock()
}

// publish matches corrected lines back to segment ids positionally and
// republishes every line that changed meaningfully.
func (c *Corrector) publish(batch []Item, corrected []string) {
	if len(corrected) != len(batch) {
		log.Printf("corrector: got %d lines for %d segments, discarding batch", len(corrected), len(batch))
		return
	}
	for i, it := range batch {
		text := corrected[i]
		if text == it.Text || len([]rune(text)) <= 3 {
			continue
		}
		c.onCorrected(it.ID, text)
	}
}

// Close stops the batch timer and waits for any in-flight call.
func (c *Corrector) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}
