package playback

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Sink is an audio output accepting raw PCM. It is created lazily on first
// use and never reused across a stop/start boundary.
type Sink interface {
	Write(pcm []byte) error
	Close() error
}

type SinkFactory func() (Sink, error)

// scheduleEpsilon keeps the first buffer of a burst from being scheduled
// in the past while the goroutine wakes up.
const scheduleEpsilon = 30 * time.Millisecond

type Config struct {
	SampleRate int // of the assistant audio stream
	Channels   int
	QueueDepth int
}

func DefaultConfig() Config {
	return Config{SampleRate: 24000, Channels: 1, QueueDepth: 64}
}

type scheduled struct {
	pcm   []byte
	start time.Time
}

// Queue schedules decoded assistant speech back-to-back: each buffer starts
// at max(now+epsilon, end of the previously scheduled buffer), so buffers
// arriving as discrete network messages play with no audible gaps.
type Queue struct {
	cfg     Config
	newSink SinkFactory

	mu        sync.Mutex
	sink      Sink
	items     chan scheduled
	nextStart time.Time
	running   bool

	wg sync.WaitGroup
}

func NewQueue(cfg Config, newSink SinkFactory) *Queue {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 64
	}
	return &Queue{cfg: cfg, newSink: newSink}
}

// Enqueue appends one decoded buffer and returns its scheduled start time.
func (q *Queue) Enqueue(pcm []byte) (time.Time, error) {
	if len(pcm) == 0 {
		return time.Time{}, nil
	}

	q.mu.Lock()
	if !q.running {
		sink, err := q.newSink()
		if err != nil {
			q.mu.Unlock()
			return time.Time{}, fmt.Errorf("create playback sink: %w", err)
		}
		q.sink = sink
		q.items = make(chan scheduled, q.cfg.QueueDepth)
		q.nextStart = time.Time{}
		q.running = true
		q.wg.Add(1)
		go q.drain(sink, q.items)
	}

	start := time.Now().Add(scheduleEpsilon)
	if q.nextStart.After(start) {
		start = q.nextStart
	}
	q.nextStart = start.Add(q.duration(len(pcm)))

	items := q.items
	q.mu.Unlock()

	select {
	case items <- scheduled{pcm: pcm, start: start}:
	default:
		return time.Time{}, fmt.Errorf("playback queue full, dropping %d bytes", len(pcm))
	}
	return start, nil
}

// Cursor returns the end time of the last scheduled buffer.
func (q *Queue) Cursor() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextStart
}

func (q *Queue) duration(n int) time.Duration {
	bytesPerSecond := q.cfg.SampleRate * q.cfg.Channels * 2
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

func (q *Queue) drain(sink Sink, items <-chan scheduled) {
	defer q.wg.Done()

	for item := range items {
		if wait := time.Until(item.start); wait > 0 {
			time.Sleep(wait)
		}
		if err := sink.Write(item.pcm); err != nil {
			log.Printf("playback: write error: %v", err)
			return
		}
	}
}

// Stop tears the output resource down. The next Enqueue creates a fresh one.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	items := q.items
	sink := q.sink
	q.items = nil
	q.sink = nil
	q.nextStart = time.Time{}
	q.mu.Unlock()

	close(items)
	q.wg.Wait()
	if err := sink.Close(); err != nil {
		log.Printf("playback: close error: %v", err)
	}
}
