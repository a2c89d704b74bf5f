package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (s *recordSink) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, pcm)
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *recordSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestQueue() (*Queue, *[]*recordSink) {
	var sinks []*recordSink
	q := NewQueue(Config{SampleRate: 24000, Channels: 1, QueueDepth: 8}, func() (Sink, error) {
		s := &recordSink{}
		sinks = append(sinks, s)
		return s, nil
	})
	return q, &sinks
}

func TestEnqueue_SchedulesBackToBack(t *testing.T) {
	q, _ := newTestQueue()
	defer q.Stop()

	// 4800 bytes = 2400 samples = 100ms at 24 kHz mono
	first, err := q.Enqueue(make([]byte, 4800))
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Enqueue(make([]byte, 4800))
	if err != nil {
		t.Fatal(err)
	}

	gap := second.Sub(first)
	if gap != 100*time.Millisecond {
		t.Errorf("second buffer starts %v after first, want exactly 100ms", gap)
	}
	if got := q.Cursor().Sub(second); got != 100*time.Millisecond {
		t.Errorf("cursor is %v past the second start, want 100ms", got)
	}
}

func TestEnqueue_NeverSchedulesInThePast(t *testing.T) {
	q, _ := newTestQueue()
	defer q.Stop()

	start, err := q.Enqueue(make([]byte, 480))
	if err != nil {
		t.Fatal(err)
	}
	if !start.After(time.Now().Add(-time.Millisecond)) {
		t.Errorf("buffer scheduled in the past: %v", start)
	}
}

func TestEnqueue_EmptyBufferIgnored(t *testing.T) {
	q, sinks := newTestQueue()
	defer q.Stop()

	if _, err := q.Enqueue(nil); err != nil {
		t.Fatal(err)
	}
	if len(*sinks) != 0 {
		t.Error("empty enqueue created a sink")
	}
}

func TestStop_FreshResourceOnNextUse(t *testing.T) {
	q, sinks := newTestQueue()

	if _, err := q.Enqueue(make([]byte, 480)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && (*sinks)[0].writeCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	q.Stop()
	if !(*sinks)[0].isClosed() {
		t.Error("sink not closed on Stop")
	}

	// next enqueue must build a brand new output resource
	if _, err := q.Enqueue(make([]byte, 480)); err != nil {
		t.Fatal(err)
	}
	defer q.Stop()
	if len(*sinks) != 2 {
		t.Fatalf("sinks created = %d, want a fresh one after Stop", len(*sinks))
	}
}

func TestStop_Idempotent(t *testing.T) {
	q, _ := newTestQueue()
	q.Stop()
	q.Stop()
}

func TestEnqueue_SinkFactoryError(t *testing.T) {
	q := NewQueue(DefaultConfig(), func() (Sink, error) {
		return nil, errors.New("no output device")
	})
	if _, err := q.Enqueue(make([]byte, 480)); err == nil {
		t.Error("expected sink creation error")
	}
}

func TestDrain_WritesInOrder(t *testing.T) {
	q, sinks := newTestQueue()
	defer q.Stop()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && (*sinks)[0].writeCount() < 3 {
		time.Sleep(5 * time.Millisecond)
	}

	s := (*sinks)[0]
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.writes) != 3 {
		t.Fatalf("writes = %d, want 3", len(s.writes))
	}
	for i, w := range s.writes {
		if w[0] != byte(i) {
			t.Errorf("write %d = %d, out of order", i, w[0])
		}
	}
}
