package assembler

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	pieces []string
}

func (c *collector) emit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pieces = append(c.pieces, text)
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pieces...)
}

func newTestAssembler(flush time.Duration) (*Assembler, *collector) {
	c := &collector{}
	a := New(Config{FlushDelay: flush, MinLength: 3}, c.emit)
	return a, c
}

func TestAddFragment_AccumulatesUntilBoundary(t *testing.T) {
	a, c := newTestAssembler(time.Hour)

	a.AddFragment("Hola")
	if got := c.all(); len(got) != 0 {
		t.Fatalf("emitted %v before any boundary", got)
	}
	if a.Pending() != "Hola" {
		t.Errorf("pending = %q, want %q", a.Pending(), "Hola")
	}

	a.AddFragment("como estas")
	if got := c.all(); len(got) != 0 {
		t.Fatalf("emitted %v before any boundary", got)
	}
	if a.Pending() != "Hola como estas" {
		t.Errorf("pending = %q, want %q", a.Pending(), "Hola como estas")
	}

	// the question mark completes the sentence
	a.AddFragment("?")
	got := c.all()
	if len(got) != 1 || got[0] != "Hola como estas?" {
		t.Fatalf("emitted %v, want [Hola como estas?]", got)
	}
	if a.Pending() != "" {
		t.Errorf("pending = %q after emit, want empty", a.Pending())
	}
}

func TestAddFragment_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []string
		pending   string
	}{
		{
			name:      "sentence punctuation mid-fragment",
			fragments: []string{"First sentence. Second half"},
			want:      []string{"First sentence."},
			pending:   "Second half",
		},
		{
			name:      "comma before capital",
			fragments: []string{"we agreed on the budget, Next topic is hiring"},
			want:      []string{"we agreed on the budget,"},
			pending:   "Next topic is hiring",
		},
		{
			name:      "comma before lowercase stays pending",
			fragments: []string{"we agreed, and then moved on"},
			want:      nil,
			pending:   "we agreed, and then moved on",
		},
		{
			name:      "newline splits",
			fragments: []string{"line one\nline two. done"},
			want:      []string{"line one", "line two."},
			pending:   "done",
		},
		{
			name:      "punctuation run treated as one boundary",
			fragments: []string{"Really?! I had no idea"},
			want:      []string{"Really?!"},
			pending:   "I had no idea",
		},
		{
			name:      "trailing punctuation emits everything",
			fragments: []string{"That works for me."},
			want:      []string{"That works for me."},
			pending:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, c := newTestAssembler(time.Hour)
			for _, f := range tt.fragments {
				a.AddFragment(f)
			}
			got := c.all()
			if len(got) != len(tt.want) {
				t.Fatalf("emitted %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("piece %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if a.Pending() != tt.pending {
				t.Errorf("pending = %q, want %q", a.Pending(), tt.pending)
			}
		})
	}
}

func TestFlushTimer_ForceEmitsPending(t *testing.T) {
	a, c := newTestAssembler(30 * time.Millisecond)

	a.AddFragment("no punctuation here")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(c.all()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := c.all()
	if len(got) != 1 || got[0] != "no punctuation here" {
		t.Fatalf("emitted %v, want forced flush of pending text", got)
	}
	if a.Pending() != "" {
		t.Errorf("pending = %q after flush, want empty", a.Pending())
	}
}

func TestFlushTimer_RearmedByNewFragment(t *testing.T) {
	a, c := newTestAssembler(80 * time.Millisecond)

	a.AddFragment("part one")
	time.Sleep(40 * time.Millisecond)
	a.AddFragment("part two")
	time.Sleep(40 * time.Millisecond)

	// the first timer would have fired by now if it had not been rearmed
	if got := c.all(); len(got) != 0 {
		t.Fatalf("emitted %v before the rearmed timer expired", got)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(c.all()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := c.all()
	if len(got) != 1 || got[0] != "part one part two" {
		t.Fatalf("emitted %v, want [part one part two]", got)
	}
}

func TestSingleTimerInvariant(t *testing.T) {
	a, _ := newTestAssembler(time.Hour)

	for i := 0; i < 50; i++ {
		a.AddFragment("still going")
		if n := a.ArmedTimers(); n > 1 {
			t.Fatalf("%d flush timers armed, want at most 1", n)
		}
	}
	if n := a.ArmedTimers(); n != 1 {
		t.Errorf("armed timers = %d with pending text, want 1", n)
	}

	a.Flush()
	if n := a.ArmedTimers(); n != 0 {
		t.Errorf("armed timers = %d after flush, want 0", n)
	}
	if a.Pending() != "" {
		t.Errorf("pending not empty after flush")
	}
}

func TestMinLength_DropsNoise(t *testing.T) {
	a, c := newTestAssembler(time.Hour)

	a.AddFragment("a.")
	a.Flush()
	if got := c.all(); len(got) != 0 {
		t.Fatalf("emitted %v, want sub-minimum pieces dropped", got)
	}
}

func TestReconstruction_NoTextLost(t *testing.T) {
	fragments := []string{
		"Good morning everyone. Let's",
		"get started, The agenda",
		"has three items. First",
		"the quarterly numbers!",
	}

	a, c := newTestAssembler(time.Hour)
	for _, f := range fragments {
		a.AddFragment(f)
	}
	a.Flush()

	joined := strings.Join(c.all(), " ")
	for _, word := range []string{"Good", "morning", "agenda", "quarterly", "numbers"} {
		if !strings.Contains(joined, word) {
			t.Errorf("word %q lost during assembly; got %q", word, joined)
		}
	}
}

func TestFlush_EmptyPendingIsNoop(t *testing.T) {
	a, c := newTestAssembler(time.Hour)
	a.Flush()
	if got := c.all(); len(got) != 0 {
		t.Fatalf("emitted %v from empty pending", got)
	}
}
