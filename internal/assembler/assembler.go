package assembler

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// Assembler turns a stream of raw text fragments into discrete,
// punctuation-bounded segments. Fragments accumulate in a single pending
// buffer; complete pieces are emitted through the callback after a local
// quick-clean pass, and whatever stays pending is force-emitted when the
// flush timer fires with no newer fragment.
type Assembler struct {
	cfg  Config
	emit func(text string)

	mu         sync.Mutex
	pending    string
	flushTimer *time.Timer
	timerSeq   uint64 // invalidates timers superseded by a newer fragment
	armed      int    // live flush timers; never above 1
}

type Config struct {
	FlushDelay time.Duration // force-emit delay since the last fragment
	MinLength  int           // pieces shorter than this are dropped as noise
}

func DefaultConfig() Config {
	return Config{
		FlushDelay: 4 * time.Second,
		MinLength:  3,
	}
}

func New(cfg Config, emit func(text string)) *Assembler {
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultConfig().FlushDelay
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultConfig().MinLength
	}
	return &Assembler{cfg: cfg, emit: emit}
}

// AddFragment appends a raw fragment, emits every complete piece and
// re-arms the flush timer for whatever remains pending.
func (a *Assembler) AddFragment(frag string) {
	frag = strings.TrimSpace(frag)
	if frag == "" {
		return
	}

	a.mu.Lock()
	if a.pending == "" {
		a.pending = frag
	} else {
		a.pending = a.pending + " " + frag
	}

	pieces, rest := splitBoundaries(a.pending)
	a.pending = rest

	a.cancelTimerLocked()
	if a.pending != "" {
		a.armTimerLocked()
	}
	a.mu.Unlock()

	for _, piece := range pieces {
		a.emitPiece(piece)
	}
}

// Flush force-emits the pending buffer immediately and disarms the timer.
func (a *Assembler) Flush() {
	a.mu.Lock()
	piece := a.pending
	a.pending = ""
	a.cancelTimerLocked()
	a.mu.Unlock()

	a.emitPiece(piece)
}

// Pending returns the current pending buffer (diagnostics and tests).
func (a *Assembler) Pending() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// ArmedTimers reports how many flush timers are live. The invariant is 0 or 1.
func (a *Assembler) ArmedTimers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.armed
}

func (a *Assembler) emitPiece(piece string) {
	piece = QuickClean(piece)
	if len([]rune(piece)) < a.cfg.MinLength {
		return
	}
	a.emit(piece)
}

// armTimerLocked arms the flush timer; arming always cancels any previous
// timer first, so at most one is ever live. Must be called with mu held.
func (a *Assembler) armTimerLocked() {
	a.timerSeq++
	seq := a.timerSeq
	a.armed++
	a.flushTimer = time.AfterFunc(a.cfg.FlushDelay, func() {
		a.onFlushTimer(seq)
	})
}

func (a *Assembler) cancelTimerLocked() {
	if a.flushTimer != nil {
		// a timer that already fired will see a stale seq and no-op,
		// so it is dead either way
		a.flushTimer.Stop()
		a.armed--
		a.flushTimer = nil
	}
	a.timerSeq++
}

func (a *Assembler) onFlushTimer(seq uint64) {
	a.mu.Lock()
	if seq != a.timerSeq {
		// superseded by a newer fragment
		a.mu.Unlock()
		return
	}
	a.armed--
	a.flushTimer = nil
	piece := a.pending
	a.pending = ""
	a.mu.Unlock()

	a.emitPiece(piece)
}

// splitBoundaries cuts the buffer at sentence-final punctuation followed by
// whitespace, at a comma followed by whitespace and a capital letter, and at
// any line break. The last piece is returned as the new pending buffer —
// unless it ends in sentence-final punctuation, in which case the sentence
// is complete and it is emitted too.
func splitBoundaries(s string) (pieces []string, rest string) {
	rs := []rune(s)
	start := 0

	flushPiece := func(end int) {
		piece := strings.TrimSpace(string(rs[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
	}

	for i := 0; i < len(rs); i++ {
		r := rs[i]

		if r == '\n' || r == '\r' {
			flushPiece(i)
			start = i + 1
			continue
		}

		if isSentenceFinal(r) {
			j := i
			for j+1 < len(rs) && isSentenceFinal(rs[j+1]) {
				j++
			}
			if j+1 < len(rs) && unicode.IsSpace(rs[j+1]) {
				flushPiece(j + 1)
				start = j + 1
			}
			i = j
			continue
		}

		if r == ',' {
			j := i + 1
			for j < len(rs) && unicode.IsSpace(rs[j]) && rs[j] != '\n' {
				j++
			}
			if j > i+1 && j < len(rs) && unicode.IsUpper(rs[j]) {
				flushPiece(i + 1)
				start = j
				i = j - 1
			}
		}
	}

	rest = strings.TrimSpace(string(rs[start:]))
	if rest != "" && isSentenceFinal(rs[len(rs)-1]) {
		pieces = append(pieces, rest)
		rest = ""
	}
	return pieces, rest
}

func isSentenceFinal(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}
