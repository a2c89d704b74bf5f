package vad

import (
	"fmt"
	"math"
	"sync"
)

// Gate classifies PCM chunks as voiced or silent using short-term energy.
// A hangover keeps the gate open for a few chunks after speech stops so
// trailing syllables are not clipped.
type Gate struct {
	threshold float64 // RMS threshold on normalized samples, 0..1
	hangover  int     // chunks the gate stays open after the last voiced one

	mu           sync.Mutex
	openFor      int
	totalChunks  uint64
	voicedChunks uint64
}

func NewGate(threshold float64, hangover int) (*Gate, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1), got %f", threshold)
	}
	if hangover < 0 {
		return nil, fmt.Errorf("hangover must be non-negative, got %d", hangover)
	}
	return &Gate{threshold: threshold, hangover: hangover}, nil
}

// DefaultGate returns a gate tuned for 16 kHz speech.
func DefaultGate() *Gate {
	g, _ := NewGate(0.01, 3)
	return g
}

// IsVoiced reports whether the chunk should be forwarded downstream.
func (g *Gate) IsVoiced(pcm []byte) bool {
	energy := RMS(pcm)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalChunks++
	if energy >= g.threshold {
		g.voicedChunks++
		g.openFor = g.hangover
		return true
	}
	if g.openFor > 0 {
		g.openFor--
		return true
	}
	return false
}

// RMS computes the root-mean-square energy of 16-bit little-endian PCM,
// normalized to 0..1.
func RMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := float64(int16(pcm[i]) | int16(pcm[i+1])<<8)
		sum += sample * sample
		n++
	}
	return math.Sqrt(sum/float64(n)) / 32768.0
}

// Stats reports gate counters for diagnostics.
type Stats struct {
	TotalChunks  uint64
	VoicedChunks uint64
}

func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{TotalChunks: g.totalChunks, VoicedChunks: g.voicedChunks}
}
