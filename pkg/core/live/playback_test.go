package live

import (
	"bytes"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable output clock for scheduling tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

// recordSink captures sink calls for assertions.
type recordSink struct {
	mu      sync.Mutex
	writes  [][]byte
	flushes int
	closes  int
}

func (s *recordSink) WriteAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.writes = append(s.writes, buf)
	return nil
}

func (s *recordSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *recordSink) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

func (s *recordSink) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *recordSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func cursorOf(p *Playback) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// chunkOfMs builds a transport chunk of silence lasting ms at 24 kHz mono.
func chunkOfMs(ms int) string {
	cfg := DefaultAudioConfig()
	return EncodeTransport(make([]byte, cfg.BytesForDurationMs(ms)))
}

func newTestPlayback() (*Playback, *fakeClock, *recordSink) {
	clock := &fakeClock{}
	sink := &recordSink{}
	p := NewPlayback(DefaultPlaybackConfig(), clock, sink, nil)
	return p, clock, sink
}

func TestPlayback_SchedulesBackToBack(t *testing.T) {
	p, _, sink := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(100)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := p.Enqueue(chunkOfMs(50)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Second chunk queues behind the first: cursor is the sum of both.
	if got := cursorOf(p); got != 150*time.Millisecond {
		t.Errorf("cursor = %v, want 150ms", got)
	}
	if got := p.Live(); got != 2 {
		t.Errorf("Live() = %d, want 2", got)
	}
	if got := sink.writeCount(); got != 2 {
		t.Errorf("sink writes = %d, want 2", got)
	}
	if got := p.Buffered(); got != 150*time.Millisecond {
		t.Errorf("Buffered() = %v, want 150ms", got)
	}
}

func TestPlayback_LateArrivalStartsAtNow(t *testing.T) {
	p, clock, _ := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(100)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// The queue drained 200ms ago; the next chunk starts at the clock,
	// not at the stale cursor.
	clock.Advance(300 * time.Millisecond)
	if err := p.Enqueue(chunkOfMs(50)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if got := cursorOf(p); got != 350*time.Millisecond {
		t.Errorf("cursor = %v, want 350ms (300ms clock + 50ms chunk)", got)
	}
}

func TestPlayback_MidPlaybackArrivalQueuesBehindTail(t *testing.T) {
	p, clock, _ := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(100)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Clock is mid-chunk; the new chunk must not overlap the tail.
	clock.Advance(40 * time.Millisecond)
	if err := p.Enqueue(chunkOfMs(60)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if got := cursorOf(p); got != 160*time.Millisecond {
		t.Errorf("cursor = %v, want 160ms (100ms tail + 60ms chunk)", got)
	}
}

func TestPlayback_InterruptResetsCursor(t *testing.T) {
	p, clock, sink := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(1000)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	clock.Advance(100 * time.Millisecond)

	p.Interrupt()

	if got := p.Live(); got != 0 {
		t.Errorf("Live() after interrupt = %d, want 0", got)
	}
	if got := sink.flushCount(); got != 1 {
		t.Errorf("sink flushes = %d, want 1", got)
	}
	if got := cursorOf(p); got != 0 {
		t.Errorf("cursor after interrupt = %v, want 0", got)
	}

	// A chunk enqueued after the interrupt schedules from the clock, not
	// from the abandoned one-second tail.
	if err := p.Enqueue(chunkOfMs(50)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := cursorOf(p); got != 150*time.Millisecond {
		t.Errorf("cursor = %v, want 150ms (100ms clock + 50ms chunk)", got)
	}
}

func TestPlayback_WindowExpiresFromLiveSet(t *testing.T) {
	p, _, _ := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(1)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for p.Live() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Live() = %d after 1s, want 0", p.Live())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPlayback_EnqueueMalformed(t *testing.T) {
	p, _, sink := newTestPlayback()

	if err := p.Enqueue("not!!base64"); err == nil {
		t.Error("expected error for malformed transport text, got nil")
	}
	if got := sink.writeCount(); got != 0 {
		t.Errorf("sink writes = %d, want 0", got)
	}
	if got := cursorOf(p); got != 0 {
		t.Errorf("cursor = %v, want 0", got)
	}
}

func TestPlayback_EmptyChunkIsNoOp(t *testing.T) {
	p, _, sink := newTestPlayback()

	if err := p.Enqueue(""); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if got := sink.writeCount(); got != 0 {
		t.Errorf("sink writes = %d, want 0", got)
	}
}

func TestPlayback_WritesArriveInOrder(t *testing.T) {
	p, _, sink := newTestPlayback()

	first := []byte{1, 1, 2, 2}
	second := []byte{3, 3, 4, 4}
	if err := p.Enqueue(EncodeTransport(first)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := p.Enqueue(EncodeTransport(second)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 2 {
		t.Fatalf("sink writes = %d, want 2", len(sink.writes))
	}
	if !bytes.Equal(sink.writes[0], first) || !bytes.Equal(sink.writes[1], second) {
		t.Errorf("writes out of order: %v then %v", sink.writes[0], sink.writes[1])
	}
}

func TestPlayback_CloseIdempotent(t *testing.T) {
	p, _, sink := newTestPlayback()

	if err := p.Enqueue(chunkOfMs(100)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if got := sink.closeCount(); got != 1 {
		t.Errorf("sink closes = %d, want 1", got)
	}

	// Enqueue after close is quiet and writes nothing.
	before := sink.writeCount()
	if err := p.Enqueue(chunkOfMs(10)); err != nil {
		t.Fatalf("Enqueue() after close error = %v", err)
	}
	if got := sink.writeCount(); got != before {
		t.Errorf("sink writes after close = %d, want %d", got, before)
	}
	if got := p.Buffered(); got != 0 {
		t.Errorf("Buffered() after close = %v, want 0", got)
	}
}
