package media

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays 16-bit PCM through the default output device. It is the
// playback scheduler's sink: WriteAudio appends to a pull buffer behind
// an oto player, Flush drops whatever has not reached the device yet.
type Speaker struct {
	ctx *oto.Context

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	player *oto.Player
	src    *speakerSource
	closed bool
}

// NewSpeaker opens the output device context and blocks until it is
// ready. Zero values take the model's speech rate, 24 kHz mono.
func NewSpeaker(sampleRate, channels int) (*Speaker, error) {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}

	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		// Small device buffer keeps barge-in latency low at the cost of
		// glitch headroom.
		BufferSize: 100 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &Speaker{ctx: ctx, buf: make([]byte, 0, sampleRate*4)}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// WriteAudio appends PCM to the pull buffer. The player is created on
// the first write so an idle session holds no device stream.
func (s *Speaker) WriteAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speaker is closed")
	}

	s.buf = append(s.buf, pcm...)
	if s.player == nil {
		src := &speakerSource{speaker: s}
		s.src = src
		s.player = s.ctx.NewPlayer(src)
		s.player.Play()
	}
	s.cond.Signal()
	return nil
}

// Flush empties the pull buffer and tears down the current player so
// queued audio stops immediately. The next write starts a fresh player.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	s.player = nil
	s.src = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		player.Pause()
		player.Reset()
		_ = player.Close()
	}
}

// Close releases the player. Safe to call more than once. The oto
// context itself is process-wide and stays open.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	player := s.player
	s.player = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	return nil
}

// speakerSource is the io.Reader one player pulls from. Each player
// gets its own source so a read parked across a Flush wakes up detached
// and ends instead of stealing audio from the replacement player.
type speakerSource struct {
	speaker *Speaker
}

func (src *speakerSource) Read(p []byte) (int, error) {
	s := src.speaker
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed && s.src == src {
		s.cond.Wait()
	}
	if s.src != src && !s.closed {
		return 0, io.EOF
	}
	if s.closed && len(s.buf) == 0 {
		// Silence lets the device drain without an underrun pop.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}
