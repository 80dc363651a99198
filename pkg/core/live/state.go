package live

import (
	"strings"
	"sync"
)

// Transcript accumulates input transcription deltas for the current turn.
type Transcript struct {
	mu sync.Mutex
	b  strings.Builder
}

// Append adds a transcription delta and returns the running text.
func (t *Transcript) Append(delta string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(delta)
	return t.b.String()
}

// Text returns the running transcript.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.Reset()
}

// Reference is a web source cited by a grounded answer.
type Reference struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// References holds the citation list for the current turn. Grounding
// metadata replaces the list wholesale.
type References struct {
	mu   sync.Mutex
	list []Reference
}

// Replace swaps in a new citation list.
func (r *References) Replace(refs []Reference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = make([]Reference, len(refs))
	copy(r.list, refs)
}

// Snapshot returns a copy of the current citation list.
func (r *References) Snapshot() []Reference {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reference, len(r.list))
	copy(out, r.list)
	return out
}

// Clear empties the citation list.
func (r *References) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.list = nil
}
