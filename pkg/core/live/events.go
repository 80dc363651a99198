package live

import (
	"github.com/spotter-ai/spotter/pkg/core"
)

// Event is the interface for all live session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// OpenedEvent is emitted once the setup handshake completes.
type OpenedEvent struct {
	Model string `json:"model"`
}

func (e *OpenedEvent) EventType() string { return "session.opened" }

// StateChangedEvent is emitted when the channel state changes.
type StateChangedEvent struct {
	From ChannelState `json:"from"`
	To   ChannelState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// TranscriptDeltaEvent is emitted as input transcription updates arrive.
// Text is the running transcript after the delta was appended.
type TranscriptDeltaEvent struct {
	Delta string `json:"delta"`
	Text  string `json:"text"`
}

func (e *TranscriptDeltaEvent) EventType() string { return "transcript.delta" }

// TranscriptClearedEvent is emitted when a completed turn resets the
// running transcript.
type TranscriptClearedEvent struct{}

func (e *TranscriptClearedEvent) EventType() string { return "transcript.cleared" }

// OutputTranscriptEvent carries transcription of the model's own speech.
type OutputTranscriptEvent struct {
	Delta string `json:"delta"`
}

func (e *OutputTranscriptEvent) EventType() string { return "transcript.output" }

// ReferencesReplacedEvent is emitted when grounding metadata replaces
// the reference list.
type ReferencesReplacedEvent struct {
	References []Reference `json:"references"`
}

func (e *ReferencesReplacedEvent) EventType() string { return "references.replaced" }

// DetectionsReplacedEvent is emitted when a tool call changes the
// detection overlay set.
type DetectionsReplacedEvent struct {
	Objects []DetectedObject `json:"objects"`
}

func (e *DetectionsReplacedEvent) EventType() string { return "detections.replaced" }

// PlaybackInterruptedEvent is emitted when the service signals barge-in
// and buffered speech is dropped.
type PlaybackInterruptedEvent struct{}

func (e *PlaybackInterruptedEvent) EventType() string { return "playback.interrupted" }

// TurnCompleteEvent is emitted when the model finishes a response turn.
type TurnCompleteEvent struct{}

func (e *TurnCompleteEvent) EventType() string { return "turn.complete" }

// ToolCallEvent is emitted after a tool call has been dispatched and
// its result submitted.
type ToolCallEvent struct {
	Call   ToolCall `json:"call"`
	Result string   `json:"result"`
}

func (e *ToolCallEvent) EventType() string { return "tool.call" }

// EnergyLevelEvent reports microphone levels for UI metering.
type EnergyLevelEvent struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

func (e *EnergyLevelEvent) EventType() string { return "energy.level" }

// UsageEvent reports token accounting from the service.
type UsageEvent struct {
	PromptTokens   int `json:"prompt_tokens"`
	ResponseTokens int `json:"response_tokens"`
	TotalTokens    int `json:"total_tokens"`
}

func (e *UsageEvent) EventType() string { return "usage" }

// GoAwayEvent warns that the server will drop the connection.
type GoAwayEvent struct {
	TimeLeft string `json:"time_left,omitempty"`
}

func (e *GoAwayEvent) EventType() string { return "go_away" }

// ErrorEvent carries a classified session error.
type ErrorEvent struct {
	Err *core.Error `json:"error"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// ClosedEvent is emitted when the session ends. Remote is true when the
// far end closed the connection rather than a local Close call.
type ClosedEvent struct {
	Remote bool   `json:"remote"`
	Reason string `json:"reason,omitempty"`
}

func (e *ClosedEvent) EventType() string { return "session.closed" }
