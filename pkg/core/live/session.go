package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spotter-ai/spotter/pkg/core"
	"github.com/spotter-ai/spotter/pkg/core/live/protocol"
)

// Deps are the collaborators a session needs. Playback is required and
// is owned by the session once passed: Close releases its clock and sink.
type Deps struct {
	Playback *Playback
	Logger   *slog.Logger
}

// Session is one duplex connection to the live service. It carries
// outbound microphone audio and image frames, and demultiplexes inbound
// speech, transcription, grounding, and tool traffic.
//
// A session is single-use: Open establishes it and Close ends it. A
// second Open creates a fully independent session; handles are never
// merged or reused.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	conn     *websocket.Conn
	playback *Playback

	transcript Transcript
	references References
	detections *Detections
	dispatcher *Dispatcher

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	mu     sync.Mutex
	state  ChannelState
	status Status
}

// Open dials the live endpoint, performs the setup handshake, and
// returns an open session. Failures are classified: a rejected
// credential, exhausted quota, and generic transport trouble come back
// as distinct error types.
func Open(ctx context.Context, cfg SessionConfig, deps Deps) (*Session, error) {
	def := DefaultSessionConfig()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.NewInvalidRequestErrorWithParam("api key must not be empty", "api_key")
	}
	if deps.Playback == nil {
		return nil, core.NewInvalidRequestErrorWithParam("playback must not be nil", "playback")
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = def.SystemInstruction
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.InputAudio.SampleRate == 0 {
		cfg.InputAudio = def.InputAudio
	}
	if cfg.OutputAudio.SampleRate == 0 {
		cfg.OutputAudio = def.OutputAudio
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		cfg:        cfg,
		logger:     logger,
		playback:   deps.Playback,
		detections: NewDetections(),
		events:     make(chan Event, cfg.EventBuffer),
		done:       make(chan struct{}),
		state:      ChannelClosed,
		status:     StatusReady,
	}
	s.dispatcher = NewDispatcher(s.detections, logger)
	s.dispatcher.OnChange = func(objs []DetectedObject) {
		s.emitEvent(&DetectionsReplacedEvent{Objects: objs})
	}

	wsURL, err := protocol.LiveURL(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, core.NewInvalidRequestErrorWithParam(err.Error(), "endpoint")
	}

	s.setState(ChannelOpening, StatusConnecting)

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		cerr := classifyDialError(resp, err)
		s.setState(ChannelClosed, StatusForError(cerr))
		return nil, cerr
	}
	s.conn = conn

	if err := s.writeJSON(buildSetup(cfg)); err != nil {
		_ = conn.Close()
		cerr := core.NewAPIError("send setup frame").WithCause(err)
		s.setState(ChannelClosed, StatusForError(cerr))
		return nil, cerr
	}

	// The service acknowledges setup before any media may flow. A
	// rejected key or exhausted quota usually arrives here as a close
	// frame carrying the reason text.
	_ = conn.SetReadDeadline(time.Now().Add(cfg.ConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		cerr := classifyTransportError(err)
		s.setState(ChannelClosed, StatusForError(cerr))
		return nil, cerr
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first protocol.ServerMessage
	if err := json.Unmarshal(payload, &first); err != nil {
		_ = conn.Close()
		cerr := core.NewAPIError("decode first frame").WithCause(err)
		s.setState(ChannelClosed, StatusForError(cerr))
		return nil, cerr
	}
	if first.SetupComplete == nil {
		_ = conn.Close()
		cerr := core.NewAPIError("connection opened without setup acknowledgement")
		s.setState(ChannelClosed, StatusForError(cerr))
		return nil, cerr
	}

	s.setState(ChannelOpen, StatusLive)
	s.emitEvent(&OpenedEvent{Model: cfg.Model})
	s.logger.Info("live session open", "model", cfg.Model)
	go s.readLoop()
	return s, nil
}

// buildSetup assembles the first client frame: audio-only responses,
// transcription both ways, the fixed persona, and the tool registry.
func buildSetup(cfg SessionConfig) protocol.SetupMessage {
	tools := []protocol.Tool{
		{FunctionDeclarations: Declarations()},
	}
	if cfg.EnableSearch {
		tools = append(tools, protocol.Tool{GoogleSearch: &protocol.GoogleSearch{}})
	}
	return protocol.SetupMessage{Setup: protocol.Setup{
		Model: cfg.Model,
		GenerationConfig: &protocol.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		SystemInstruction: &protocol.Content{
			Parts: []protocol.Part{{Text: cfg.SystemInstruction}},
		},
		Tools:                    tools,
		InputAudioTranscription:  &protocol.AudioTranscriptionConfig{},
		OutputAudioTranscription: &protocol.AudioTranscriptionConfig{},
	}}
}

// Events yields session events. The channel closes when the session
// ends. Emission never blocks the read loop; events beyond the buffer
// are dropped.
func (s *Session) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.events
}

// State returns the current channel state.
func (s *Session) State() ChannelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the UI-facing condition of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TranscriptText returns the running input transcript for the current turn.
func (s *Session) TranscriptText() string {
	return s.transcript.Text()
}

// References returns the citation list for the current turn.
func (s *Session) References() []Reference {
	return s.references.Snapshot()
}

// Detections returns the current overlay object list.
func (s *Session) Detections() []DetectedObject {
	return s.detections.Snapshot()
}

// SelectDetection marks the overlay object at index i.
func (s *Session) SelectDetection(i int) bool {
	return s.detections.Select(i)
}

// SelectedDetection returns the selected overlay index, if any.
func (s *Session) SelectedDetection() (int, bool) {
	return s.detections.Selected()
}

// SendAudio forwards one encoded audio chunk. A session that is not
// open drops the payload silently.
func (s *Session) SendAudio(p EncodedPayload) {
	s.sendMedia(p)
}

// SendImageFrame forwards one encoded video frame. A session that is
// not open drops the payload silently.
func (s *Session) SendImageFrame(p EncodedPayload) {
	s.sendMedia(p)
}

func (s *Session) sendMedia(p EncodedPayload) {
	if s.State() != ChannelOpen {
		return
	}
	msg := protocol.RealtimeInputMessage{RealtimeInput: protocol.RealtimeInput{
		MediaChunks: []protocol.MediaChunk{{MIMEType: p.MIMEType, Data: p.Data}},
	}}
	if err := s.writeJSON(msg); err != nil {
		s.logger.Warn("send media chunk failed", "mime", p.MIMEType, "error", err)
	}
}

// SendToolResult answers one tool call. A session that is not open
// drops the result silently.
func (s *Session) SendToolResult(id, name, result string) {
	if s.State() != ChannelOpen {
		return
	}
	msg := protocol.ToolResponseMessage{ToolResponse: protocol.ToolResponse{
		FunctionResponses: []protocol.FunctionResponse{{
			ID:       id,
			Name:     name,
			Response: map[string]any{"result": result},
		}},
	}}
	if err := s.writeJSON(msg); err != nil {
		s.logger.Warn("send tool result failed", "tool", name, "error", err)
	}
}

func (s *Session) writeJSON(v any) error {
	if s.closed.Load() {
		return fmt.Errorf("session is closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Close tears down the read loop, the connection, and playback.
// Idempotent and safe to call from any goroutine.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)
	defer func() { _ = s.playback.Close() }()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.failSession(core.NewAPIError("decode server frame").WithCause(err))
			return
		}
		s.handleServerMessage(&msg)
	}
}

// handleReadError ends the session. A locally-initiated close skips the
// recovery path; everything else is a remote close or transport fault.
func (s *Session) handleReadError(err error) {
	if s.closed.Load() {
		s.setState(ChannelClosed, StatusReady)
		s.emitEvent(&ClosedEvent{Remote: false})
		s.logger.Info("live session closed")
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) &&
		(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
		_ = s.conn.Close()
		s.setState(ChannelClosed, StatusReady)
		s.emitEvent(&ClosedEvent{Remote: true, Reason: closeErr.Text})
		s.logger.Info("live session closed by service", "reason", closeErr.Text)
		return
	}

	s.failSession(classifyTransportError(err))
}

// failSession tears down after a transport fault and surfaces the
// classified error followed by the closed event.
func (s *Session) failSession(cerr *core.Error) {
	_ = s.conn.Close()
	s.emitEvent(&ErrorEvent{Err: cerr})
	s.setState(ChannelClosed, StatusForError(cerr))
	s.emitEvent(&ClosedEvent{Remote: true, Reason: cerr.Message})
	s.logger.Error("live session failed", "type", string(cerr.Type), "error", cerr.Message)
}

// handleServerMessage demultiplexes one inbound frame. Facets are
// independent, not alternatives: a single frame may carry speech,
// transcription, tool calls, and turn signals together, so every check
// runs, in this order, on every frame.
func (s *Session) handleServerMessage(msg *protocol.ServerMessage) {
	if sc := msg.ServerContent; sc != nil {
		// 1. Model speech goes to the playback queue.
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				inline := part.InlineData
				if inline == nil || !strings.HasPrefix(inline.MIMEType, "audio/pcm") {
					continue
				}
				if err := s.playback.Enqueue(inline.Data); err != nil {
					s.logger.Warn("enqueue model audio failed", "error", err)
				}
			}
		}

		// 2. Barge-in stops playback immediately.
		if sc.Interrupted {
			s.playback.Interrupt()
			s.emitEvent(&PlaybackInterruptedEvent{})
		}

		// 3. Input transcription extends the running transcript.
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			text := s.transcript.Append(sc.InputTranscription.Text)
			s.emitEvent(&TranscriptDeltaEvent{Delta: sc.InputTranscription.Text, Text: text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.emitEvent(&OutputTranscriptEvent{Delta: sc.OutputTranscription.Text})
		}

		// 4. Grounding metadata replaces the reference list wholesale.
		if gm := sc.GroundingMetadata; gm != nil {
			refs := make([]Reference, 0, len(gm.GroundingChunks))
			for _, chunk := range gm.GroundingChunks {
				if chunk.Web == nil {
					continue
				}
				refs = append(refs, Reference{Title: chunk.Web.Title, URI: chunk.Web.URI})
			}
			s.references.Replace(refs)
			s.emitEvent(&ReferencesReplacedEvent{References: refs})
		}
	}

	// 5. Tool calls dispatch sequentially; each result is submitted
	// before the next call in the same frame runs.
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			call := ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args}
			result := s.dispatcher.Dispatch(call)
			s.SendToolResult(call.ID, call.Name, result)
			s.emitEvent(&ToolCallEvent{Call: call, Result: result})
		}
	}

	// Dispatch is synchronous within this loop, so by the time a
	// cancellation arrives the named calls have already been answered.
	if cancel := msg.ToolCallCancellation; cancel != nil {
		s.logger.Info("tool calls cancelled by service", "ids", cancel.IDs)
	}

	if ga := msg.GoAway; ga != nil {
		s.emitEvent(&GoAwayEvent{TimeLeft: ga.TimeLeft})
	}

	if um := msg.UsageMetadata; um != nil {
		s.emitEvent(&UsageEvent{
			PromptTokens:   um.PromptTokenCount,
			ResponseTokens: um.ResponseTokenCount,
			TotalTokens:    um.TotalTokenCount,
		})
	}

	// 6. Turn completion resets per-turn state last, so content riding
	// the same frame lands before the clear.
	if msg.ServerContent != nil && msg.ServerContent.TurnComplete {
		s.transcript.Clear()
		s.references.Clear()
		s.emitEvent(&TranscriptClearedEvent{})
		s.emitEvent(&TurnCompleteEvent{})
	}
}

func (s *Session) setState(to ChannelState, status Status) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.status = status
	s.mu.Unlock()

	if from != to {
		s.emitEvent(&StateChangedEvent{From: from, To: to})
	}
}

func (s *Session) emitEvent(event Event) {
	if event == nil {
		return
	}
	select {
	case s.events <- event:
	default:
		// Avoid deadlocking the read loop if the consumer stops draining.
	}
}

// StatusForError maps a classified error to the status it implies.
func StatusForError(err *core.Error) Status {
	switch err.Type {
	case core.ErrAuthentication:
		return StatusBadCredential
	case core.ErrRateLimit:
		return StatusQuota
	case core.ErrMedia:
		return StatusMediaDenied
	default:
		return StatusFailed
	}
}

// classifyDialError prefers the structured HTTP status when the dial
// got far enough to receive one.
func classifyDialError(resp *http.Response, err error) *core.Error {
	if resp != nil {
		return (&core.Error{
			Type:    core.ClassifyStatusCode(resp.StatusCode),
			Message: fmt.Sprintf("websocket dial failed (status %d)", resp.StatusCode),
		}).WithCause(err)
	}
	return classifyTransportError(err)
}

// classifyTransportError falls back to close-reason text matching; the
// service reports most setup rejections as free text in a close frame.
func classifyTransportError(err error) *core.Error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		msg := strings.TrimSpace(closeErr.Text)
		if msg == "" {
			msg = closeErr.Error()
		}
		return (&core.Error{
			Type:    core.ClassifyMessage(msg),
			Message: msg,
			Code:    fmt.Sprintf("ws_close_%d", closeErr.Code),
		}).WithCause(err)
	}
	return (&core.Error{
		Type:    core.ClassifyMessage(err.Error()),
		Message: err.Error(),
	}).WithCause(err)
}
