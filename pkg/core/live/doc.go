// Package live implements a real-time voice and vision session against the
// Gemini Live API.
//
// A session is conceptually "a phone call with eyes": microphone audio and
// periodic screen frames stream up one websocket connection while model
// speech, transcription, grounding citations, and tool calls stream back
// down it.
//
// # Architecture
//
// The live package provides several core components:
//
//   - Session: the orchestrator that owns the connection and demultiplexes
//     inbound frames
//   - Capture: assembles microphone samples into fixed blocks with
//     drop-oldest backpressure
//   - Sampler: encodes screen frames as JPEG on a fixed interval
//   - Playback: schedules decoded model speech against an output clock and
//     flushes on barge-in
//   - Dispatcher: answers tool calls by mutating the detection overlay set
//   - Transcript, References, Detections: per-turn conversation state
//
// # Data Flow
//
//	Mic    → Capture → Session → WebSocket → Live API
//	Screen → Sampler ────┘
//
//	Speaker ← Playback ← Session ← WebSocket
//	              │
//	              └── Interrupt (barge-in flush)
//
// Every inbound frame may carry several facets at once. The session runs a
// fixed checklist per frame: model audio, interruption, transcription,
// grounding, tool calls, and turn completion, in that order.
//
// # State Machine
//
// A session progresses through these channel states:
//
//	CLOSED → OPENING → OPEN → CLOSED
//
// and reports a UI-facing Status alongside them (READY, CONNECTING, LIVE,
// and the failure conditions MEDIA_DENIED, BAD_CREDENTIAL, QUOTA, FAILED).
// Sessions are single-use: a second Open creates an independent session.
//
// # Usage
//
//	cfg := live.DefaultSessionConfig()
//	cfg.APIKey = os.Getenv("GEMINI_API_KEY")
//
//	playback := live.NewPlayback(live.DefaultPlaybackConfig(), live.NewSystemClock(), speaker, logger)
//	session, err := live.Open(ctx, cfg, live.Deps{Playback: playback, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	capture := live.NewCapture(live.DefaultCaptureConfig(), mic, session, logger)
//	if err := capture.Start(); err != nil {
//	    return err
//	}
//	defer capture.Stop()
//
//	for event := range session.Events() {
//	    switch e := event.(type) {
//	    case *live.TranscriptDeltaEvent:
//	        fmt.Println("You:", e.Text)
//	    case *live.DetectionsReplacedEvent:
//	        overlay.Render(e.Objects)
//	    }
//	}
package live
