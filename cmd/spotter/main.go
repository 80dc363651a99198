// Command spotter runs a live voice-and-vision session: it streams the
// microphone and the screen to the Gemini Live API, plays the model's
// speech, and renders transcripts, citations, and detection overlays to
// stdout. With --archive, finished turns are written to a SQLite
// archive for later review.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spotter-ai/spotter/internal/media"
	"github.com/spotter-ai/spotter/internal/store"
	"github.com/spotter-ai/spotter/pkg/core"
	"github.com/spotter-ai/spotter/pkg/core/live"
)

type options struct {
	apiKey          string
	model           string
	endpoint        string
	systemPrompt    string
	enableSearch    bool
	display         int
	frameIntervalMS int
	jpegQuality     int
	noFrames        bool
	noMic           bool
	archive         string
	listSessions    bool
	replay          string
	debug           bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.apiKey, "api-key", "", "Gemini API key (also reads GEMINI_API_KEY, then GOOGLE_API_KEY)")
	flag.StringVar(&opt.model, "model", "", "Live model name (default: models/gemini-2.0-flash-live-001)")
	flag.StringVar(&opt.endpoint, "endpoint", "", "Live API endpoint override (default: generativelanguage.googleapis.com)")
	flag.StringVar(&opt.systemPrompt, "system-prompt", "", "System instruction override")
	flag.BoolVar(&opt.enableSearch, "enable-search", true, "Enable search grounding for spoken answers (default: true)")
	flag.IntVar(&opt.display, "display", 0, "Display index to stream (default: 0)")
	flag.IntVar(&opt.frameIntervalMS, "frame-interval-ms", 250, "Milliseconds between screen frames (default: 250)")
	flag.IntVar(&opt.jpegQuality, "jpeg-quality", 80, "JPEG quality for screen frames, 1-100 (default: 80)")
	flag.BoolVar(&opt.noFrames, "no-frames", false, "Do not stream screen frames")
	flag.BoolVar(&opt.noMic, "no-mic", false, "Do not capture the microphone")
	flag.StringVar(&opt.archive, "archive", "", "SQLite archive path; records transcripts and detections when set")
	flag.BoolVar(&opt.listSessions, "list-sessions", false, "List archived sessions and exit (requires --archive)")
	flag.StringVar(&opt.replay, "replay", "", "Print one archived session by id and exit (requires --archive)")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging (state changes, mic levels, usage)")
	flag.Parse()

	logLevel := slog.LevelInfo
	if opt.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if opt.listSessions || opt.replay != "" {
		return runArchiveQuery(opt)
	}

	if strings.TrimSpace(opt.apiKey) == "" {
		opt.apiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if strings.TrimSpace(opt.apiKey) == "" {
		opt.apiKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	if strings.TrimSpace(opt.apiKey) == "" {
		fmt.Fprintln(os.Stderr, "--api-key is required (or set GEMINI_API_KEY / GOOGLE_API_KEY)")
		return 2
	}
	if opt.frameIntervalMS <= 0 {
		fmt.Fprintln(os.Stderr, "--frame-interval-ms must be > 0")
		return 2
	}
	if opt.jpegQuality < 1 || opt.jpegQuality > 100 {
		fmt.Fprintln(os.Stderr, "--jpeg-quality must be between 1 and 100")
		return 2
	}
	if opt.display < 0 {
		fmt.Fprintln(os.Stderr, "--display must be >= 0")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var arc *store.Store
	if strings.TrimSpace(opt.archive) != "" {
		var err error
		arc, err = store.Open(opt.archive)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open archive:", err)
			return 1
		}
		defer arc.Close()
	}

	speaker, err := media.NewSpeaker(0, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init speaker:", err)
		return 1
	}
	playback := live.NewPlayback(live.DefaultPlaybackConfig(), live.NewSystemClock(), speaker, logger)

	cfg := live.DefaultSessionConfig()
	cfg.APIKey = opt.apiKey
	cfg.Endpoint = opt.endpoint
	cfg.EnableSearch = opt.enableSearch
	if strings.TrimSpace(opt.model) != "" {
		cfg.Model = opt.model
	}
	if strings.TrimSpace(opt.systemPrompt) != "" {
		cfg.SystemInstruction = opt.systemPrompt
	}

	session, err := live.Open(ctx, cfg, live.Deps{Playback: playback, Logger: logger})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		if cerr, ok := core.AsError(err); ok {
			if msg := statusMessage(live.StatusForError(cerr)); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			if cerr.Type == core.ErrInvalidRequest {
				return 2
			}
		}
		return 1
	}

	var capture *live.Capture
	if !opt.noMic {
		mic := media.NewMicrophone(live.DefaultCaptureConfig().SampleRate, live.DefaultCaptureConfig().Channels)
		capture = live.NewCapture(live.DefaultCaptureConfig(), mic, session, logger)
		capture.OnEvent = func(ev live.Event) {
			if e, ok := ev.(*live.EnergyLevelEvent); ok {
				logger.Debug("mic level", "rms", e.RMS, "peak", e.Peak)
			}
		}
		if err := capture.Start(); err != nil {
			fmt.Fprintln(os.Stderr, "start microphone:", err)
			fmt.Fprintln(os.Stderr, statusMessage(live.StatusMediaDenied))
			_ = session.Close()
			return 1
		}
	}

	var sampler *live.Sampler
	if !opt.noFrames {
		smpCfg := live.DefaultSamplerConfig()
		smpCfg.Interval = time.Duration(opt.frameIntervalMS) * time.Millisecond
		smpCfg.JPEGQuality = opt.jpegQuality
		sampler = live.NewSampler(smpCfg, media.NewScreenSource(opt.display), session, logger)
		sampler.Start()
	}

	shutdown := func() {
		if sampler != nil {
			sampler.Stop()
		}
		if capture != nil {
			_ = capture.Stop()
		}
		_ = session.Close()
	}
	go func() {
		<-ctx.Done()
		shutdown()
	}()

	exit := renderEvents(session, arc, logger)
	shutdown()
	return exit
}

// renderEvents drains the session, writing the conversation to stdout
// and, when an archive is open, recording turns and detections.
func renderEvents(session *live.Session, arc *store.Store, logger *slog.Logger) int {
	var (
		archiveID      string
		lastTranscript string
	)

	for ev := range session.Events() {
		switch e := ev.(type) {
		case *live.OpenedEvent:
			fmt.Printf("[session] live model=%s\n", e.Model)
			if arc != nil {
				id, err := arc.BeginSession(e.Model)
				if err != nil {
					logger.Warn("archive session begin failed", "error", err)
				} else {
					archiveID = id
				}
			}

		case *live.TranscriptDeltaEvent:
			lastTranscript = e.Text
			fmt.Printf("[you] %s\n", e.Text)

		case *live.OutputTranscriptEvent:
			fmt.Printf("[model] %s\n", e.Delta)

		case *live.ReferencesReplacedEvent:
			for _, ref := range e.References {
				fmt.Printf("[source] %s <%s>\n", ref.Title, ref.URI)
			}

		case *live.DetectionsReplacedEvent:
			if len(e.Objects) == 0 {
				fmt.Println("[detections] cleared")
				break
			}
			for i, obj := range e.Objects {
				fmt.Printf("[detections] %d: %s x=%.2f y=%.2f w=%.2f h=%.2f\n",
					i, obj.Name, obj.Box.X, obj.Box.Y, obj.Box.Width, obj.Box.Height)
			}
			if arc != nil && archiveID != "" {
				if err := arc.RecordDetections(archiveID, e.Objects); err != nil {
					logger.Warn("archive detections failed", "error", err)
				}
			}

		case *live.ToolCallEvent:
			logger.Debug("tool call", "tool", e.Call.Name, "result", e.Result)

		case *live.PlaybackInterruptedEvent:
			fmt.Println("[playback] interrupted")

		case *live.TurnCompleteEvent:
			fmt.Println("[turn] complete")
			if arc != nil && archiveID != "" {
				if err := arc.AppendUtterance(archiveID, lastTranscript); err != nil {
					logger.Warn("archive utterance failed", "error", err)
				}
			}
			lastTranscript = ""

		case *live.StateChangedEvent:
			logger.Debug("state changed", "from", e.From.String(), "to", e.To.String())

		case *live.UsageEvent:
			logger.Debug("usage", "prompt", e.PromptTokens, "response", e.ResponseTokens, "total", e.TotalTokens)

		case *live.GoAwayEvent:
			fmt.Fprintf(os.Stderr, "service is ending the connection (time left %s)\n", e.TimeLeft)

		case *live.ErrorEvent:
			fmt.Fprintln(os.Stderr, "session error:", e.Err.Message)

		case *live.ClosedEvent:
			if e.Remote && e.Reason != "" {
				fmt.Printf("[session] closed by service: %s\n", e.Reason)
			} else {
				fmt.Println("[session] closed")
			}
		}
	}

	if arc != nil && archiveID != "" {
		if err := arc.EndSession(archiveID); err != nil {
			logger.Warn("archive session end failed", "error", err)
		}
	}

	if status := session.Status(); status != live.StatusReady {
		if msg := statusMessage(status); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		return 1
	}
	return 0
}

// runArchiveQuery serves the list and replay flags without opening a
// live session.
func runArchiveQuery(opt options) int {
	if strings.TrimSpace(opt.archive) == "" {
		fmt.Fprintln(os.Stderr, "--archive is required with --list-sessions / --replay")
		return 2
	}
	arc, err := store.Open(opt.archive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open archive:", err)
		return 1
	}
	defer arc.Close()

	if opt.replay != "" {
		log, err := arc.SessionLog(opt.replay)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			return 1
		}
		fmt.Printf("session %s model=%s started=%s\n",
			log.Session.ID, log.Session.Model, log.Session.StartedAt.Format(time.RFC3339))
		for _, u := range log.Utterances {
			fmt.Printf("[you] %s\n", u.Text)
		}
		for _, d := range log.Detections {
			fmt.Printf("[detections] %s x=%.2f y=%.2f w=%.2f h=%.2f\n",
				d.Name, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height)
		}
		return 0
	}

	sessions, err := arc.ListSessions(20)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list sessions:", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Println("(no archived sessions)")
		return 0
	}
	for _, s := range sessions {
		ended := "open"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %s  started=%s ended=%s\n",
			s.ID, s.Model, s.StartedAt.Format(time.RFC3339), ended)
	}
	return 0
}

// statusMessage maps a terminal status to a one-line hint for the user.
func statusMessage(status live.Status) string {
	switch status {
	case live.StatusBadCredential:
		return "credential rejected; check --api-key or GEMINI_API_KEY"
	case live.StatusQuota:
		return "quota exhausted; retry later or switch projects"
	case live.StatusMediaDenied:
		return "media device unavailable; check microphone and screen permissions"
	case live.StatusFailed:
		return "session failed; rerun with --debug for details"
	default:
		return ""
	}
}
