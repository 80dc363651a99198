package live

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spotter-ai/spotter/pkg/core/live/protocol"
)

// Tool names the model may invoke.
const (
	ToolDisplayDetections = "display-detections"
	ToolClearDetections   = "clear-detections"
)

// BoundingBox locates an object in normalized frame coordinates. Values
// are expected in 0..1 but are not enforced.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedObject is one named box reported by the model.
type DetectedObject struct {
	Name string      `json:"name"`
	Box  BoundingBox `json:"box"`
}

// ToolCall is one function invocation received from the service.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Detections holds the current overlay set and an optional selection.
// It is mutated only by tool dispatch and explicit selection calls.
type Detections struct {
	mu       sync.Mutex
	objects  []DetectedObject
	selected int
}

// NewDetections returns an empty detection set with no selection.
func NewDetections() *Detections {
	return &Detections{selected: -1}
}

// Replace swaps in a new object list wholesale. A selection that no
// longer points at a valid index is dropped.
func (d *Detections) Replace(objects []DetectedObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects = make([]DetectedObject, len(objects))
	copy(d.objects, objects)
	if d.selected >= len(d.objects) {
		d.selected = -1
	}
}

// Clear empties the set and drops the selection.
func (d *Detections) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects = nil
	d.selected = -1
}

// Select marks the object at index i. Returns false when i is out of
// range, leaving the selection unchanged.
func (d *Detections) Select(i int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.objects) {
		return false
	}
	d.selected = i
	return true
}

// Snapshot returns a copy of the current object list.
func (d *Detections) Snapshot() []DetectedObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DetectedObject, len(d.objects))
	copy(out, d.objects)
	return out
}

// Selected returns the selected index, if any.
func (d *Detections) Selected() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected < 0 {
		return 0, false
	}
	return d.selected, true
}

// Dispatcher executes tool calls against the detection set. Every call
// produces exactly one result string so the remote turn never stalls.
type Dispatcher struct {
	detections *Detections
	logger     *slog.Logger

	// OnChange, when set, observes the detection set after each mutation.
	OnChange func([]DetectedObject)
}

// NewDispatcher creates a dispatcher over the given detection set.
func NewDispatcher(detections *Detections, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{detections: detections, logger: logger}
}

type displayDetectionsArgs struct {
	Objects []DetectedObject `json:"objects"`
}

// Dispatch runs one tool call synchronously and returns its result.
// Unknown names and malformed arguments are answered with an
// explanatory result rather than silence.
func (d *Dispatcher) Dispatch(call ToolCall) string {
	switch call.Name {
	case ToolDisplayDetections:
		var args displayDetectionsArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			d.logger.Warn("invalid tool arguments", "tool", call.Name, "error", err)
			return fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
		}
		d.detections.Replace(args.Objects)
		d.changed()
		return fmt.Sprintf("displaying %d detections", len(args.Objects))

	case ToolClearDetections:
		d.detections.Clear()
		d.changed()
		return "cleared detections"

	default:
		d.logger.Warn("unknown tool call", "tool", call.Name, "id", call.ID)
		return fmt.Sprintf("tool %q is not registered with this client", call.Name)
	}
}

func (d *Dispatcher) changed() {
	if d.OnChange != nil {
		d.OnChange(d.detections.Snapshot())
	}
}

// Declarations returns the function declarations announced at setup.
func Declarations() []protocol.FunctionDeclaration {
	box := &protocol.Schema{
		Type:        "object",
		Description: "Normalized bounding box with 0..1 coordinates.",
		Properties: map[string]*protocol.Schema{
			"x":      {Type: "number"},
			"y":      {Type: "number"},
			"width":  {Type: "number"},
			"height": {Type: "number"},
		},
	}
	return []protocol.FunctionDeclaration{
		{
			Name:        ToolDisplayDetections,
			Description: "Overlay bounding boxes for objects located in the camera view.",
			Parameters: &protocol.Schema{
				Type: "object",
				Properties: map[string]*protocol.Schema{
					"objects": {
						Type: "array",
						Items: &protocol.Schema{
							Type: "object",
							Properties: map[string]*protocol.Schema{
								"name": {Type: "string", Description: "Label for the detected object."},
								"box":  box,
							},
							Required: []string{"name"},
						},
					},
				},
				Required: []string{"objects"},
			},
		},
		{
			Name:        ToolClearDetections,
			Description: "Remove every bounding box overlay from the view.",
		},
	}
}
