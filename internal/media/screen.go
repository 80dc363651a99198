package media

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/spotter-ai/spotter/pkg/core/live"
)

// ScreenSource grabs one display's contents for the frame sampler.
type ScreenSource struct {
	display int
}

// NewScreenSource creates a source over the given display index
// (0 is the primary display).
func NewScreenSource(display int) *ScreenSource {
	if display < 0 {
		display = 0
	}
	return &ScreenSource{display: display}
}

// Frame captures the configured display. While no display is active,
// for example before a desktop session is up, it reports not-ready so
// the sampler skips the tick quietly.
func (s *ScreenSource) Frame() (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, live.ErrFrameNotReady
	}
	if s.display >= n {
		return nil, fmt.Errorf("display %d out of range (0-%d)", s.display, n-1)
	}
	img, err := screenshot.CaptureDisplay(s.display)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", s.display, err)
	}
	return img, nil
}
