// Package capture acquires full-resolution screenshots, persists them as JPEG
// and prunes old captures.
package capture

import (
	"context"
	"image"

	"github.com/kbinani/screenshot"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Grabber acquires one bitmap of the screen.
type Grabber interface {
	Grab(ctx context.Context) (*image.RGBA, error)
}

// DisplayGrabber captures a whole display through the OS screenshot API.
type DisplayGrabber struct {
	// Display is the zero-based display index. The primary display is 0.
	Display int
}

var _ Grabber = DisplayGrabber{}

// Grab captures the configured display.
func (g DisplayGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, dperrors.ErrNoDisplay
	}
	if g.Display < 0 || g.Display >= n {
		return nil, dperrors.Wrapf(dperrors.ErrNoDisplay, "display %d of %d", g.Display, n)
	}
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(g.Display))
	if err != nil {
		return nil, dperrors.Wrap(dperrors.ErrCaptureFailed, err.Error())
	}
	return img, nil
}

// DisplaySize returns the bounds size of display i, or false when no such
// display is active.
func DisplaySize(i int) (int, int, bool) {
	if i < 0 || i >= screenshot.NumActiveDisplays() {
		return 0, 0, false
	}
	b := screenshot.GetDisplayBounds(i)
	return b.Dx(), b.Dy(), true
}
