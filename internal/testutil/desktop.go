package testutil

import (
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/mrz1836/deskpilot/internal/vision"
)

// DesktopStartX and DesktopStartY are where Desktop pastes the start glyph.
// The glyph centre lands at (DesktopStartX+26, DesktopStartY+26).
const (
	DesktopStartX = 80
	DesktopStartY = 540
)

// Desktop returns a deterministic 800x600 noisy grey screen with the
// synthetic start glyph in the taskbar band.
func Desktop() *image.RGBA {
	const seed = 11
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // deterministic test noise
	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 800; x++ {
			v := uint8(20 + r.IntN(40))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	PasteGray(img, vision.SyntheticStartGlyph(), DesktopStartX, DesktopStartY)
	return img
}
