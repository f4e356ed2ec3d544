package vision

import "image"

// Synthetic start glyph geometry.
const (
	glyphSize    = 48
	glyphPane    = 18 // 38% of the glyph
	glyphGap     = 2  // 6% of the glyph
	glyphBright  = 220
	glyphPadding = 2
)

// SyntheticStartGlyph draws the four-pane window logo: four light squares in
// a 2x2 grid on black, softened with a 3x3 blur and padded by two pixels.
func SyntheticStartGlyph() *image.Gray {
	raw := image.NewGray(image.Rect(0, 0, glyphSize, glyphSize))
	origins := []int{glyphGap, 2*glyphGap + glyphPane}
	for _, oy := range origins {
		for _, ox := range origins {
			for y := oy; y < oy+glyphPane; y++ {
				for x := ox; x < ox+glyphPane; x++ {
					raw.Pix[y*raw.Stride+x] = glyphBright
				}
			}
		}
	}

	blurred := blur121(raw)

	side := glyphSize + 2*glyphPadding
	out := image.NewGray(image.Rect(0, 0, side, side))
	for y := 0; y < glyphSize; y++ {
		copy(out.Pix[(y+glyphPadding)*out.Stride+glyphPadding:], blurred.Pix[y*blurred.Stride:y*blurred.Stride+glyphSize])
	}
	return out
}

// blur121 applies the separable [1 2 1]/4 kernel with replicated borders.
func blur121(g *image.Gray) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	at := func(src []int, x, y int) int {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return src[y*w+x]
	}

	src := make([]int, w*h)
	for i := range src {
		src[i] = int(g.Pix[(i/w)*g.Stride+i%w])
	}
	tmp := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tmp[y*w+x] = at(src, x-1, y) + 2*at(src, x, y) + at(src, x+1, y)
		}
	}
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(tmp, x, y-1) + 2*at(tmp, x, y) + at(tmp, x, y+1)
			out.Pix[y*out.Stride+x] = uint8((v + 8) / 16)
		}
	}
	return out
}
