package vision

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Colour check bounds on 0..255 HSV scales.
const (
	maxMeanSaturation = 60.0
	minMeanValue      = 120.0
	maxMeanValue      = 200.0
	minValueStd       = 20.0
)

// Shape check parameters.
const (
	adaptiveBlock   = 11
	adaptiveC       = 2.0
	minBlobRatio    = 0.15
	maxBlobRatio    = 0.5
	minBlobAspect   = 0.5
	maxBlobAspect   = 2.0
	minBlobs        = 3
	gridBlobs       = 4
	gridGapTolerate = 0.3

	// flatRange is the largest local max-min spread treated as a flat area.
	flatRange = 8
)

// ColourStats reports the measurements behind CheckColour.
type ColourStats struct {
	MeanSaturation float64
	MeanValue      float64
	ValueStd       float64
}

// CheckColour accepts a near-neutral, mid-bright patch with visible contrast:
// mean saturation <= 60, mean value within [120, 200], value std >= 20.
func CheckColour(patch image.Image) (bool, ColourStats) {
	b := patch.Bounds()
	if b.Empty() {
		return false, ColourStats{}
	}
	sats := make([]float64, 0, b.Dx()*b.Dy())
	vals := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(patch.At(x, y)).(color.NRGBA)
			s, v := hsv(c.R, c.G, c.B)
			sats = append(sats, s)
			vals = append(vals, v)
		}
	}
	meanS, _ := meanStd(sats)
	meanV, stdV := meanStd(vals)
	st := ColourStats{MeanSaturation: meanS, MeanValue: meanV, ValueStd: stdV}

	ok := meanS <= maxMeanSaturation &&
		meanV >= minMeanValue && meanV <= maxMeanValue &&
		stdV >= minValueStd
	return ok, st
}

// Blob is a connected foreground component of a binarized patch.
type Blob struct {
	Bounds image.Rectangle
	Area   int
}

func (b Blob) center() (float64, float64) {
	return float64(b.Bounds.Min.X+b.Bounds.Max.X) / 2, float64(b.Bounds.Min.Y+b.Bounds.Max.Y) / 2
}

// ShapeStats reports the blobs that qualified as panes.
type ShapeStats struct {
	Panes    []Blob
	Inverted bool
	Aligned  bool
}

// CheckShape looks for the four-pane window glyph: at least three near-square
// blobs of plausible size. With four or more, Aligned reports whether they
// form a 2x2 grid; it does not change the verdict.
func CheckShape(patch image.Image) (bool, ShapeStats) {
	g := ToGray(patch)
	p := toPlane(g)
	if p.w == 0 || p.h == 0 {
		return false, ShapeStats{}
	}

	var mean float64
	for _, v := range p.pix {
		mean += float64(v)
	}
	mean /= float64(len(p.pix))
	inverted := mean > 128

	bin := adaptiveThreshold(p, adaptiveBlock, adaptiveC, mean, inverted)
	bin = dilate(bin, p.w, p.h)
	bin = erode(bin, p.w, p.h)
	bin = erode(bin, p.w, p.h)
	bin = dilate(bin, p.w, p.h)

	m := min(p.w, p.h)
	minSide := int(float64(m) * minBlobRatio)
	maxSide := int(float64(m) * maxBlobRatio)

	var panes []Blob
	for _, blob := range components(bin, p.w, p.h) {
		if blob.Area < minSide*minSide || blob.Area > maxSide*maxSide {
			continue
		}
		aspect := float64(blob.Bounds.Dx()) / float64(max(blob.Bounds.Dy(), 1))
		if aspect < minBlobAspect || aspect > maxBlobAspect {
			continue
		}
		panes = append(panes, blob)
	}

	st := ShapeStats{Panes: panes, Inverted: inverted}
	if len(panes) >= gridBlobs {
		st.Aligned = gridAligned(panes, p.h)
	}
	return len(panes) >= minBlobs, st
}

// gridAligned sorts pane centres top-to-bottom then left-to-right and checks
// that the row gap matches the column gap of the first row.
func gridAligned(panes []Blob, patchHeight int) bool {
	type pt struct{ x, y float64 }
	centers := make([]pt, len(panes))
	for i, b := range panes {
		centers[i].x, centers[i].y = b.center()
	}
	sort.SliceStable(centers, func(i, j int) bool {
		if centers[i].y != centers[j].y {
			return centers[i].y < centers[j].y
		}
		return centers[i].x < centers[j].x
	})
	vertical := math.Abs(centers[0].y - centers[2].y)
	horizontal := math.Abs(centers[0].x - centers[1].x)
	return math.Abs(vertical-horizontal) < float64(patchHeight)*gridGapTolerate
}

// adaptiveThreshold binarizes p against a gaussian-weighted local mean minus c.
// Foreground is 1. When invert is set the comparison is flipped. Pixels whose
// block has no real contrast are classified against the patch mean instead,
// so a flat background never turns into a blob.
func adaptiveThreshold(p *plane, block int, c, patchMean float64, invert bool) []uint8 {
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	blurred := gaussianBlur(p, block, sigma)
	spread := localRange(p, block)
	out := make([]uint8, len(p.pix))
	for i, v := range p.pix {
		var fg bool
		if spread[i] <= flatRange {
			fg = float64(v) > patchMean
		} else {
			fg = float64(v) > float64(blurred[i])-c
		}
		if fg != invert {
			out[i] = 1
		}
	}
	return out
}

// localRange returns max-min over the size x size window around each pixel,
// clipped to the plane.
func localRange(p *plane, size int) []float32 {
	half := size / 2
	rowMax := make([]float32, len(p.pix))
	rowMin := make([]float32, len(p.pix))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			hi, lo := p.at(x, y), p.at(x, y)
			for xx := max(x-half, 0); xx <= min(x+half, p.w-1); xx++ {
				v := p.at(xx, y)
				hi, lo = max(hi, v), min(lo, v)
			}
			rowMax[y*p.w+x], rowMin[y*p.w+x] = hi, lo
		}
	}
	out := make([]float32, len(p.pix))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			hi, lo := rowMax[y*p.w+x], rowMin[y*p.w+x]
			for yy := max(y-half, 0); yy <= min(y+half, p.h-1); yy++ {
				hi, lo = max(hi, rowMax[yy*p.w+x]), min(lo, rowMin[yy*p.w+x])
			}
			out[y*p.w+x] = hi - lo
		}
	}
	return out
}

// gaussianBlur is a separable blur with replicated borders.
func gaussianBlur(p *plane, size int, sigma float64) []float32 {
	half := size / 2
	kernel := make([]float64, size)
	var total float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		total += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= total
	}

	clampi := func(v, hi int) int { return min(max(v, 0), hi-1) }

	tmp := make([]float32, len(p.pix))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for k, wgt := range kernel {
				acc += wgt * float64(p.at(clampi(x+k-half, p.w), y))
			}
			tmp[y*p.w+x] = float32(acc)
		}
	}
	out := make([]float32, len(p.pix))
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			var acc float64
			for k, wgt := range kernel {
				acc += wgt * float64(tmp[clampi(y+k-half, p.h)*p.w+x])
			}
			out[y*p.w+x] = float32(acc)
		}
	}
	return out
}

// dilate applies a 2x2 max filter anchored at the bottom-right cell.
func dilate(bin []uint8, w, h int) []uint8 {
	out := make([]uint8, len(bin))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			for dy := -1; dy <= 0; dy++ {
				for dx := -1; dx <= 0; dx++ {
					xx, yy := x+dx, y+dy
					if xx >= 0 && yy >= 0 && bin[yy*w+xx] == 1 {
						v = 1
					}
				}
			}
			out[y*w+x] = v
		}
	}
	return out
}

// erode applies a 2x2 min filter anchored at the bottom-right cell.
// Out-of-bounds cells do not erode.
func erode(bin []uint8, w, h int) []uint8 {
	out := make([]uint8, len(bin))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(1)
			for dy := -1; dy <= 0; dy++ {
				for dx := -1; dx <= 0; dx++ {
					xx, yy := x+dx, y+dy
					if xx >= 0 && yy >= 0 && bin[yy*w+xx] == 0 {
						v = 0
					}
				}
			}
			out[y*w+x] = v
		}
	}
	return out
}

// components labels 8-connected foreground blobs in raster order.
func components(bin []uint8, w, h int) []Blob {
	seen := make([]bool, len(bin))
	var blobs []Blob
	stack := make([]int, 0, 64)

	for start, v := range bin {
		if v == 0 || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		sx, sy := start%w, start/w
		r := image.Rect(sx, sy, sx+1, sy+1)
		area := 0

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			area++
			r = r.Union(image.Rect(x, y, x+1, y+1))

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= w || yy >= h {
						continue
					}
					j := yy*w + xx
					if bin[j] == 1 && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		blobs = append(blobs, Blob{Bounds: r, Area: area})
	}
	return blobs
}
