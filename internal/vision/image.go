package vision

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// plane is a single-channel float32 intensity image in raster order.
type plane struct {
	w, h int
	pix  []float32
}

func (p *plane) at(x, y int) float32 {
	return p.pix[y*p.w+x]
}

// luma converts 8-bit RGB to intensity with the BT.601 weights.
func luma(r, g, b uint8) float32 {
	return 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
}

// ToGray converts img to an 8-bit grayscale image anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < b.Dx(); x++ {
				i := x * 4
				out.Pix[y*out.Stride+x] = uint8(luma(row[i], row[i+1], row[i+2]) + 0.5)
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.Pix[y*out.Stride+x] = uint8(luma(c.R, c.G, c.B) + 0.5)
			}
		}
	}
	return out
}

func toPlane(g *image.Gray) *plane {
	b := g.Bounds()
	p := &plane{w: b.Dx(), h: b.Dy(), pix: make([]float32, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float32(row[x])
		}
	}
	return p
}

// Resize scales g to w x h with bilinear interpolation.
func Resize(g *image.Gray, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
	return out
}

// ScaleDims returns the dimensions of a w x h image scaled by s, truncated
// toward zero.
func ScaleDims(w, h int, s float64) (int, int) {
	return int(float64(w) * s), int(float64(h) * s)
}

// FitWithin downscales g so that neither side exceeds maxDim. Images that
// already fit are returned unchanged.
func FitWithin(g *image.Gray, maxDim int) *image.Gray {
	b := g.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= maxDim {
		return g
	}
	s := float64(maxDim) / float64(longest)
	w, h := ScaleDims(b.Dx(), b.Dy(), s)
	return Resize(g, max(w, 1), max(h, 1))
}

// Crop copies r out of img into a new RGBA image anchored at the origin.
// r is clamped to img's bounds; an empty intersection yields nil.
func Crop(img image.Image, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

// MarginRect returns the rectangle centred on (cx, cy) covering a w x h
// extent grown by margin (0.35 grows it by 35%).
func MarginRect(cx, cy, w, h int, margin float64) image.Rectangle {
	halfW := int(float64(w) * (1 + margin) / 2)
	halfH := int(float64(h) * (1 + margin) / 2)
	return image.Rect(cx-halfW, cy-halfH, cx+halfW, cy+halfH)
}

// TaskbarRegion returns the bottom strip of bounds where taskbar glyphs live:
// max(6% of the height, 70px) tall, full width.
func TaskbarRegion(bounds image.Rectangle) image.Rectangle {
	h := max(int(float64(bounds.Dy())*0.06), 70)
	h = min(h, bounds.Dy())
	return image.Rect(bounds.Min.X, bounds.Max.Y-h, bounds.Max.X, bounds.Max.Y)
}

// integral holds summed-area tables of values and squared values with a
// one-pixel zero border, so window sums are four lookups.
type integral struct {
	w    int
	sum  []float64
	sum2 []float64
}

func newIntegral(p *plane) *integral {
	w := p.w + 1
	ii := &integral{w: w, sum: make([]float64, w*(p.h+1)), sum2: make([]float64, w*(p.h+1))}
	for y := 1; y <= p.h; y++ {
		var rowSum, rowSum2 float64
		for x := 1; x <= p.w; x++ {
			v := float64(p.pix[(y-1)*p.w+x-1])
			rowSum += v
			rowSum2 += v * v
			ii.sum[y*w+x] = ii.sum[(y-1)*w+x] + rowSum
			ii.sum2[y*w+x] = ii.sum2[(y-1)*w+x] + rowSum2
		}
	}
	return ii
}

// window returns the sum and squared sum over [x, x+tw) x [y, y+th).
func (ii *integral) window(x, y, tw, th int) (float64, float64) {
	a, b := y*ii.w+x, y*ii.w+x+tw
	c, d := (y+th)*ii.w+x, (y+th)*ii.w+x+tw
	return ii.sum[d] - ii.sum[b] - ii.sum[c] + ii.sum[a],
		ii.sum2[d] - ii.sum2[b] - ii.sum2[c] + ii.sum2[a]
}

// hsv converts 8-bit RGB to HSV with S and V on a 0..255 scale.
func hsv(r, g, b uint8) (s, v float64) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	v = float64(maxC)
	if maxC == 0 {
		return 0, v
	}
	s = float64(maxC-minC) * 255 / float64(maxC)
	return s, v
}

// meanStd returns the mean and population standard deviation of xs.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var acc float64
	for _, x := range xs {
		d := x - mean
		acc += d * d
	}
	return mean, math.Sqrt(acc / float64(len(xs)))
}
