// Package vision locates UI glyphs on screenshots with multi-scale template
// correlation plus colour and shape validation. No learned model is involved.
package vision

import (
	"context"
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Metric identifies a normalized correlation measure.
type Metric string

// Metrics evaluated for every scale, in tie-break order.
const (
	MetricCCoeffNormed Metric = "ccoeff_normed"
	MetricCCorrNormed  Metric = "ccorr_normed"
)

// Match is the best template location found in a region.
// Center is in region coordinates.
type Match struct {
	Center     image.Point
	Width      int
	Height     int
	Confidence float64
	Scale      float64
	Metric     Metric
}

// Acceptance is the verdict of the threshold policy on a confidence.
type Acceptance int

// Acceptance verdicts.
const (
	Reject Acceptance = iota
	NeedsValidation
	Accept
)

// Thresholds holds the two-band acceptance policy.
type Thresholds struct {
	// High accepts a match without secondary checks.
	High float64
	// Floor rejects anything below it.
	Floor float64
}

// Classify applies the policy: >= High accepts, [Floor, High) needs the
// secondary checks, below Floor is rejected.
func (t Thresholds) Classify(confidence float64) Acceptance {
	switch {
	case confidence >= t.High:
		return Accept
	case confidence >= t.Floor:
		return NeedsValidation
	default:
		return Reject
	}
}

// Matcher runs template correlation across a ladder of scales.
type Matcher struct {
	scales      []float64
	concurrency int
}

// NewMatcher creates a Matcher over the given scale ladder.
func NewMatcher(scales []float64) *Matcher {
	return &Matcher{
		scales:      append([]float64(nil), scales...),
		concurrency: runtime.GOMAXPROCS(0),
	}
}

// Scales returns a copy of the scale ladder.
func (m *Matcher) Scales() []float64 {
	return append([]float64(nil), m.scales...)
}

// scaleResult holds the per-metric best of one scale.
type scaleResult struct {
	ok   bool
	best [2]Match
}

// Best returns the highest-confidence match of tpl inside region across all
// scales and metrics. Scales run concurrently but the reduction walks them in
// ladder order, then metric order, keeping the first of equal confidences, so
// the result equals a sequential scan. ok is false when no scaled template
// fits strictly inside the region.
func (m *Matcher) Best(ctx context.Context, tpl *image.Gray, region image.Image) (Match, bool, error) {
	target := toPlane(ToGray(region))
	ii := newIntegral(target)
	tb := tpl.Bounds()

	results := make([]scaleResult, len(m.scales))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.concurrency, 1))

	for i, s := range m.scales {
		w, h := ScaleDims(tb.Dx(), tb.Dy(), s)
		if w < 1 || h < 1 || w >= target.w || h >= target.h {
			continue
		}
		g.Go(func() error {
			scaled := toPlane(Resize(tpl, w, h))
			best, err := correlate(gctx, target, ii, scaled)
			if err != nil {
				return err
			}
			for k := range best {
				best[k].Scale = s
			}
			results[i] = scaleResult{ok: true, best: best}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Match{}, false, err
	}

	var (
		out   Match
		found bool
	)
	for _, r := range results {
		if !r.ok {
			continue
		}
		for _, cand := range r.best {
			if !found || cand.Confidence > out.Confidence {
				out, found = cand, true
			}
		}
	}
	return out, found, nil
}

// correlate slides tpl over target and returns the best CCOEFF_NORMED and
// CCORR_NORMED positions (in that order), first raster position winning ties.
func correlate(ctx context.Context, target *plane, ii *integral, tpl *plane) ([2]Match, error) {
	tw, th := tpl.w, tpl.h
	n := float64(tw * th)

	var sumT, sumT2 float64
	for _, v := range tpl.pix {
		sumT += float64(v)
		sumT2 += float64(v) * float64(v)
	}
	meanT := sumT / n
	varT := sumT2 - sumT*sumT/n

	best := [2]Match{
		{Confidence: -1, Metric: MetricCCoeffNormed, Width: tw, Height: th},
		{Confidence: -1, Metric: MetricCCorrNormed, Width: tw, Height: th},
	}

	for y := 0; y+th <= target.h; y++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}
		for x := 0; x+tw <= target.w; x++ {
			var dot float64
			for ty := 0; ty < th; ty++ {
				row := target.pix[(y+ty)*target.w+x : (y+ty)*target.w+x+tw]
				trow := tpl.pix[ty*tw : ty*tw+tw]
				var acc float32
				for k, v := range trow {
					acc += v * row[k]
				}
				dot += float64(acc)
			}
			sumI, sumI2 := ii.window(x, y, tw, th)

			ccoeff := 0.0
			if varI := sumI2 - sumI*sumI/n; varT > 1e-9 && varI > 1e-9 {
				ccoeff = (dot - meanT*sumI) / math.Sqrt(varT*varI)
			}
			ccorr := 0.0
			if sumT2 > 0 && sumI2 > 0 {
				ccorr = dot / math.Sqrt(sumT2*sumI2)
			}

			center := image.Pt(x+tw/2, y+th/2)
			if c := clamp01(ccoeff); c > best[0].Confidence {
				best[0].Confidence, best[0].Center = c, center
			}
			if c := clamp01(ccorr); c > best[1].Confidence {
				best[1].Confidence, best[1].Center = c, center
			}
		}
	}
	return best, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
