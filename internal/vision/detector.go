package vision

import (
	"context"
	"image"
	_ "image/png" // register the PNG decoder for reference glyphs
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/metrics"
)

// Element describes one detectable glyph.
type Element struct {
	Key      string
	Name     string
	Keywords []string
	Asset    string
}

// Element keys.
const (
	ElementStart    = "start"
	ElementEdge     = "edge"
	ElementExplorer = "explorer"
	ElementSearch   = "search"
)

// elements is the dispatch table. Queries are matched in this order and the
// first entry with a keyword contained in the query wins.
var elements = []Element{
	{
		Key:      ElementStart,
		Name:     "Windows Start button",
		Keywords: []string{"start button", "start menu", "windows start"},
		Asset:    "start_button.png",
	},
	{
		Key:      ElementEdge,
		Name:     "Edge Browser",
		Keywords: []string{"microsoft edge", "edge", "browser"},
		Asset:    "EdgeBrowser.png",
	},
	{
		Key:      ElementExplorer,
		Name:     "File Explorer",
		Keywords: []string{"file explorer", "explorer", "folders", "folder"},
		Asset:    "Folders.png",
	},
	{
		Key:      ElementSearch,
		Name:     "Search Bar",
		Keywords: []string{"search bar", "search"},
		Asset:    "SearchTaskBar.png",
	},
}

// Elements returns the dispatch table in match order.
func Elements() []Element {
	out := make([]Element, len(elements))
	copy(out, elements)
	return out
}

// Resolve maps a free-form query to a known element.
func Resolve(query string) (Element, bool) {
	q := cases.Fold().String(strings.TrimSpace(query))
	if q == "" {
		return Element{}, false
	}
	for _, el := range elements {
		for _, kw := range el.Keywords {
			if strings.Contains(q, kw) {
				return el, true
			}
		}
	}
	return Element{}, false
}

// Detector locates known UI elements and caches the last result per element.
type Detector struct {
	matcher    *Matcher
	thresholds Thresholds
	templates  map[string]*image.Gray
	logger     zerolog.Logger
	metrics    metrics.Metrics
	assetsDir  string
	overrides  map[string]*image.Gray

	mu    sync.Mutex
	cache map[string]domain.DetectionResult
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithDetectorLogger sets the logger.
func WithDetectorLogger(logger zerolog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

// WithDetectorMetrics sets the metrics sink.
func WithDetectorMetrics(m metrics.Metrics) DetectorOption {
	return func(d *Detector) { d.metrics = metrics.OrNoop(m) }
}

// WithThresholds overrides the acceptance bands.
func WithThresholds(t Thresholds) DetectorOption {
	return func(d *Detector) { d.thresholds = t }
}

// WithScales overrides the template scale ladder.
func WithScales(scales []float64) DetectorOption {
	return func(d *Detector) {
		if len(scales) > 0 {
			d.matcher = NewMatcher(scales)
		}
	}
}

// WithTemplate supplies a reference glyph for key instead of loading it from disk.
func WithTemplate(key string, tpl *image.Gray) DetectorOption {
	return func(d *Detector) {
		if d.overrides == nil {
			d.overrides = make(map[string]*image.Gray)
		}
		d.overrides[key] = tpl
	}
}

// NewDetector loads one reference glyph per element from assetsDir. A missing
// or unusable asset disables only that element; the start element falls back
// to the synthetic four-pane glyph.
func NewDetector(assetsDir string, opts ...DetectorOption) *Detector {
	d := &Detector{
		matcher: NewMatcher([]float64{0.6, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.5}),
		thresholds: Thresholds{
			High:  constants.DefaultHighConfidence,
			Floor: constants.DefaultConfidenceFloor,
		},
		templates: make(map[string]*image.Gray, len(elements)),
		logger:    zerolog.Nop(),
		metrics:   metrics.NoopMetrics{},
		assetsDir: assetsDir,
		cache:     make(map[string]domain.DetectionResult),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, el := range elements {
		tpl := d.overrides[el.Key]
		if tpl == nil {
			tpl = d.loadTemplate(el)
		}
		if tpl == nil && el.Key == ElementStart {
			tpl = SyntheticStartGlyph()
			d.logger.Debug().Str("element", el.Name).Msg("using synthetic start glyph")
		}
		if tpl == nil {
			continue
		}
		tpl = FitWithin(tpl, constants.MaxTemplateDimension)
		if b := tpl.Bounds(); b.Dx() < constants.MinTemplateDimension || b.Dy() < constants.MinTemplateDimension {
			d.logger.Warn().Str("element", el.Name).Int("width", b.Dx()).Int("height", b.Dy()).
				Msg("reference glyph too small, detector disabled")
			continue
		}
		d.templates[el.Key] = tpl
	}
	return d
}

func (d *Detector) loadTemplate(el Element) *image.Gray {
	if d.assetsDir == "" {
		return nil
	}
	path := filepath.Join(d.assetsDir, el.Asset)
	f, err := os.Open(path) //nolint:gosec // path is built from a fixed asset name
	if err != nil {
		d.logger.Debug().Str("element", el.Name).Str("path", path).Msg("reference glyph not found, detector disabled")
		return nil
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		d.logger.Warn().Err(dperrors.Wrap(dperrors.ErrTemplateLoad, err.Error())).
			Str("element", el.Name).Str("path", path).Msg("reference glyph unreadable, detector disabled")
		return nil
	}
	return ToGray(img)
}

// Enabled reports whether a reference glyph is available for key.
func (d *Detector) Enabled(key string) bool {
	_, ok := d.templates[key]
	return ok
}

// Detect locates the element named by query on screen. Unknown queries,
// disabled detectors and rejected matches all return (nil, nil). The cache
// entry for the element is dropped before detection and refreshed on success.
func (d *Detector) Detect(ctx context.Context, screen image.Image, query string) (*domain.DetectionResult, error) {
	el, ok := Resolve(query)
	if !ok {
		d.logger.Debug().Str("query", query).Msg("no detector for query")
		return nil, nil
	}
	d.Invalidate(el.Name)

	tpl := d.templates[el.Key]
	if tpl == nil {
		d.logger.Debug().Str("element", el.Name).Msg("detector disabled")
		return nil, nil
	}

	start := time.Now()
	res, err := d.detect(ctx, screen, el, tpl)
	d.metrics.DetectionCompleted(el.Name, res != nil, time.Since(start))
	if err != nil || res == nil {
		return nil, err
	}

	d.mu.Lock()
	d.cache[el.Name] = *res
	d.mu.Unlock()
	return res, nil
}

func (d *Detector) detect(ctx context.Context, screen image.Image, el Element, tpl *image.Gray) (*domain.DetectionResult, error) {
	bounds := screen.Bounds()
	roi := TaskbarRegion(bounds)

	match, found, err := d.matcher.Best(ctx, tpl, subImage(screen, roi))
	if err != nil {
		return nil, dperrors.Wrapf(err, "match %s", el.Name)
	}
	if !found {
		return nil, nil
	}

	absX, absY := roi.Min.X+match.Center.X, roi.Min.Y+match.Center.Y
	res := &domain.DetectionResult{
		Name:       el.Name,
		X:          absX - bounds.Min.X,
		Y:          absY - bounds.Min.Y,
		Width:      match.Width,
		Height:     match.Height,
		Confidence: match.Confidence,
		Method:     domain.MethodTemplate,
	}

	log := d.logger.With().Str("element", el.Name).Float64("confidence", match.Confidence).
		Float64("scale", match.Scale).Str("metric", string(match.Metric)).Logger()

	switch d.thresholds.Classify(match.Confidence) {
	case Accept:
		log.Debug().Msg("template match accepted")
		return res, nil
	case Reject:
		log.Debug().Msg("template match below floor")
		return nil, nil
	case NeedsValidation:
	}

	patch := Crop(screen, MarginRect(absX, absY, match.Width, match.Height, constants.CropMargin))
	if patch == nil {
		return nil, nil
	}
	colourOK, cs := CheckColour(patch)
	shapeOK, ss := CheckShape(patch)
	if !colourOK || !shapeOK {
		log.Debug().
			Bool("colour_ok", colourOK).Float64("mean_saturation", cs.MeanSaturation).
			Float64("mean_value", cs.MeanValue).Float64("value_std", cs.ValueStd).
			Bool("shape_ok", shapeOK).Int("panes", len(ss.Panes)).
			Msg("lower-band match failed validation")
		return nil, nil
	}
	res.Method = domain.MethodTemplateValidated
	log.Debug().Int("panes", len(ss.Panes)).Bool("grid_aligned", ss.Aligned).Msg("lower-band match validated")
	return res, nil
}

// cacheName maps a query, key or display name to the cache key.
func cacheName(name string) string {
	for _, el := range elements {
		if el.Key == name || el.Name == name {
			return el.Name
		}
	}
	if el, ok := Resolve(name); ok {
		return el.Name
	}
	return name
}

// Cached returns the last successful detection for name without detecting.
func (d *Detector) Cached(name string) (*domain.DetectionResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, ok := d.cache[cacheName(name)]
	if !ok {
		return nil, false
	}
	return &res, true
}

// Invalidate drops the cached detection for name.
func (d *Detector) Invalidate(name string) {
	d.mu.Lock()
	delete(d.cache, cacheName(name))
	d.mu.Unlock()
}

// InvalidateAll drops every cached detection.
func (d *Detector) InvalidateAll() {
	d.mu.Lock()
	clear(d.cache)
	d.mu.Unlock()
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func subImage(img image.Image, r image.Rectangle) image.Image {
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	return Crop(img, r)
}
