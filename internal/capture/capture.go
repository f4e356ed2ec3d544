package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // decode PNG files passed to LoadImage
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/clock"
	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Frame is one captured screen.
type Frame struct {
	Image  *image.RGBA
	Width  int
	Height int

	// Path is where the JPEG was written; empty when persistence is disabled.
	Path string

	// JPEG is the encoded image and Base64 its standard encoding, ready for
	// an inference request.
	JPEG   []byte
	Base64 string
}

// Capturer grabs frames and writes them as screen_YYYYMMDD_HHMMSS_<n>.jpg.
type Capturer struct {
	grabber Grabber
	dir     string
	quality int
	clock   clock.Clock
	logger  zerolog.Logger

	mu  sync.Mutex
	seq int
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(c *Capturer) {
		if q > 0 && q <= 100 {
			c.quality = q
		}
	}
}

// WithClock sets the clock used for file names.
func WithClock(clk clock.Clock) Option {
	return func(c *Capturer) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Capturer) { c.logger = logger }
}

// New creates a Capturer. An empty dir keeps frames in memory only.
func New(grabber Grabber, dir string, opts ...Option) *Capturer {
	c := &Capturer{
		grabber: grabber,
		dir:     dir,
		quality: constants.DefaultJPEGQuality,
		clock:   clock.RealClock{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the directory frames are written to.
func (c *Capturer) Dir() string {
	return c.dir
}

// Capture grabs the screen, encodes it and persists it.
func (c *Capturer) Capture(ctx context.Context) (*Frame, error) {
	img, err := c.grabber.Grab(ctx)
	if err != nil {
		return nil, dperrors.Wrap(err, "failed to capture screen")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, dperrors.Wrap(dperrors.ErrCaptureFailed, "empty screen image")
	}

	data, err := EncodeJPEG(img, c.quality)
	if err != nil {
		return nil, err
	}

	f := &Frame{
		Image:  img,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		JPEG:   data,
		Base64: base64.StdEncoding.EncodeToString(data),
	}

	if c.dir != "" {
		path, err := c.persist(data)
		if err != nil {
			return nil, err
		}
		f.Path = path
	}

	c.logger.Debug().Int("width", f.Width).Int("height", f.Height).
		Int("bytes", len(data)).Str("path", f.Path).Msg("screen captured")
	return f, nil
}

func (c *Capturer) persist(data []byte) (string, error) {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return "", dperrors.Wrap(err, "failed to create screenshot directory")
	}

	c.mu.Lock()
	c.seq++
	n := c.seq
	c.mu.Unlock()

	name := fmt.Sprintf("%s%s_%d%s", constants.ScreenshotPrefix,
		c.clock.Now().Format(constants.ScreenshotTimeLayout), n, constants.ScreenshotExt)
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", dperrors.Wrap(err, "failed to write screenshot")
	}
	return path, nil
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, dperrors.Wrap(err, "failed to encode screenshot")
	}
	return buf.Bytes(), nil
}

// Prune removes all but the keep most recent screenshots in dir, newest by
// modification time. It returns the number of files removed. A missing
// directory is not an error.
func Prune(dir string, keep int) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, dperrors.Wrap(err, "failed to list screenshots")
	}

	type shot struct {
		path string
		mod  int64
	}
	var shots []shot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, constants.ScreenshotPrefix) || !strings.HasSuffix(name, constants.ScreenshotExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		shots = append(shots, shot{path: filepath.Join(dir, name), mod: info.ModTime().UnixNano()})
	}
	if len(shots) <= keep {
		return 0, nil
	}

	sort.SliceStable(shots, func(i, j int) bool {
		if shots[i].mod != shots[j].mod {
			return shots[i].mod > shots[j].mod
		}
		return shots[i].path > shots[j].path
	})

	removed := 0
	for _, s := range shots[max(keep, 0):] {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return removed, dperrors.Wrapf(err, "failed to remove %s", s.path)
		}
		removed++
	}
	return removed, nil
}

// Prune applies Prune to the capturer's directory.
func (c *Capturer) Prune(keep int) (int, error) {
	removed, err := Prune(c.dir, keep)
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Int("kept", keep).Msg("old screenshots pruned")
	}
	return removed, err
}

// LoadImage decodes a PNG or JPEG file into RGBA.
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied image path
	if err != nil {
		return nil, dperrors.Wrapf(err, "failed to open image %s", path)
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, dperrors.Wrapf(err, "failed to decode image %s", path)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as *image.RGBA anchored at the origin, copying when needed.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// FileGrabber serves a fixed image file as the screen. It backs
// `detect --image` and offline runs.
type FileGrabber struct {
	Path string
}

// Grab decodes the file on every call.
func (g FileGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadImage(g.Path)
}
