package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/mrz1836/deskpilot/internal/ai"
)

// DriverCall is one recorded FakeDriver invocation.
type DriverCall struct {
	Method string
	Args   string
}

// String renders the call as "Method(args)".
func (c DriverCall) String() string { return c.Method + "(" + c.Args + ")" }

// FakeDriver records input calls instead of performing them.
type FakeDriver struct {
	mu     sync.Mutex
	calls  []DriverCall
	Width  int
	Height int
	// Err, when set, is returned by every input method.
	Err error
}

// NewFakeDriver returns a driver reporting a 1920x1080 screen.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Width: 1920, Height: 1080}
}

func (d *FakeDriver) record(method, format string, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.calls = append(d.calls, DriverCall{Method: method, Args: fmt.Sprintf(format, args...)})
	return nil
}

// Move records a cursor move.
func (d *FakeDriver) Move(x, y int, duration float64) error {
	return d.record("Move", "%d,%d,%.1f", x, y, duration)
}

// Click records a click.
func (d *FakeDriver) Click(button string, double bool) error {
	return d.record("Click", "%s,%t", button, double)
}

// TypeText records typed text.
func (d *FakeDriver) TypeText(text string) error {
	return d.record("TypeText", "%s", text)
}

// KeyTap records a key press with modifiers.
func (d *FakeDriver) KeyTap(key string, modifiers ...string) error {
	return d.record("KeyTap", "%s", strings.Join(append(append([]string(nil), modifiers...), key), "+"))
}

// Scroll records a wheel scroll.
func (d *FakeDriver) Scroll(amount int) error {
	return d.record("Scroll", "%d", amount)
}

// ScreenSize returns the configured size.
func (d *FakeDriver) ScreenSize() (int, int) { return d.Width, d.Height }

// Calls returns a copy of the recorded calls.
func (d *FakeDriver) Calls() []DriverCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DriverCall(nil), d.calls...)
}

// CallStrings returns the recorded calls rendered with DriverCall.String.
func (d *FakeDriver) CallStrings() []string {
	calls := d.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// FakeLauncher records launched commands.
type FakeLauncher struct {
	mu       sync.Mutex
	Commands []string
	Err      error
}

// Launch records command.
func (l *FakeLauncher) Launch(_ context.Context, command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.Commands = append(l.Commands, command)
	return nil
}

// FakeGrabber returns a fixed image, or Err.
type FakeGrabber struct {
	Image *image.RGBA
	Err   error

	mu    sync.Mutex
	grabs int
}

// NewFakeGrabber returns a grabber serving a uniform grey w x h frame.
func NewFakeGrabber(w, h int) *FakeGrabber {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 40, 40, 255
	}
	return &FakeGrabber{Image: img}
}

// Grab implements capture.Grabber.
func (g *FakeGrabber) Grab(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.grabs++
	g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return g.Image, nil
}

// Grabs returns how many times Grab was called.
func (g *FakeGrabber) Grabs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.grabs
}

// PasteGray draws tpl into img with its top-left corner at (x, y).
func PasteGray(img *image.RGBA, tpl *image.Gray, x, y int) {
	b := tpl.Bounds()
	for ty := b.Min.Y; ty < b.Max.Y; ty++ {
		for tx := b.Min.X; tx < b.Max.X; tx++ {
			v := tpl.GrayAt(tx, ty).Y
			img.Set(x+tx-b.Min.X, y+ty-b.Min.Y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
}

// FakeClient is a scripted ai.Client. Each Generate, GenerateStream or Chat
// call consumes the next reply.
type FakeClient struct {
	mu       sync.Mutex
	replies  []string
	Prompts  []string
	Chats    [][]string
	Unloaded []string
	Models   []string
	// Err, when set, is returned by every inference call.
	Err error
	// OnToken runs before each streamed token is delivered; it lets tests act mid-stream.
	OnToken func(i int, tok string)
}

var _ ai.Client = (*FakeClient)(nil)

// NewFakeClient scripts replies in order.
func NewFakeClient(replies ...string) *FakeClient {
	return &FakeClient{replies: replies, Models: []string{"llava:7b"}}
}

func (c *FakeClient) next(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prompts = append(c.Prompts, prompt)
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.replies) == 0 {
		return "", ErrMockScriptExhausted
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

// Generate implements ai.Client.
func (c *FakeClient) Generate(_ context.Context, req *ai.GenerateRequest) (*ai.Response, error) {
	text, err := c.next(req.Prompt)
	if err != nil {
		return nil, err
	}
	return &ai.Response{Model: req.Model, Text: text}, nil
}

// GenerateStream implements ai.Client by splitting the reply into words.
func (c *FakeClient) GenerateStream(ctx context.Context, req *ai.GenerateRequest, onToken ai.TokenFunc) (*ai.Response, error) {
	text, err := c.next(req.Prompt)
	if err != nil {
		return nil, err
	}
	tokens := strings.SplitAfter(text, " ")
	var sb strings.Builder
	for i, tok := range tokens {
		if c.OnToken != nil {
			c.OnToken(i, tok)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sb.WriteString(tok)
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return nil, err
			}
		}
	}
	return &ai.Response{Model: req.Model, Text: sb.String(), Streamed: true, Tokens: len(tokens)}, nil
}

// Chat implements ai.Client.
func (c *FakeClient) Chat(_ context.Context, req *ai.ChatRequest) (*ai.Response, error) {
	contents := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		contents = append(contents, m.Role+": "+m.Content)
	}
	c.mu.Lock()
	c.Chats = append(c.Chats, contents)
	c.mu.Unlock()

	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	text, err := c.next(last)
	if err != nil {
		return nil, err
	}
	return &ai.Response{Model: req.Model, Text: text}, nil
}

// Unload implements ai.Client.
func (c *FakeClient) Unload(_ context.Context, model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Unloaded = append(c.Unloaded, model)
	return nil
}

// ListModels implements ai.Client.
func (c *FakeClient) ListModels(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return append([]string(nil), c.Models...), nil
}

// CheckConnection implements ai.Client.
func (c *FakeClient) CheckConnection(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

// PromptCount returns how many inference calls were made.
func (c *FakeClient) PromptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Prompts)
}

// UnloadedModels returns the models passed to Unload.
func (c *FakeClient) UnloadedModels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Unloaded...)
}
