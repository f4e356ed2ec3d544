// Package executor performs permission-gated OS input actions and keeps an
// audit trail of every action that ran.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/clock"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/metrics"
)

// settleDelays is how long the UI is given to react after each action.
//
//nolint:gochecknoglobals // Static lookup table
var settleDelays = map[domain.ActionType]time.Duration{
	domain.ActionMove:        200 * time.Millisecond,
	domain.ActionClick:       constants.ClickSettleDelay,
	domain.ActionDoubleClick: constants.ClickSettleDelay,
	domain.ActionRightClick:  constants.ClickSettleDelay,
	domain.ActionTypeText:    constants.TypeSettleDelay,
	domain.ActionKeyPress:    300 * time.Millisecond,
	domain.ActionHotkey:      500 * time.Millisecond,
	domain.ActionScroll:      300 * time.Millisecond,
	domain.ActionOpenApp:     constants.OpenAppSettleDelay,
	domain.ActionEscape:      300 * time.Millisecond,
	domain.ActionSelectAll:   200 * time.Millisecond,
	domain.ActionSaveFile:    300 * time.Millisecond,
	domain.ActionAltTab:      500 * time.Millisecond,
	domain.ActionNewWindow:   700 * time.Millisecond,
}

// SettleDelay returns the pause applied after a successful action of type t.
func SettleDelay(t domain.ActionType) time.Duration {
	return settleDelays[t]
}

// Executor runs primitive actions after checking the session permissions.
// A denied action touches neither the driver nor the audit trail.
type Executor struct {
	driver   Driver
	launcher Launcher
	perms    *domain.Permissions
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  metrics.Metrics
	settle   bool

	mu    sync.Mutex
	audit []domain.ExecutionLogEntry
}

// Option configures an Executor.
type Option func(*Executor)

// WithLauncher sets the application launcher.
func WithLauncher(l Launcher) Option {
	return func(e *Executor) { e.launcher = l }
}

// WithClock sets the clock used for settle delays and timestamps.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = metrics.OrNoop(m) }
}

// WithSettleDelays enables or disables the post-action pauses.
func WithSettleDelays(enabled bool) Option {
	return func(e *Executor) { e.settle = enabled }
}

// New creates an Executor gated by perms.
func New(driver Driver, perms *domain.Permissions, opts ...Option) *Executor {
	e := &Executor{
		driver:   driver,
		launcher: ShellLauncher{},
		perms:    perms,
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
		metrics:  metrics.NoopMetrics{},
		settle:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Permissions returns the permission set the executor checks.
func (e *Executor) Permissions() *domain.Permissions { return e.perms }

// ScreenSize returns the display size reported by the driver.
func (e *Executor) ScreenSize() (int, int) {
	w, h := e.driver.ScreenSize()
	if w <= 0 || h <= 0 {
		return constants.FallbackScreenWidth, constants.FallbackScreenHeight
	}
	return w, h
}

// Audit returns a copy of the audit trail in execution order.
func (e *Executor) Audit() []domain.ExecutionLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.ExecutionLogEntry(nil), e.audit...)
}

// ClearAudit drops the audit trail.
func (e *Executor) ClearAudit() {
	e.mu.Lock()
	e.audit = nil
	e.mu.Unlock()
}

// run is the shared gate: permission check, effect, audit, settle.
func (e *Executor) run(ctx context.Context, t domain.ActionType, preview string, effect func() error) (*domain.ExecutionLogEntry, error) {
	if capability, gated := t.Capability(); gated && !e.perms.Allowed(capability) {
		e.metrics.PermissionDenied(string(capability))
		e.logger.Warn().Str("action", string(t)).Str("capability", string(capability)).Msg("action denied")
		return nil, fmt.Errorf("%w: %s", dperrors.ErrPermissionDenied, capability)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := effect(); err != nil {
		e.metrics.ActionExecuted(string(t), false)
		return nil, dperrors.Wrapf(err, "%s failed", t)
	}
	e.metrics.ActionExecuted(string(t), true)

	entry := domain.ExecutionLogEntry{
		Action:    string(t),
		Preview:   preview,
		Outcome:   "ok",
		Success:   true,
		Timestamp: e.clock.Now(),
	}
	e.mu.Lock()
	e.audit = append(e.audit, entry)
	e.mu.Unlock()
	e.logger.Debug().Str("action", string(t)).Str("preview", preview).Msg("action executed")

	if e.settle {
		if err := e.clock.Sleep(ctx, SettleDelay(t)); err != nil {
			return &entry, err
		}
	}
	return &entry, nil
}

// Preview truncates s to the audit preview length, counting runes.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= constants.AuditPreviewLength {
		return s
	}
	r := []rune(s)
	return string(r[:constants.AuditPreviewLength]) + "..."
}

func pointPreview(x, y int) string {
	return "(" + strconv.Itoa(x) + ", " + strconv.Itoa(y) + ")"
}

// MouseMove moves the cursor to (x, y).
func (e *Executor) MouseMove(ctx context.Context, x, y int, duration float64) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, domain.ActionMove, pointPreview(x, y), func() error {
		return e.driver.Move(x, y, duration)
	})
}

func (e *Executor) clickAt(ctx context.Context, t domain.ActionType, args domain.Args, button string, double bool) (*domain.ExecutionLogEntry, error) {
	preview := button
	if args.HasPoint {
		preview = button + " " + pointPreview(args.X, args.Y)
	}
	return e.run(ctx, t, preview, func() error {
		if args.HasPoint {
			if err := e.driver.Move(args.X, args.Y, 0); err != nil {
				return err
			}
		}
		return e.driver.Click(button, double)
	})
}

// Click clicks button at the point in args, or at the cursor when args has none.
func (e *Executor) Click(ctx context.Context, args domain.Args) (*domain.ExecutionLogEntry, error) {
	button := args.Button
	if button == "" {
		button = constants.DefaultMouseButton
	}
	return e.clickAt(ctx, domain.ActionClick, args, button, false)
}

// DoubleClick double-clicks the left button.
func (e *Executor) DoubleClick(ctx context.Context, args domain.Args) (*domain.ExecutionLogEntry, error) {
	return e.clickAt(ctx, domain.ActionDoubleClick, args, "left", true)
}

// RightClick clicks the right button.
func (e *Executor) RightClick(ctx context.Context, args domain.Args) (*domain.ExecutionLogEntry, error) {
	return e.clickAt(ctx, domain.ActionRightClick, args, "right", false)
}

// TypeText types text. Only the first 50 characters reach the audit trail.
func (e *Executor) TypeText(ctx context.Context, text string) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, domain.ActionTypeText, Preview(text), func() error {
		return e.driver.TypeText(text)
	})
}

// KeyPress taps a single key.
func (e *Executor) KeyPress(ctx context.Context, key string) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, domain.ActionKeyPress, key, func() error {
		return e.driver.KeyTap(key)
	})
}

// Hotkey presses a key combination. The last key is tapped while the others are held.
func (e *Executor) Hotkey(ctx context.Context, keys []string) (*domain.ExecutionLogEntry, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: keys must be a list of key names", dperrors.ErrInvalidParameter)
	}
	return e.hotkey(ctx, domain.ActionHotkey, keys)
}

func (e *Executor) hotkey(ctx context.Context, t domain.ActionType, keys []string) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, t, strings.Join(keys, "+"), func() error {
		return e.driver.KeyTap(keys[len(keys)-1], keys[:len(keys)-1]...)
	})
}

// Scroll scrolls by amount notches; positive is down.
func (e *Executor) Scroll(ctx context.Context, amount int) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, domain.ActionScroll, strconv.Itoa(amount), func() error {
		return e.driver.Scroll(amount)
	})
}

// Escape presses Esc to dismiss dialogs.
func (e *Executor) Escape(ctx context.Context) (*domain.ExecutionLogEntry, error) {
	return e.run(ctx, domain.ActionEscape, "esc", func() error {
		return e.driver.KeyTap("esc")
	})
}

// SelectAll presses Ctrl+A.
func (e *Executor) SelectAll(ctx context.Context) (*domain.ExecutionLogEntry, error) {
	return e.hotkey(ctx, domain.ActionSelectAll, []string{"ctrl", "a"})
}

// SaveFile presses Ctrl+S.
func (e *Executor) SaveFile(ctx context.Context) (*domain.ExecutionLogEntry, error) {
	return e.hotkey(ctx, domain.ActionSaveFile, []string{"ctrl", "s"})
}

// AltTab switches to the previous window.
func (e *Executor) AltTab(ctx context.Context) (*domain.ExecutionLogEntry, error) {
	return e.hotkey(ctx, domain.ActionAltTab, []string{"alt", "tab"})
}

// NewWindow presses Ctrl+N.
func (e *Executor) NewWindow(ctx context.Context) (*domain.ExecutionLogEntry, error) {
	return e.hotkey(ctx, domain.ActionNewWindow, []string{"ctrl", "n"})
}

// OpenApp launches app through the launcher. Friendly names resolve through
// a fixed table; anything else is run as given.
func (e *Executor) OpenApp(ctx context.Context, app string) (*domain.ExecutionLogEntry, error) {
	app = strings.TrimSpace(app)
	if app == "" {
		return nil, dperrors.ErrEmptyAppName
	}
	return e.run(ctx, domain.ActionOpenApp, app, func() error {
		return e.launcher.Launch(ctx, ResolveApp(app))
	})
}

// Wait pauses for seconds, capped at the maximum wait. It needs no permission
// and leaves no audit entry.
func (e *Executor) Wait(ctx context.Context, seconds float64) error {
	seconds = min(max(seconds, 0), constants.MaxWaitSeconds)
	return e.clock.Sleep(ctx, time.Duration(seconds*float64(time.Second)))
}
