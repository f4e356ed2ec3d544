package executor_test

import (
	"context"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/deskpilot/internal/clock"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/executor"
	"github.com/mrz1836/deskpilot/internal/testutil"
)

func newExecutor(t *testing.T, granted ...domain.Capability) (*executor.Executor, *testutil.FakeDriver, *testutil.FakeLauncher, *clock.FakeClock) {
	t.Helper()
	drv := testutil.NewFakeDriver()
	launcher := &testutil.FakeLauncher{}
	clk := clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	ex := executor.New(drv, domain.NewPermissions(granted...),
		executor.WithLauncher(launcher),
		executor.WithClock(clk),
	)
	return ex, drv, launcher, clk
}

func TestExecutor_DeniedActionsHaveNoSideEffects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name       string
		capability domain.Capability
		run        func(*executor.Executor) (*domain.ExecutionLogEntry, error)
	}{
		{"move", domain.CapabilityMouse, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.MouseMove(ctx, 1, 2, 0.5)
		}},
		{"click", domain.CapabilityMouse, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.Click(ctx, domain.Args{X: 1, Y: 2, HasPoint: true})
		}},
		{"double click", domain.CapabilityMouse, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.DoubleClick(ctx, domain.Args{})
		}},
		{"right click", domain.CapabilityMouse, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.RightClick(ctx, domain.Args{})
		}},
		{"scroll", domain.CapabilityMouse, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.Scroll(ctx, 3)
		}},
		{"type", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.TypeText(ctx, "hello")
		}},
		{"key press", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.KeyPress(ctx, "enter")
		}},
		{"hotkey", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.Hotkey(ctx, []string{"ctrl", "c"})
		}},
		{"escape", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.Escape(ctx)
		}},
		{"select all", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.SelectAll(ctx)
		}},
		{"alt tab", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.AltTab(ctx)
		}},
		{"new window", domain.CapabilityKeyboard, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.NewWindow(ctx)
		}},
		{"save file", domain.CapabilityFile, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.SaveFile(ctx)
		}},
		{"open app", domain.CapabilityProcess, func(e *executor.Executor) (*domain.ExecutionLogEntry, error) {
			return e.OpenApp(ctx, "notepad")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ex, drv, launcher, clk := newExecutor(t)

			entry, err := tt.run(ex)
			require.ErrorIs(t, err, dperrors.ErrPermissionDenied)
			assert.Contains(t, err.Error(), string(tt.capability))
			assert.Nil(t, entry)
			assert.Empty(t, drv.Calls())
			assert.Empty(t, launcher.Commands)
			assert.Empty(t, ex.Audit())
			assert.Empty(t, clk.Sleeps())
		})
	}
}

func TestExecutor_GrantedActions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ex, drv, launcher, clk := newExecutor(t, domain.AllCapabilities()...)

	_, err := ex.MouseMove(ctx, 10, 20, 0.5)
	require.NoError(t, err)
	_, err = ex.Click(ctx, domain.Args{X: 5, Y: 6, HasPoint: true, Button: "left"})
	require.NoError(t, err)
	_, err = ex.Click(ctx, domain.Args{})
	require.NoError(t, err)
	_, err = ex.DoubleClick(ctx, domain.Args{X: 7, Y: 8, HasPoint: true})
	require.NoError(t, err)
	_, err = ex.RightClick(ctx, domain.Args{})
	require.NoError(t, err)
	_, err = ex.TypeText(ctx, "hi")
	require.NoError(t, err)
	_, err = ex.KeyPress(ctx, "enter")
	require.NoError(t, err)
	_, err = ex.Hotkey(ctx, []string{"ctrl", "shift", "esc"})
	require.NoError(t, err)
	_, err = ex.Scroll(ctx, -2)
	require.NoError(t, err)
	_, err = ex.Escape(ctx)
	require.NoError(t, err)
	_, err = ex.SelectAll(ctx)
	require.NoError(t, err)
	_, err = ex.SaveFile(ctx)
	require.NoError(t, err)
	_, err = ex.AltTab(ctx)
	require.NoError(t, err)
	_, err = ex.NewWindow(ctx)
	require.NoError(t, err)
	entry, err := ex.OpenApp(ctx, "Notepad")
	require.NoError(t, err)
	assert.Equal(t, "Notepad", entry.Preview)

	assert.Equal(t, []string{
		"Move(10,20,0.5)",
		"Move(5,6,0.0)", "Click(left,false)",
		"Click(left,false)",
		"Move(7,8,0.0)", "Click(left,true)",
		"Click(right,false)",
		"TypeText(hi)",
		"KeyTap(enter)",
		"KeyTap(ctrl+shift+esc)",
		"Scroll(-2)",
		"KeyTap(esc)",
		"KeyTap(ctrl+a)",
		"KeyTap(ctrl+s)",
		"KeyTap(alt+tab)",
		"KeyTap(ctrl+n)",
	}, drv.CallStrings())
	assert.Equal(t, []string{"notepad.exe"}, launcher.Commands)

	audit := ex.Audit()
	require.Len(t, audit, 15)
	for _, e := range audit {
		assert.True(t, e.Success)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, "mouse_move", audit[0].Action)
	assert.Equal(t, "open_app", audit[14].Action)

	sleeps := clk.Sleeps()
	require.Len(t, sleeps, 15)
	assert.Equal(t, 200*time.Millisecond, sleeps[0])
	assert.Equal(t, 500*time.Millisecond, sleeps[1])
	assert.Equal(t, 1500*time.Millisecond, sleeps[14])

	ex.ClearAudit()
	assert.Empty(t, ex.Audit())
}

func TestExecutor_TypeTextPreviewIsTruncated(t *testing.T) {
	t.Parallel()

	ex, drv, _, _ := newExecutor(t, domain.CapabilityKeyboard)
	long := strings.Repeat("é", 80)

	entry, err := ex.TypeText(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 50)+"...", entry.Preview)
	assert.Equal(t, "TypeText("+long+")", drv.CallStrings()[0])
}

func TestExecutor_DriverFailure(t *testing.T) {
	t.Parallel()

	ex, drv, _, _ := newExecutor(t, domain.CapabilityMouse)
	drv.Err = testutil.ErrMockDriver

	_, err := ex.MouseMove(context.Background(), 1, 1, 0)
	require.ErrorIs(t, err, testutil.ErrMockDriver)
	assert.Empty(t, ex.Audit())
}

func TestExecutor_OpenApp(t *testing.T) {
	t.Parallel()

	ex, _, launcher, _ := newExecutor(t, domain.CapabilityProcess)

	_, err := ex.OpenApp(context.Background(), "  ")
	require.ErrorIs(t, err, dperrors.ErrEmptyAppName)

	_, err = ex.OpenApp(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, launcher.Commands)

	launcher.Err = testutil.ErrMockLaunch
	_, err = ex.OpenApp(context.Background(), "calculator")
	require.ErrorIs(t, err, testutil.ErrMockLaunch)
}

func TestExecutor_WaitAndHotkeyValidation(t *testing.T) {
	t.Parallel()

	ex, _, _, clk := newExecutor(t, domain.CapabilityKeyboard)
	require.NoError(t, ex.Wait(context.Background(), 2.5))
	require.NoError(t, ex.Wait(context.Background(), 500))
	assert.Equal(t, []time.Duration{2500 * time.Millisecond, time.Minute}, clk.Sleeps())
	assert.Empty(t, ex.Audit())

	_, err := ex.Hotkey(context.Background(), nil)
	require.ErrorIs(t, err, dperrors.ErrInvalidParameter)
}

func TestExecutor_CancelledContext(t *testing.T) {
	t.Parallel()

	ex, drv, _, _ := newExecutor(t, domain.CapabilityMouse)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.MouseMove(ctx, 1, 1, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, drv.Calls())
}

func TestExecutor_ScreenSizeFallback(t *testing.T) {
	t.Parallel()

	ex, drv, _, _ := newExecutor(t)
	w, h := ex.ScreenSize()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	drv.Width, drv.Height = 0, 0
	w, h = ex.ScreenSize()
	assert.Equal(t, 2560, w)
	assert.Equal(t, 1440, h)
}

func TestResolveAppAndNormalizeKey(t *testing.T) {
	t.Parallel()

	apps := []struct {
		goos, app, want string
	}{
		{"windows", " Calculator ", "calc.exe"},
		{"darwin", "calculator", "open -a Calculator"},
		{"linux", "NOTEPAD", "gedit"},
		{"linux", "paint", "paint"},
		{"plan9", "notepad", "notepad"},
		{"windows", "gimp", "gimp"},
	}
	for _, a := range apps {
		assert.Equal(t, a.want, executor.ResolveAppFor(a.goos, a.app), "%s/%s", a.goos, a.app)
	}
	assert.Equal(t, "gimp", executor.ResolveApp(" gimp "))
	assert.Equal(t, "esc", executor.NormalizeKey("Escape"))
	assert.Equal(t, "cmd", executor.NormalizeKey("win"))
	assert.Equal(t, "f5", executor.NormalizeKey("F5"))
	assert.Equal(t, 700*time.Millisecond, executor.SettleDelay(domain.ActionNewWindow))
	assert.Zero(t, executor.SettleDelay(domain.ActionWait))
}

func TestGlidePath(t *testing.T) {
	t.Parallel()

	path := executor.GlidePath(image.Pt(0, 0), image.Pt(100, -50), 0.5)
	require.Len(t, path, 30)
	assert.Equal(t, image.Pt(100, -50), path[len(path)-1])
	for i := 1; i < len(path); i++ {
		assert.GreaterOrEqual(t, path[i].X, path[i-1].X)
		assert.LessOrEqual(t, path[i].Y, path[i-1].Y)
	}

	short := executor.GlidePath(image.Pt(5, 5), image.Pt(9, 9), 0.001)
	assert.Equal(t, []image.Point{image.Pt(9, 9)}, short)
}
