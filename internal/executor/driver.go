package executor

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
)

// Driver performs raw OS input. Implementations do no permission checks.
type Driver interface {
	// Move moves the cursor to (x, y) over duration seconds.
	Move(x, y int, duration float64) error

	// Click clicks button ("left", "right", "middle") at the current position.
	Click(button string, double bool) error

	// TypeText types text into the focused window.
	TypeText(text string) error

	// KeyTap presses key while holding modifiers.
	KeyTap(key string, modifiers ...string) error

	// Scroll scrolls the wheel by amount notches; positive scrolls down.
	Scroll(amount int) error

	// ScreenSize returns the primary display size.
	ScreenSize() (width, height int)
}

// Launcher starts an application without waiting for it.
type Launcher interface {
	Launch(ctx context.Context, command string) error
}

// appCommands maps friendly names to launch commands, keyed by GOOS.
//
//nolint:gochecknoglobals // Static lookup table
var appCommands = map[string]map[string]string{
	"windows": {
		"notepad":    "notepad.exe",
		"calculator": "calc.exe",
		"paint":      "mspaint.exe",
		"explorer":   "explorer.exe",
		"terminal":   "cmd.exe",
		"cmd":        "cmd.exe",
		"powershell": "powershell.exe",
		"chrome":     `C:\Program Files\Google\Chrome\Application\chrome.exe`,
		"edge":       "msedge.exe",
		"firefox":    `C:\Program Files\Mozilla Firefox\firefox.exe`,
	},
	"darwin": {
		"notepad":    "open -a TextEdit",
		"calculator": "open -a Calculator",
		"paint":      "open -a Preview",
		"explorer":   "open -a Finder",
		"terminal":   "open -a Terminal",
		"chrome":     `open -a "Google Chrome"`,
		"edge":       `open -a "Microsoft Edge"`,
		"firefox":    "open -a Firefox",
	},
	"linux": {
		"notepad":    "gedit",
		"calculator": "gnome-calculator",
		"explorer":   "xdg-open .",
		"terminal":   "x-terminal-emulator",
		"chrome":     "google-chrome",
		"edge":       "microsoft-edge",
		"firefox":    "firefox",
	},
}

// ResolveApp returns the launch command for app on the running OS.
func ResolveApp(app string) string {
	return ResolveAppFor(runtime.GOOS, app)
}

// ResolveAppFor returns the launch command for app on goos. Unknown names,
// and every name on an OS without a table, are used as-is.
func ResolveAppFor(goos, app string) string {
	if cmd, ok := appCommands[goos][strings.ToLower(strings.TrimSpace(app))]; ok {
		return cmd
	}
	return strings.TrimSpace(app)
}

// ShellLauncher runs commands through the platform shell.
type ShellLauncher struct{}

// Launch implements Launcher. The child is reaped in the background.
func (ShellLauncher) Launch(ctx context.Context, command string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", "start", "", command) //nolint:gosec // command comes from the permission-gated open_app action
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command+" &") //nolint:gosec // command comes from the permission-gated open_app action
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
