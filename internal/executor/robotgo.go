package executor

import (
	"image"
	"math"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"
)

// glideRate is the cursor update rate for timed moves, in steps per second.
const glideRate = 60

// keyAliases normalizes key names models commonly emit.
//
//nolint:gochecknoglobals // Static lookup table
var keyAliases = map[string]string{
	"escape":   "esc",
	"return":   "enter",
	"win":      "cmd",
	"windows":  "cmd",
	"super":    "cmd",
	"control":  "ctrl",
	"del":      "delete",
	"pgup":     "pageup",
	"pgdn":     "pagedown",
	"spacebar": "space",
}

// NormalizeKey lower-cases name and maps common aliases.
func NormalizeKey(name string) string {
	k := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// RobotDriver drives the real mouse and keyboard.
type RobotDriver struct{}

var _ Driver = RobotDriver{}

// Move implements Driver. A positive duration glides the cursor there in
// evenly timed steps.
func (RobotDriver) Move(x, y int, duration float64) error {
	if duration <= 0 {
		robotgo.Move(x, y)
		return nil
	}
	fromX, fromY := robotgo.Location()
	path := GlidePath(image.Pt(fromX, fromY), image.Pt(x, y), duration)
	pause := time.Duration(duration * float64(time.Second) / float64(len(path)))
	for _, pt := range path {
		robotgo.Move(pt.X, pt.Y)
		time.Sleep(pause)
	}
	return nil
}

// GlidePath returns the intermediate cursor positions for a move from one
// point to another lasting duration seconds, at glideRate steps per second.
// The last point is always to.
func GlidePath(from, to image.Point, duration float64) []image.Point {
	steps := max(int(math.Round(duration*glideRate)), 1)
	path := make([]image.Point, steps)
	for i := range steps {
		f := float64(i+1) / float64(steps)
		path[i] = image.Pt(
			from.X+int(math.Round(f*float64(to.X-from.X))),
			from.Y+int(math.Round(f*float64(to.Y-from.Y))),
		)
	}
	return path
}

// Click implements Driver.
func (RobotDriver) Click(button string, double bool) error {
	robotgo.Click(button, double)
	return nil
}

// TypeText implements Driver.
func (RobotDriver) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// KeyTap implements Driver.
func (RobotDriver) KeyTap(key string, modifiers ...string) error {
	if len(modifiers) == 0 {
		return robotgo.KeyTap(NormalizeKey(key))
	}
	mods := make([]interface{}, 0, len(modifiers))
	for _, m := range modifiers {
		mods = append(mods, NormalizeKey(m))
	}
	return robotgo.KeyTap(NormalizeKey(key), mods...)
}

// Scroll implements Driver.
func (RobotDriver) Scroll(amount int) error {
	switch {
	case amount > 0:
		robotgo.ScrollDir(amount, "down")
	case amount < 0:
		robotgo.ScrollDir(-amount, "up")
	}
	return nil
}

// ScreenSize implements Driver.
func (RobotDriver) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}
