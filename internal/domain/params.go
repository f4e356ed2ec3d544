package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mrz1836/deskpilot/internal/constants"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Params is the raw parameter object attached to an action.
// Models are loose with types, so the accessors accept JSON numbers,
// Go numbers and numeric strings alike.
type Params map[string]any

// Float returns the numeric value stored under key.
func (p Params) Float(key string) (float64, bool) {
	val, ok := p[key]
	if !ok || val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns the value under key truncated to an int.
func (p Params) Int(key string) (int, bool) {
	f, ok := p.Float(key)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// IntOr returns the int under key or def when it is absent or not numeric.
func (p Params) IntOr(key string, def int) int {
	if v, ok := p.Int(key); ok {
		return v
	}
	return def
}

// FloatOr returns the number under key or def when it is absent or not numeric.
func (p Params) FloatOr(key string, def float64) float64 {
	if v, ok := p.Float(key); ok {
		return v
	}
	return def
}

// String returns the string under key. Numbers are not converted.
func (p Params) String(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

// StringOr returns the non-empty string under key or def.
func (p Params) StringOr(key, def string) string {
	if s, ok := p.String(key); ok && s != "" {
		return s
	}
	return def
}

// Strings returns a string list under key. A single string is split on "+".
func (p Params) Strings(key string) ([]string, bool) {
	switch v := p[key].(type) {
	case []string:
		return v, len(v) > 0
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, len(out) > 0
	case string:
		parts := strings.Split(v, "+")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, len(out) > 0
	}
	return nil, false
}

// Args holds the typed parameters of an action. Only the fields relevant to the
// action's type are populated.
type Args struct {
	// X and Y are screen coordinates; HasPoint is false when the model omitted them
	// and the action should happen at the current cursor position.
	X, Y     int
	HasPoint bool

	Button   string   // mouse_click, default "left"
	Duration float64  // mouse_move seconds, default 0.5
	Text     string   // keyboard_type
	Key      string   // key_press
	Keys     []string // hotkey
	Amount   int      // scroll, default 3
	Seconds  float64  // wait, default 1, capped at 60
	App      string   // open_app
	Element  string   // detect_ui_element
}

// DecodeArgs validates p against the parameters t requires and applies defaults.
// The returned Args are usable even when an error is returned; the error names the
// first missing or ill-typed parameter.
func DecodeArgs(t ActionType, p Params) (Args, error) {
	var a Args
	switch t {
	case ActionMove:
		a.Duration = p.FloatOr("duration", constants.DefaultMoveDuration)
		return a, a.point(p, true)
	case ActionClick:
		a.Button = strings.ToLower(p.StringOr("button", constants.DefaultMouseButton))
		if a.Button != "left" && a.Button != "right" && a.Button != "middle" {
			return a, invalidParam("button", "left, right or middle")
		}
		return a, a.point(p, false)
	case ActionDoubleClick, ActionRightClick:
		return a, a.point(p, false)
	case ActionTypeText:
		text, ok := p.String("text")
		a.Text = text
		if !ok || text == "" {
			return a, invalidParam("text", "non-empty string")
		}
	case ActionKeyPress:
		key, ok := p.String("key")
		a.Key = strings.ToLower(strings.TrimSpace(key))
		if !ok || a.Key == "" {
			return a, invalidParam("key", "non-empty string")
		}
	case ActionHotkey:
		keys, ok := p.Strings("keys")
		if !ok {
			return a, invalidParam("keys", "list of key names")
		}
		for _, k := range keys {
			a.Keys = append(a.Keys, strings.ToLower(strings.TrimSpace(k)))
		}
	case ActionScroll:
		a.Amount = p.IntOr("amount", constants.DefaultScrollAmount)
	case ActionWait:
		a.Seconds = p.FloatOr("seconds", constants.DefaultWaitSeconds)
		if a.Seconds < 0 {
			a.Seconds = 0
		}
		if a.Seconds > constants.MaxWaitSeconds {
			a.Seconds = constants.MaxWaitSeconds
		}
	case ActionOpenApp:
		a.App = strings.TrimSpace(p.StringOr("app", ""))
		if a.App == "" {
			return a, dperrors.ErrEmptyAppName
		}
	case ActionDetectElement:
		a.Element = strings.TrimSpace(p.StringOr("element_name", ""))
		if a.Element == "" {
			return a, invalidParam("element_name", "non-empty string")
		}
	case ActionEscape, ActionSelectAll, ActionSaveFile, ActionAltTab, ActionNewWindow,
		ActionComplete, ActionUnknown:
	}
	return a, nil
}

// point reads x and y. When required is false both may be absent.
func (a *Args) point(p Params, required bool) error {
	x, okX := p.Int("x")
	y, okY := p.Int("y")
	switch {
	case okX && okY:
		a.X, a.Y, a.HasPoint = x, y, true
		return nil
	case !okX && !okY && !required:
		return nil
	case !okX:
		return invalidParam("x", "number")
	default:
		return invalidParam("y", "number")
	}
}

func invalidParam(name, want string) error {
	return fmt.Errorf("%w: %s must be a %s", dperrors.ErrInvalidParameter, name, want)
}
