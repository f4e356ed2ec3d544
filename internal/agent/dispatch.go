package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/deskpilot/internal/capture"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/executor"
)

// stepOutcome is what one dispatched action produced.
type stepOutcome struct {
	// result is fed back into the next prompt and the execution log.
	result  string
	success bool
	// sideEffect marks a successful action that changed the desktop;
	// only these count toward steps_completed.
	sideEffect bool
}

// handler executes one action type. A returned error is fatal to the task;
// ordinary action failures are reported through the outcome.
type handler func(ctx context.Context, c *Controller, frame *capture.Frame, a *domain.Action) (stepOutcome, error)

// handlers is the static action table. complete is handled by the loop and
// unknown tags have no entry.
//
//nolint:gochecknoglobals // Static dispatch table
var handlers = map[domain.ActionType]handler{
	domain.ActionDetectElement: detectElement,
	domain.ActionMove: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, fmt.Sprintf("Moved mouse to (%d, %d)", a.Args.X, a.Args.Y), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.MouseMove(ctx, a.Args.X, a.Args.Y, a.Args.Duration)
		})
	},
	domain.ActionClick: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Clicked "+where(a.Args), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.Click(ctx, a.Args)
		})
	},
	domain.ActionDoubleClick: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Double-clicked "+where(a.Args), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.DoubleClick(ctx, a.Args)
		})
	},
	domain.ActionRightClick: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Right-clicked "+where(a.Args), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.RightClick(ctx, a.Args)
		})
	},
	domain.ActionTypeText: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Typed: "+executor.Preview(a.Args.Text), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.TypeText(ctx, a.Args.Text)
		})
	},
	domain.ActionKeyPress: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Pressed "+a.Args.Key, func() (*domain.ExecutionLogEntry, error) {
			return c.exec.KeyPress(ctx, a.Args.Key)
		})
	},
	domain.ActionHotkey: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Pressed "+strings.Join(a.Args.Keys, "+"), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.Hotkey(ctx, a.Args.Keys)
		})
	},
	domain.ActionScroll: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, fmt.Sprintf("Scrolled %d", a.Args.Amount), func() (*domain.ExecutionLogEntry, error) {
			return c.exec.Scroll(ctx, a.Args.Amount)
		})
	},
	domain.ActionEscape: func(ctx context.Context, c *Controller, _ *capture.Frame, _ *domain.Action) (stepOutcome, error) {
		return act(ctx, "Pressed escape", func() (*domain.ExecutionLogEntry, error) { return c.exec.Escape(ctx) })
	},
	domain.ActionSelectAll: func(ctx context.Context, c *Controller, _ *capture.Frame, _ *domain.Action) (stepOutcome, error) {
		return act(ctx, "Selected all", func() (*domain.ExecutionLogEntry, error) { return c.exec.SelectAll(ctx) })
	},
	domain.ActionSaveFile: func(ctx context.Context, c *Controller, _ *capture.Frame, _ *domain.Action) (stepOutcome, error) {
		return act(ctx, "Saved file", func() (*domain.ExecutionLogEntry, error) { return c.exec.SaveFile(ctx) })
	},
	domain.ActionAltTab: func(ctx context.Context, c *Controller, _ *capture.Frame, _ *domain.Action) (stepOutcome, error) {
		return act(ctx, "Switched window", func() (*domain.ExecutionLogEntry, error) { return c.exec.AltTab(ctx) })
	},
	domain.ActionNewWindow: func(ctx context.Context, c *Controller, _ *capture.Frame, _ *domain.Action) (stepOutcome, error) {
		return act(ctx, "Opened a new window", func() (*domain.ExecutionLogEntry, error) { return c.exec.NewWindow(ctx) })
	},
	domain.ActionOpenApp: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		return act(ctx, "Opened "+a.Args.App+" successfully", func() (*domain.ExecutionLogEntry, error) {
			return c.exec.OpenApp(ctx, a.Args.App)
		})
	},
	domain.ActionWait: func(ctx context.Context, c *Controller, _ *capture.Frame, a *domain.Action) (stepOutcome, error) {
		if err := c.exec.Wait(ctx, a.Args.Seconds); err != nil {
			return stepOutcome{}, err
		}
		return stepOutcome{result: fmt.Sprintf("Waited %g seconds", a.Args.Seconds), success: true}, nil
	},
}

// dispatch routes a parsed action to its handler.
func (c *Controller) dispatch(ctx context.Context, frame *capture.Frame, a *domain.Action) (stepOutcome, error) {
	if a.ArgsErr != nil {
		return stepOutcome{result: "Failed: " + a.ArgsErr.Error()}, nil
	}
	h, ok := handlers[a.Type]
	if !ok {
		c.logger.Warn().Str("action", a.Tag).Msg("unknown action type")
		return stepOutcome{result: fmt.Sprintf("%s: %s", dperrors.ErrUnknownAction, a.Tag)}, nil
	}
	return h(ctx, c, frame, a)
}

// act runs one executor call. Permission denials and driver errors become a
// failed outcome; only cancellation is returned as an error.
func act(ctx context.Context, done string, fn func() (*domain.ExecutionLogEntry, error)) (stepOutcome, error) {
	_, err := fn()
	if err == nil {
		return stepOutcome{result: done, success: true, sideEffect: true}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stepOutcome{}, ctxErr
	}
	return stepOutcome{result: "Failed: " + err.Error()}, nil
}

func where(a domain.Args) string {
	if !a.HasPoint {
		return "at the current position"
	}
	return fmt.Sprintf("at (%d, %d)", a.X, a.Y)
}

// detectElement locates the element on the step's frame and moves the mouse
// to its centre. A miss is not an error.
func detectElement(ctx context.Context, c *Controller, frame *capture.Frame, a *domain.Action) (stepOutcome, error) {
	name := a.Args.Element
	if c.detector == nil || frame == nil {
		return stepOutcome{result: fmt.Sprintf("Element '%s' not found", name)}, nil
	}

	res, err := c.detector.Detect(ctx, frame.Image, name)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return stepOutcome{}, err
		}
		c.logger.Warn().Err(err).Str("element", name).Msg("detection failed")
		return stepOutcome{result: "Failed: " + err.Error()}, nil
	}
	if res == nil {
		c.logger.Info().Str("element", name).Msg("element not found")
		return stepOutcome{result: fmt.Sprintf("Element '%s' not found", name)}, nil
	}

	c.logger.Info().Str("element", res.Name).Int("x", res.X).Int("y", res.Y).
		Float64("confidence", res.Confidence).Str("method", res.Method).Msg("element detected")

	if _, err := c.exec.MouseMove(ctx, res.X, res.Y, constants.DefaultMoveDuration); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stepOutcome{}, ctxErr
		}
		return stepOutcome{
			result:  fmt.Sprintf("Found '%s' at (%d, %d) but mouse move failed: %v", res.Name, res.X, res.Y, err),
			success: true,
		}, nil
	}
	return stepOutcome{
		result:     fmt.Sprintf("Found '%s' at (%d, %d) and moved mouse there", res.Name, res.X, res.Y),
		success:    true,
		sideEffect: true,
	}, nil
}
