package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/ai"
	"github.com/mrz1836/deskpilot/internal/capture"
	"github.com/mrz1836/deskpilot/internal/clock"
	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/executor"
	"github.com/mrz1836/deskpilot/internal/loopguard"
	"github.com/mrz1836/deskpilot/internal/metrics"
	"github.com/mrz1836/deskpilot/internal/parser"
	"github.com/mrz1836/deskpilot/internal/prompts"
)

// Messages surfaced in task and cancel results.
const (
	MessageCompleted     = "Task completed!"
	MessageCancelled     = "Task cancelled by user"
	ErrorCancelled       = "Operation cancelled by user"
	MessageEmergencyStop = "EMERGENCY STOP: operation cancelled"
	stepLimitFormat      = "Task execution stopped after %d steps. May need manual completion."
	openAppLoopHint      = " The app might already be open or unavailable; check the screen and adapt."
	responseLogLimit     = 500
)

// Capturer grabs the screen for each step.
type Capturer interface {
	Capture(ctx context.Context) (*capture.Frame, error)
	Prune(keep int) (int, error)
}

// Detector locates known UI elements on a frame.
type Detector interface {
	Detect(ctx context.Context, screen image.Image, query string) (*domain.DetectionResult, error)
	InvalidateAll()
}

// Recorder persists the result of every finished task.
type Recorder interface {
	Save(ctx context.Context, result *domain.TaskResult) error
}

// Controller runs one task at a time against the desktop and keeps the chat
// conversation between tasks.
type Controller struct {
	client   ai.Client
	capturer Capturer
	detector Detector
	exec     *executor.Executor
	cfg      config.Config
	clock    clock.Clock
	logger   zerolog.Logger
	metrics  metrics.Metrics
	feedback Feedback
	recorder Recorder
	token    *Token
	elements []string

	mu      sync.Mutex
	model   string
	running bool
	session *Session
	history []domain.ChatMessage
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for step delays and timestamps.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = metrics.OrNoop(m) }
}

// WithFeedback sets the visual feedback surface.
func WithFeedback(f Feedback) Option {
	return func(ctl *Controller) {
		if f != nil {
			ctl.feedback = f
		}
	}
}

// WithRecorder persists task results.
func WithRecorder(r Recorder) Option {
	return func(ctl *Controller) { ctl.recorder = r }
}

// WithToken shares a cancellation token, typically with a signal handler.
func WithToken(t *Token) Option {
	return func(ctl *Controller) {
		if t != nil {
			ctl.token = t
		}
	}
}

// WithElements lists the element names the step prompt advertises for detect_ui_element.
func WithElements(names ...string) Option {
	return func(ctl *Controller) { ctl.elements = names }
}

// New creates a Controller. A nil cfg uses the defaults; detector may be nil,
// in which case every detect_ui_element step misses.
func New(cfg *config.Config, client ai.Client, capturer Capturer, detector Detector, exec *executor.Executor, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := &Controller{
		client:   client,
		capturer: capturer,
		detector: detector,
		exec:     exec,
		cfg:      *cfg,
		clock:    clock.RealClock{},
		logger:   zerolog.Nop(),
		metrics:  metrics.NoopMetrics{},
		feedback: NoopFeedback{},
		token:    NewToken(),
		model:    cfg.Inference.Model,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the controller's cancellation token.
func (c *Controller) Token() *Token { return c.token }

// Model returns the active model.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// update applies fn to the session state under the controller lock.
func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

func (c *Controller) transition(s *Session, to domain.SessionStatus, reason string) {
	c.update(func() {
		if err := Transition(s, to, reason, c.clock.Now()); err != nil {
			c.logger.Error().Err(err).Str("session_id", s.ID).Msg("state transition rejected")
		}
	})
}

// stopped reports whether the task should end as cancelled.
func (c *Controller) stopped(ctx context.Context) bool {
	return c.token.Cancelled() || ctx.Err() != nil
}

// Run executes task until it completes, fails, is cancelled or reaches the
// step limit. Only precondition failures are returned as errors; every run
// that starts ends with a result carrying the full execution log.
func (c *Controller) Run(ctx context.Context, task string) (*domain.TaskResult, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, dperrors.ErrEmptyTask
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, dperrors.ErrTaskAlreadyRunning
	}
	c.running = true
	c.token.Reset()
	s := NewSession(task, c.model, c.cfg.Agent.ContextWindow, c.clock.Now())
	c.session = s
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := c.token.Done()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.transition(s, domain.StatusRunning, "task started")
	c.metrics.TaskStarted(s.ID, s.Model)
	c.feedback.Start(task, c.cfg.Agent.MaxSteps)
	c.logger.Info().Str("session_id", s.ID).Str("model", s.Model).Str("task", task).
		Int("max_steps", c.cfg.Agent.MaxSteps).Msg("starting task")

	result := c.loop(ctx, s)
	c.cleanup(ctx, s, result)
	return result, nil
}

// loop is the step state machine. It always leaves s in a terminal state.
func (c *Controller) loop(ctx context.Context, s *Session) *domain.TaskResult {
	maxSteps := c.cfg.Agent.MaxSteps
	guard := loopguard.New(c.cfg.Agent.LoopWarnThreshold, c.cfg.Agent.LoopAbortThreshold)
	warning := ""

	for step := 1; step <= maxSteps; step++ {
		if c.stopped(ctx) {
			return c.cancelled(s, step)
		}
		c.update(func() { s.Step = step })
		c.feedback.StepStarted(step, maxSteps)
		log := c.logger.With().Str("session_id", s.ID).Int("step", step).Logger()

		frame, err := c.capturer.Capture(ctx)
		if err != nil {
			if c.stopped(ctx) {
				return c.cancelled(s, step)
			}
			return c.fail(s, step, "capture", "Screen capture failed", err)
		}

		prompt, err := prompts.Render(prompts.AgentStep, prompts.StepData{
			Task:        s.Task,
			Step:        step,
			MaxSteps:    maxSteps,
			Width:       frame.Width,
			Height:      frame.Height,
			Context:     s.Context.Entries(),
			LoopWarning: warning,
			Elements:    c.elements,
		})
		if err != nil {
			return c.fail(s, step, "prompt", "Prompt rendering failed", err)
		}

		text, err := c.infer(ctx, s.Model, prompt, frame)
		if err != nil {
			if c.stopped(ctx) || errors.Is(err, dperrors.ErrTaskCancelled) {
				return c.cancelled(s, step)
			}
			log.Error().Err(err).Msg("AI generation failed")
			return c.fail(s, step, "inference", "AI generation failed", err)
		}

		action, err := parser.Parse(text)
		if err != nil {
			log.Error().Err(err).Str("response", truncate(text, responseLogLimit)).Msg("could not parse AI response")
			return c.fail(s, step, "parse", "Could not parse AI response", err)
		}
		log = log.With().Str("action", action.Tag).Logger()
		if action.Observation != "" {
			log.Debug().Str("observation", action.Observation).Msg("model observation")
		}

		check := guard.Observe(loopguard.Signature(action))
		switch check.Verdict {
		case loopguard.Abort:
			log.Error().Int("repeats", check.Count).Msg("breaking out of action loop")
			return c.fail(s, step, action.Tag, "Stopped: AI stuck in loop repeating '"+action.Tag+"'", check.Err())
		case loopguard.Warn:
			warning = check.Message + ". Try a different approach."
			if action.Type == domain.ActionOpenApp {
				warning += openAppLoopHint
			}
			log.Warn().Int("repeats", check.Count).Msg("action loop detected")
		case loopguard.OK:
			warning = ""
		}

		if action.Completes() {
			entry := c.entry(step, action, "Task completed successfully!", true)
			s.Append(entry)
			c.feedback.StepFinished(entry)
			c.transition(s, domain.StatusCompleted, "task complete")
			log.Info().Int("steps_completed", s.StepsCompleted).Msg("task completed")
			return s.Result(true, MessageCompleted, nil)
		}

		log.Info().Str("reasoning", action.Reasoning).Msg("executing step")
		out, err := c.dispatch(ctx, frame, action)
		if err != nil {
			if c.stopped(ctx) {
				return c.cancelled(s, step)
			}
			return c.fail(s, step, action.Tag, "Action failed", err)
		}
		if out.sideEffect {
			c.update(func() { s.StepsCompleted++ })
		}

		entry := c.entry(step, action, out.result, out.success)
		s.Append(entry)
		s.Context.Add(domain.ContextEntry{
			Step:        step,
			Action:      action.Tag,
			Reasoning:   action.Reasoning,
			Observation: action.Observation,
			Result:      out.result,
		})
		c.feedback.StepFinished(entry)

		if err := c.clock.Sleep(ctx, c.cfg.Agent.StepDelay); err != nil {
			return c.cancelled(s, step)
		}
	}

	c.transition(s, domain.StatusStepLimitReached, "step limit reached")
	msg := fmt.Sprintf(stepLimitFormat, maxSteps)
	c.logger.Warn().Str("session_id", s.ID).Int("max_steps", maxSteps).Msg("step limit reached")
	return s.Result(true, msg, nil)
}

// infer asks the model for the next action, streaming when enabled.
func (c *Controller) infer(ctx context.Context, model, prompt string, frame *capture.Frame) (string, error) {
	inf := c.cfg.Inference
	req := ai.NewGenerateRequest(prompt,
		ai.WithModel(model),
		ai.WithImages(frame.Base64),
		ai.WithKeepAlive(inf.KeepAlive),
		ai.WithOptions(ai.AgentOptions(inf)),
		ai.WithTimeout(inf.Timeout),
	)

	var (
		resp *ai.Response
		err  error
	)
	if inf.Stream {
		resp, err = c.client.GenerateStream(ctx, req, func(tok string) error {
			if c.token.Cancelled() {
				return dperrors.ErrTaskCancelled
			}
			c.feedback.Token(tok)
			return nil
		})
	} else {
		resp, err = c.client.Generate(ctx, req)
		if err == nil {
			c.feedback.Token(resp.Text)
		}
	}
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", dperrors.ErrEmptyResponse
	}
	return text, nil
}

func (c *Controller) entry(step int, a *domain.Action, outcome string, success bool) domain.ExecutionLogEntry {
	e := domain.ExecutionLogEntry{
		Step:        step,
		Action:      a.Tag,
		Reasoning:   a.Reasoning,
		Observation: a.Observation,
		Outcome:     outcome,
		Success:     success,
		Timestamp:   c.clock.Now(),
	}
	switch a.Type {
	case domain.ActionTypeText:
		e.Preview = executor.Preview(a.Args.Text)
	case domain.ActionOpenApp:
		e.Preview = a.Args.App
	case domain.ActionDetectElement:
		e.Preview = a.Args.Element
	default:
	}
	return e
}

// fail records a fatal step outcome and moves the session to Failed.
func (c *Controller) fail(s *Session, step int, action, what string, err error) *domain.TaskResult {
	entry := domain.ExecutionLogEntry{
		Step:      step,
		Action:    action,
		Outcome:   what + ": " + err.Error(),
		Timestamp: c.clock.Now(),
	}
	s.Append(entry)
	c.feedback.StepFinished(entry)
	c.transition(s, domain.StatusFailed, what)
	return s.Result(false, what, err)
}

func (c *Controller) cancelled(s *Session, step int) *domain.TaskResult {
	c.logger.Info().Str("session_id", s.ID).Int("step", step).Msg("task cancelled by user")
	s.Append(domain.ExecutionLogEntry{
		Step:      step,
		Action:    "cancel",
		Outcome:   MessageCancelled,
		Timestamp: c.clock.Now(),
	})
	c.transition(s, domain.StatusCancelled, MessageCancelled)
	r := s.Result(false, MessageCancelled, nil)
	r.Error = ErrorCancelled
	return r
}

// cleanup always runs after the loop: stop the feedback surface, unload the
// model, prune screenshots, then report and persist the result.
func (c *Controller) cleanup(ctx context.Context, s *Session, result *domain.TaskResult) {
	bg := context.WithoutCancel(ctx)

	c.feedback.Stop()
	c.unload(bg, s.Model)

	if removed, err := c.capturer.Prune(c.cfg.Capture.Retention); err != nil {
		c.logger.Warn().Err(err).Msg("failed to prune screenshots")
	} else if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("pruned screenshots")
	}

	c.metrics.TaskFinished(s.ID, string(result.Status), result.StepsCompleted, result.FinishedAt.Sub(result.StartedAt))
	if c.recorder != nil {
		if err := c.recorder.Save(bg, result); err != nil {
			c.logger.Warn().Err(err).Str("session_id", s.ID).Msg("failed to save session history")
		}
	}

	c.logger.Info().Str("session_id", s.ID).Str("status", string(result.Status)).
		Int("steps_completed", result.StepsCompleted).Msg("task finished")

	c.update(func() { c.running = false })
}

func (c *Controller) unload(ctx context.Context, model string) {
	if model == "" {
		return
	}
	timeout := c.cfg.Inference.UnloadTimeout
	if timeout <= 0 {
		timeout = constants.DefaultUnloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.client.Unload(ctx, model); err != nil {
		c.logger.Warn().Err(err).Str("model", model).Msg("failed to unload model")
		return
	}
	c.logger.Debug().Str("model", model).Msg("model unloaded")
}

// Cancel is the emergency stop: it sets the token so the running task stops
// at its next suspension point and unloads the active models right away.
func (c *Controller) Cancel(ctx context.Context) *domain.CancelResult {
	first := c.token.Cancel()
	c.logger.Warn().Bool("first", first).Msg("emergency stop requested")

	c.mu.Lock()
	models := []string{c.model}
	if vm := c.visionModelLocked(); !slices.Contains(models, vm) {
		models = append(models, vm)
	}
	c.mu.Unlock()

	for _, m := range models {
		c.unload(ctx, m)
	}
	return &domain.CancelResult{Success: true, Message: MessageEmergencyStop}
}

func (c *Controller) visionModelLocked() string {
	if c.cfg.Inference.VisionModel != "" {
		return c.cfg.Inference.VisionModel
	}
	return c.model
}

// Chat sends message with the running conversation and appends both turns to
// it. When includeScreen is set the current screen is attached.
func (c *Controller) Chat(ctx context.Context, message string, includeScreen bool) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is empty", dperrors.ErrInvalidParameter)
	}

	c.mu.Lock()
	model := c.model
	history := append([]domain.ChatMessage(nil), c.history...)
	c.mu.Unlock()

	user := domain.ChatMessage{Role: domain.RoleUser, Content: message}
	w, h := c.exec.ScreenSize()
	if includeScreen {
		frame, err := c.capturer.Capture(ctx)
		if err != nil {
			return "", err
		}
		user.Images = []string{frame.Base64}
		user.Content += " [Screen included]"
		w, h = frame.Width, frame.Height
	}

	system, err := prompts.Render(prompts.ChatSystem, prompts.ChatSystemData{Width: w, Height: h})
	if err != nil {
		return "", err
	}
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, user)

	resp, err := c.client.Chat(ctx, &ai.ChatRequest{
		Model:     model,
		Messages:  messages,
		KeepAlive: c.cfg.Inference.KeepAlive,
		Timeout:   c.cfg.Inference.Timeout,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.history = append(c.history,
		domain.ChatMessage{Role: domain.RoleUser, Content: user.Content},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: resp.Text},
	)
	c.mu.Unlock()
	return resp.Text, nil
}

// History returns a copy of the chat conversation.
func (c *Controller) History() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChatMessage(nil), c.history...)
}

// AnalyzeScreen captures the screen and asks the vision model question about it.
func (c *Controller) AnalyzeScreen(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = prompts.DefaultAnalyzeQuestion
	}
	frame, err := c.capturer.Capture(ctx)
	if err != nil {
		return "", err
	}
	prompt, err := prompts.Render(prompts.AnalyzeScreen, prompts.AnalyzeData{
		Question: question,
		Width:    frame.Width,
		Height:   frame.Height,
	})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	model := c.visionModelLocked()
	c.mu.Unlock()

	resp, err := c.client.Generate(ctx, ai.NewGenerateRequest(prompt,
		ai.WithModel(model),
		ai.WithImages(frame.Base64),
		ai.WithKeepAlive(c.cfg.Inference.KeepAlive),
		ai.WithTimeout(c.cfg.Inference.Timeout),
	))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// SetModel switches the active model after checking that the endpoint has it.
func (c *Controller) SetModel(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	models, err := c.client.ListModels(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(models, name) {
		return fmt.Errorf("%w: '%s'", dperrors.ErrModelNotFound, name)
	}
	c.mu.Lock()
	c.model = name
	c.mu.Unlock()
	c.logger.Info().Str("model", name).Msg("model selected")
	return nil
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() domain.SessionStatusInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := domain.SessionStatusInfo{
		Model:        c.model,
		Provider:     c.cfg.Inference.Provider,
		Status:       domain.StatusIdle,
		Running:      c.running,
		MaxSteps:     c.cfg.Agent.MaxSteps,
		Permissions:  c.exec.Permissions().Snapshot(),
		HistoryTurns: len(c.history),
	}
	if c.session != nil {
		info.Status = c.session.Status
		info.Step = c.session.Step
	}
	return info
}

// ClearHistory drops the chat conversation, the last task's context window,
// the executor audit trail and the detection cache.
func (c *Controller) ClearHistory() {
	c.mu.Lock()
	c.history = nil
	if c.session != nil && !c.running {
		c.session.Context.Clear()
	}
	c.mu.Unlock()

	c.exec.ClearAudit()
	if c.detector != nil {
		c.detector.InvalidateAll()
	}
}

// CheckConnection verifies the inference endpoint is reachable.
func (c *Controller) CheckConnection(ctx context.Context) error {
	return c.client.CheckConnection(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
