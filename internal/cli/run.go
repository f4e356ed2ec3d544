package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/deskpilot/internal/agent"
	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/metrics"
	"github.com/mrz1836/deskpilot/internal/signal"
	"github.com/mrz1836/deskpilot/internal/tui"
)

// errTaskUnsuccessful is returned when a task ends in any state but completed.
var errTaskUnsuccessful = stderrors.New("task did not complete")

// Permission keywords accepted by --allow besides capability names.
const (
	allowAll  = "all"
	allowNone = "none"
)

// runOptions holds flags for the run command.
type runOptions struct {
	maxSteps    int
	model       string
	allow       []string
	noStream    bool
	metricsAddr string
	assumeYes   bool
}

// AddRunCommand adds the run command to the root command.
func AddRunCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run a task against the desktop",
		Long: `Run a natural-language task. Each step captures the screen, asks the
model for one action and executes it if the matching permission was granted.

Permissions come from --allow, otherwise from the permissions section of the
config. On a terminal you are asked to confirm them unless --yes is given.

Press Ctrl+C once for an emergency stop; press it again to exit immediately.

Examples:
  deskpilot run "open notepad and type hello" --allow process,keyboard
  deskpilot run "open the start menu" --allow mouse --max-steps 5
  deskpilot run "check the weather" --allow all --yes -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd.Context(), cmd, strings.Join(args, " "), flags, opts, deps)
		},
	}

	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "maximum number of steps (default from config)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model to use (default from config)")
	cmd.Flags().StringSliceVarP(&opts.allow, "allow", "a", nil, "capabilities to grant: mouse, keyboard, file, process, all or none")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "wait for whole model replies instead of streaming tokens")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the task runs")
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "grant the configured permissions without asking")

	root.AddCommand(cmd)
}

// runTask executes the run command.
func runTask(ctx context.Context, cmd *cobra.Command, task string, flags *GlobalFlags, opts *runOptions, deps *Deps) error {
	logger := GetLogger()
	out := newOutput(cmd.OutOrStdout(), flags)

	if strings.TrimSpace(task) == "" {
		return dperrors.ErrEmptyTask
	}

	cfg, err := loadConfig(ctx, deps, &config.Config{
		Inference: config.InferenceConfig{Model: opts.model},
		Agent:     config.AgentConfig{MaxSteps: opts.maxSteps},
		Metrics:   config.MetricsConfig{Addr: opts.metricsAddr},
	})
	if err != nil {
		return err
	}
	if opts.noStream {
		cfg.Inference.Stream = false
	}

	granted, err := resolvePermissions(opts.allow, cfg.Permissions, opts.assumeYes, deps.Interactive())
	if err != nil {
		return err
	}
	if len(granted) == 0 && flags.Output == OutputText {
		out.Warning("No permissions granted: every gated action will be denied")
	}

	var m metrics.Metrics
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		m = prom
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if serveErr := prom.Serve(metricsCtx, cfg.Metrics.Addr, logger); serveErr != nil {
				logger.Warn().Err(serveErr).Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint stopped")
			}
		}()
	}

	var feedback agent.Feedback = agent.NoopFeedback{}
	if flags.Output == OutputText && !flags.Quiet {
		feedback = tui.NewStepFeedback(ctx, cmd.ErrOrStderr(),
			tui.WithAnimation(deps.Interactive()),
			tui.WithReasoning(flags.Verbose),
		)
	}

	a, err := buildApp(deps, cfg, appOptions{
		perms:    domain.NewPermissions(granted...),
		metrics:  m,
		feedback: feedback,
	})
	if err != nil {
		return err
	}

	handler := signal.NewHandler(ctx, func() {
		res := a.ctl.Cancel(context.WithoutCancel(ctx))
		logger.Warn().Msg(res.Message)
	})
	defer handler.Stop()

	result, err := a.ctl.Run(handler.Context(), task)
	if err != nil {
		return err
	}

	if flags.Output == OutputJSON {
		if err := out.JSON(result); err != nil {
			return err
		}
	} else {
		printResult(out, result)
	}

	if !result.Success {
		return fmt.Errorf("%w: %s", errTaskUnsuccessful, result.Status)
	}
	return nil
}

// resolvePermissions decides which capabilities the task gets. Explicit
// --allow values win; otherwise the configured set is offered in a menu when
// interactive, or used as-is.
func resolvePermissions(allow []string, cfg config.PermissionsConfig, assumeYes, interactive bool) ([]domain.Capability, error) {
	if len(allow) > 0 {
		return parseAllow(allow)
	}

	preset := configuredCapabilities(cfg)
	if assumeYes || !interactive {
		return preset, nil
	}

	granted, err := tui.SelectPermissions(preset)
	if stderrors.Is(err, dperrors.ErrNotInteractive) {
		return preset, nil
	}
	return granted, err
}

// parseAllow converts --allow values into capabilities.
func parseAllow(values []string) ([]domain.Capability, error) {
	seen := make(map[domain.Capability]bool)
	var out []domain.Capability
	for _, v := range values {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case allowAll:
			return domain.AllCapabilities(), nil
		case allowNone:
			continue
		}
		c, err := domain.ParseCapability(v)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

// configuredCapabilities lists the capabilities enabled in the config.
func configuredCapabilities(cfg config.PermissionsConfig) []domain.Capability {
	enabled := map[domain.Capability]bool{
		domain.CapabilityMouse:    cfg.Mouse,
		domain.CapabilityKeyboard: cfg.Keyboard,
		domain.CapabilityFile:     cfg.File,
		domain.CapabilityProcess:  cfg.Process,
	}
	var out []domain.Capability
	for _, c := range domain.AllCapabilities() {
		if enabled[c] {
			out = append(out, c)
		}
	}
	return out
}

// printResult prints the task summary for text output.
func printResult(out tui.Output, result *domain.TaskResult) {
	duration := result.FinishedAt.Sub(result.StartedAt)
	summary := fmt.Sprintf("%s %s after %d steps (%d completed) in %s",
		tui.FormatStatus(result.Status), result.Message, result.StepsTaken, result.StepsCompleted, tui.FormatDuration(duration))

	switch result.Status {
	case domain.StatusCompleted:
		out.Success(summary)
	case domain.StatusStepLimitReached, domain.StatusCancelled:
		out.Warning(summary)
	default:
		out.Info(summary)
	}
	if result.Error != "" {
		out.Error(stderrors.New(result.Error))
	}
	if result.SessionID != "" {
		out.Info("Session " + result.SessionID + " saved; view it with 'deskpilot history show " + result.SessionID + "'")
	}
}
