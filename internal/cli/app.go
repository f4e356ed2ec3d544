package cli

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/mrz1836/deskpilot/internal/agent"
	"github.com/mrz1836/deskpilot/internal/ai"
	"github.com/mrz1836/deskpilot/internal/capture"
	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/domain"
	"github.com/mrz1836/deskpilot/internal/executor"
	"github.com/mrz1836/deskpilot/internal/history"
	"github.com/mrz1836/deskpilot/internal/metrics"
	"github.com/mrz1836/deskpilot/internal/tui"
	"github.com/mrz1836/deskpilot/internal/vision"
)

// Deps are the outside-world backends the commands are built from.
type Deps struct {
	// LoadConfig returns the effective configuration.
	LoadConfig func(ctx context.Context) (*config.Config, error)

	// NewClient builds the inference client for the configured provider.
	NewClient func(cfg config.InferenceConfig, opts ...ai.FactoryOption) (ai.Client, error)

	// Grabber captures the screen.
	Grabber capture.Grabber

	// Driver performs mouse and keyboard input.
	Driver executor.Driver

	// Launcher starts applications for open_app. Nil uses the shell launcher.
	Launcher executor.Launcher

	// Interactive reports whether menus may be shown.
	Interactive func() bool

	// NewLogger builds the CLI logger from the verbosity flags.
	NewLogger func(verbose, quiet bool) zerolog.Logger
}

// DefaultDeps returns the production backends: viper config, the real model
// client, the OS screenshot API and robotgo input.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig:  config.Load,
		NewClient:   ai.NewClient,
		Grabber:     capture.DisplayGrabber{},
		Driver:      executor.RobotDriver{},
		Interactive: func() bool { return tui.IsTerminal(os.Stdin) && tui.IsTerminal(os.Stdout) },
		NewLogger:   InitLogger,
	}
}

// app is one fully wired agent stack.
type app struct {
	cfg      *config.Config
	client   ai.Client
	capturer *capture.Capturer
	detector *vision.Detector
	exec     *executor.Executor
	ctl      *agent.Controller
	store    *history.FileStore
	logger   zerolog.Logger
}

// appOptions tunes buildApp per command.
type appOptions struct {
	perms    *domain.Permissions
	metrics  metrics.Metrics
	feedback agent.Feedback
	token    *agent.Token
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(ctx context.Context, deps *Deps, overrides *config.Config) (*config.Config, error) {
	ctx = GetLogger().WithContext(ctx)
	cfg, err := deps.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		return cfg, nil
	}
	merged := *cfg
	if overrides.Inference.Model != "" {
		merged.Inference.Model = overrides.Inference.Model
	}
	if overrides.Agent.MaxSteps != 0 {
		merged.Agent.MaxSteps = overrides.Agent.MaxSteps
	}
	if overrides.Metrics.Addr != "" {
		merged.Metrics.Addr = overrides.Metrics.Addr
		merged.Metrics.Enabled = true
	}
	if err := config.Validate(&merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// buildApp wires client, capturer, detector, executor, history store and
// controller from cfg.
func buildApp(deps *Deps, cfg *config.Config, opts appOptions) (*app, error) {
	logger := GetLogger()
	m := metrics.OrNoop(opts.metrics)
	perms := opts.perms
	if perms == nil {
		perms = domain.NewPermissions()
	}

	clientOpts := []ai.FactoryOption{ai.WithFactoryLogger(logger.With().Str("component", "ai").Logger())}
	if opts.metrics != nil {
		clientOpts = append(clientOpts, ai.WithFactoryMetrics(m))
	}
	client, err := deps.NewClient(cfg.Inference, clientOpts...)
	if err != nil {
		return nil, err
	}

	shots, err := cfg.ScreenshotsDir()
	if err != nil {
		return nil, err
	}
	capturer := capture.New(deps.Grabber, shots,
		capture.WithQuality(cfg.Capture.JPEGQuality),
		capture.WithLogger(logger.With().Str("component", "capture").Logger()),
	)

	assets, err := cfg.AssetsDir()
	if err != nil {
		return nil, err
	}
	detector := vision.NewDetector(assets,
		vision.WithDetectorLogger(logger.With().Str("component", "vision").Logger()),
		vision.WithDetectorMetrics(m),
		vision.WithThresholds(vision.Thresholds{
			High:  cfg.Detection.HighConfidence,
			Floor: cfg.Detection.ConfidenceFloor,
		}),
		vision.WithScales(cfg.Detection.Scales),
	)
	var elements []string
	for _, el := range vision.Elements() {
		if detector.Enabled(el.Key) {
			elements = append(elements, el.Name)
		}
	}

	execOpts := []executor.Option{
		executor.WithLogger(logger.With().Str("component", "executor").Logger()),
		executor.WithMetrics(m),
	}
	if deps.Launcher != nil {
		execOpts = append(execOpts, executor.WithLauncher(deps.Launcher))
	}
	exec := executor.New(deps.Driver, perms, execOpts...)

	histDir, err := cfg.HistoryDir()
	if err != nil {
		return nil, err
	}
	store, err := history.NewFileStore(histDir, history.WithLogger(logger.With().Str("component", "history").Logger()))
	if err != nil {
		return nil, err
	}

	ctlOpts := []agent.Option{
		agent.WithLogger(logger.With().Str("component", "agent").Logger()),
		agent.WithMetrics(m),
		agent.WithRecorder(store),
		agent.WithElements(elements...),
	}
	if opts.feedback != nil {
		ctlOpts = append(ctlOpts, agent.WithFeedback(opts.feedback))
	}
	if opts.token != nil {
		ctlOpts = append(ctlOpts, agent.WithToken(opts.token))
	}
	ctl := agent.New(cfg, client, capturer, detector, exec, ctlOpts...)

	return &app{
		cfg:      cfg,
		client:   client,
		capturer: capturer,
		detector: detector,
		exec:     exec,
		ctl:      ctl,
		store:    store,
		logger:   logger,
	}, nil
}

// newOutput creates the output writer for the global --output flag.
func newOutput(w io.Writer, flags *GlobalFlags) tui.Output {
	tui.CheckNoColor()
	return tui.NewOutput(w, flags.Output)
}
