package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/deskpilot/internal/config"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/tui"
)

// configPaths is the JSON shape of config path.
type configPaths struct {
	Global      string `json:"global" yaml:"global"`
	Project     string `json:"project" yaml:"project"`
	Logs        string `json:"logs" yaml:"logs"`
	History     string `json:"history" yaml:"history"`
	Screenshots string `json:"screenshots" yaml:"screenshots"`
	Assets      string `json:"assets" yaml:"assets"`
}

// AddConfigCommand adds the config command group to the root command.
func AddConfigCommand(root *cobra.Command, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect deskpilot configuration",
		Long: `Inspect the effective configuration.

Configuration is layered (highest precedence first):
  - DESKPILOT_* environment variables (a .env file in the working directory is loaded first)
  - Project config: .deskpilot/config.yaml
  - Global config: ~/.deskpilot/config.yaml
  - Built-in defaults`,
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration",
		Long: `Display the effective configuration after all layers are merged.

Examples:
  deskpilot config show
  deskpilot config show --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd.Context(), cmd.OutOrStdout(), format, deps)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")

	paths := &cobra.Command{
		Use:   "path",
		Short: "Show where configuration, logs and data live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigPath(cmd.Context(), cmd.OutOrStdout(), format, deps)
		},
	}
	paths.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")

	cmd.AddCommand(show, paths)
	root.AddCommand(cmd)
}

// runConfigShow writes the effective configuration to w.
func runConfigShow(ctx context.Context, w io.Writer, format string, deps *Deps) error {
	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return tui.NewJSONOutput(w).JSON(cfg)
	case "yaml":
		keyEnv := cfg.Inference.APIKeyEnv
		_, keySet := os.LookupEnv(keyEnv)
		if _, err := fmt.Fprintf(w, "# Effective deskpilot configuration\n# %s set: %t\n", keyEnv, keySet); err != nil {
			return err
		}
		return encodeYAML(w, cfg)
	default:
		return dperrors.NewExitCode2Error(fmt.Errorf("%w: %q must be yaml or json", dperrors.ErrInvalidOutputFormat, format))
	}
}

// runConfigPath writes the resolved file and directory locations to w.
func runConfigPath(ctx context.Context, w io.Writer, format string, deps *Deps) error {
	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}

	global, err := config.GlobalConfigPath()
	if err != nil {
		return err
	}
	logs, err := config.LogsDir()
	if err != nil {
		return err
	}
	hist, err := cfg.HistoryDir()
	if err != nil {
		return err
	}
	shots, err := cfg.ScreenshotsDir()
	if err != nil {
		return err
	}
	assets, err := cfg.AssetsDir()
	if err != nil {
		return err
	}
	p := configPaths{
		Global:      global,
		Project:     config.ProjectConfigPath(),
		Logs:        logs,
		History:     hist,
		Screenshots: shots,
		Assets:      assets,
	}

	if format == "json" {
		return tui.NewJSONOutput(w).JSON(p)
	}
	return encodeYAML(w, p)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return dperrors.Wrap(err, "failed to encode YAML")
	}
	return enc.Close()
}
