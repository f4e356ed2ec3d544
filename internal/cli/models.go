package cli

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/deskpilot/internal/domain"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// modelsResponse is the JSON shape of the models command.
type modelsResponse struct {
	Active string   `json:"active"`
	Models []string `json:"models"`
}

// AddModelsCommand adds the models command to the root command.
func AddModelsCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models installed on the inference endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runModels(cmd.Context(), cmd, flags, deps)
		},
	}
	root.AddCommand(cmd)
}

func runModels(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	models, err := a.client.ListModels(ctx)
	if err != nil {
		return err
	}
	slices.Sort(models)

	active := a.ctl.Model()
	if flags.Output == OutputJSON {
		return out.JSON(modelsResponse{Active: active, Models: models})
	}
	if len(models) == 0 {
		out.Warning("No models installed")
		return nil
	}
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		mark := ""
		if m == active {
			mark = "*"
		}
		rows = append(rows, []string{mark, m})
	}
	out.Table([]string{"", "MODEL"}, rows)
	if !slices.Contains(models, active) {
		out.Warning("Configured model " + active + " is not installed")
	}
	return nil
}

// AddUnloadCommand adds the unload command to the root command.
func AddUnloadCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "unload [model...]",
		Short: "Release models from the inference server's memory",
		Long: `Ask the inference server to unload models. Without arguments the
configured model and vision model are unloaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnload(cmd.Context(), cmd, args, flags, deps)
		},
	}
	root.AddCommand(cmd)
}

func runUnload(ctx context.Context, cmd *cobra.Command, models []string, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	if len(models) == 0 {
		models = []string{cfg.Inference.Model}
		if vm := cfg.Inference.ResolvedVisionModel(); vm != cfg.Inference.Model {
			models = append(models, vm)
		}
	}

	unloaded := make([]string, 0, len(models))
	for _, m := range models {
		if err := a.client.Unload(ctx, m); err != nil {
			return dperrors.Wrapf(err, "unload %s", m)
		}
		unloaded = append(unloaded, m)
		a.logger.Debug().Str("model", m).Msg("model unloaded")
	}

	if flags.Output == OutputJSON {
		return out.JSON(map[string][]string{"unloaded": unloaded})
	}
	out.Success("Unloaded " + strings.Join(unloaded, ", "))
	return nil
}

// statusResponse is the JSON shape of the status command.
type statusResponse struct {
	domain.SessionStatusInfo
	Endpoint  string `json:"endpoint"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// AddStatusCommand adds the status command to the root command.
func AddStatusCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the agent configuration and endpoint health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, flags, deps)
		},
	}
	root.AddCommand(cmd)
}

func runStatus(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{perms: domain.NewPermissions(configuredCapabilities(cfg.Permissions)...)})
	if err != nil {
		return err
	}

	resp := statusResponse{
		SessionStatusInfo: a.ctl.Status(),
		Endpoint:          cfg.Inference.BaseURL,
		Reachable:         true,
	}
	if err := a.ctl.CheckConnection(ctx); err != nil {
		resp.Reachable = false
		resp.Error = dperrors.UserMessage(err)
	}

	if flags.Output == OutputJSON {
		return out.JSON(resp)
	}

	reach := "yes"
	if !resp.Reachable {
		reach = "no (" + resp.Error + ")"
	}
	rows := [][]string{
		{"Status", string(resp.Status)},
		{"Provider", resp.Provider},
		{"Endpoint", resp.Endpoint},
		{"Reachable", reach},
		{"Model", resp.Model},
		{"Vision model", cfg.Inference.ResolvedVisionModel()},
		{"Max steps", strconv.Itoa(resp.MaxSteps)},
	}
	for _, c := range domain.AllCapabilities() {
		granted := "denied"
		if resp.Permissions[c] {
			granted = "granted"
		}
		rows = append(rows, []string{"Permission " + string(c), granted})
	}
	out.Table([]string{"FIELD", "VALUE"}, rows)
	return nil
}
