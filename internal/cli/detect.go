package cli

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mrz1836/deskpilot/internal/capture"
	dperrors "github.com/mrz1836/deskpilot/internal/errors"
	"github.com/mrz1836/deskpilot/internal/vision"
)

// detectOptions holds flags for the detect command.
type detectOptions struct {
	image string
	list  bool
}

// AddDetectCommand adds the detect command to the root command.
func AddDetectCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	opts := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <element>",
		Short: "Locate a taskbar element on the screen",
		Long: `Locate a known UI element by template matching, either on a live capture
or on a saved screenshot given with --image.

Known elements: Start button, Edge browser, File Explorer, Search bar.
Reference glyphs are read from the detection assets directory
(~/.deskpilot/assets by default).

Examples:
  deskpilot detect "start button"
  deskpilot detect edge --image ~/.deskpilot/screenshots/screen_20250101_120000_1.jpg
  deskpilot detect --list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.list {
				return runDetectList(cmd.Context(), cmd, flags, deps)
			}
			if len(args) == 0 {
				return dperrors.NewExitCode2Error(fmt.Errorf("%w: name an element to detect", dperrors.ErrUnknownElement))
			}
			return runDetect(cmd.Context(), cmd, strings.Join(args, " "), opts, flags, deps)
		},
	}

	cmd.Flags().StringVarP(&opts.image, "image", "i", "", "detect on this image file instead of the live screen")
	cmd.Flags().BoolVarP(&opts.list, "list", "l", false, "list known elements and whether their glyph is available")

	root.AddCommand(cmd)
}

func runDetect(ctx context.Context, cmd *cobra.Command, query string, opts *detectOptions, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	if _, ok := vision.Resolve(query); !ok {
		return fmt.Errorf("%w: %q", dperrors.ErrUnknownElement, query)
	}

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	var screen image.Image
	if opts.image != "" {
		screen, err = capture.LoadImage(opts.image)
	} else {
		screen, err = deps.Grabber.Grab(ctx)
	}
	if err != nil {
		return err
	}

	res, err := a.detector.Detect(ctx, screen, query)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("%w: %q", dperrors.ErrElementNotFound, query)
	}

	if flags.Output == OutputJSON {
		return out.JSON(res)
	}
	out.Success(res.String())
	return nil
}

func runDetectList(ctx context.Context, cmd *cobra.Command, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	title := cases.Title(language.English)
	rows := make([][]string, 0, len(vision.Elements()))
	for _, el := range vision.Elements() {
		available := "no"
		if a.detector.Enabled(el.Key) {
			available = "yes"
		}
		rows = append(rows, []string{el.Key, title.String(el.Name), el.Asset, available})
	}
	out.Table([]string{"KEY", "NAME", "ASSET", "AVAILABLE"}, rows)
	return nil
}
