package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/deskpilot/internal/tui"
)

// chatExitWords end an interactive chat.
//
//nolint:gochecknoglobals // Static lookup table
var chatExitWords = map[string]bool{"exit": true, "quit": true, "/exit": true, "/quit": true}

// chatReply is the JSON shape of chat and analyze output.
type chatReply struct {
	Model string `json:"model"`
	Reply string `json:"reply"`
}

// AddChatCommand adds the chat command to the root command.
func AddChatCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	var includeScreen bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the model",
		Long: `Send a message to the model. With --screen the current screen is attached.

Without a message, chat reads one message per line from stdin and keeps the
conversation until EOF or "exit".

Examples:
  deskpilot chat "what can you do?"
  deskpilot chat --screen "which window is focused?"
  deskpilot chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd, strings.Join(args, " "), includeScreen, flags, deps)
		},
	}

	cmd.Flags().BoolVarP(&includeScreen, "screen", "s", false, "attach a screenshot to each message")

	root.AddCommand(cmd)
}

func runChat(ctx context.Context, cmd *cobra.Command, message string, includeScreen bool, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	send := func(msg string) error {
		reply, err := a.ctl.Chat(ctx, msg, includeScreen)
		if err != nil {
			return err
		}
		if flags.Output == OutputJSON {
			return out.JSON(chatReply{Model: a.ctl.Model(), Reply: reply})
		}
		out.Markdown(reply)
		return nil
	}

	if strings.TrimSpace(message) != "" {
		return send(message)
	}
	return chatLoop(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), flags, send)
}

// chatLoop feeds stdin lines to send until EOF, an exit word or ctx is done.
func chatLoop(ctx context.Context, in io.Reader, prompt io.Writer, flags *GlobalFlags, send func(string) error) error {
	interactive := flags.Output == OutputText
	scanner := bufio.NewScanner(in)
	for {
		if interactive {
			_, _ = fmt.Fprint(prompt, tui.StyleBold.Render("you> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if chatExitWords[strings.ToLower(line)] {
			return nil
		}
		if err := send(line); err != nil {
			return err
		}
	}
}

// AddAnalyzeCommand adds the analyze command to the root command.
func AddAnalyzeCommand(root *cobra.Command, flags *GlobalFlags, deps *Deps) {
	cmd := &cobra.Command{
		Use:   "analyze [question]",
		Short: "Ask the vision model about the current screen",
		Long: `Capture the screen once and ask the vision model a question about it.
Without a question the model describes what is visible.

Examples:
  deskpilot analyze
  deskpilot analyze "is there an error dialog open?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd, strings.Join(args, " "), flags, deps)
		},
	}
	root.AddCommand(cmd)
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, question string, flags *GlobalFlags, deps *Deps) error {
	out := newOutput(cmd.OutOrStdout(), flags)

	cfg, err := loadConfig(ctx, deps, nil)
	if err != nil {
		return err
	}
	a, err := buildApp(deps, cfg, appOptions{})
	if err != nil {
		return err
	}

	reply, err := a.ctl.AnalyzeScreen(ctx, question)
	if err != nil {
		return err
	}
	if flags.Output == OutputJSON {
		return out.JSON(chatReply{Model: cfg.Inference.ResolvedVisionModel(), Reply: reply})
	}
	out.Markdown(reply)
	return nil
}
