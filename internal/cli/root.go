package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/mediaops/internal/assistant"
	"github.com/maauso/mediaops/internal/media"
)

// ChatSession is a conversation with tool-calling support.
type ChatSession interface {
	Chat(ctx context.Context, messages ...assistant.Message) (assistant.Message, error)
}

// Env holds what the commands operate on.
type Env struct {
	Processor media.Processor
	// NewChat is only called by the chat command.
	NewChat func() (ChatSession, error)
}

// scriptedPrompts are sent by `mediaops chat` without --interactive.
var scriptedPrompts = []string{
	"What's the CPU temperature?",
	"What's the available space in the root directory?",
	"What's the weather in Berlin?",
}

// NewRootCommand builds the command tree. setup runs once before any
// subcommand, so --help works without a valid configuration.
func NewRootCommand(setup func() (*Env, error)) *cobra.Command {
	var (
		env     *Env
		timeout time.Duration
		cancel  context.CancelFunc = func() {}
	)

	root := &cobra.Command{
		Use:           "mediaops",
		Short:         "Run ffmpeg video operations from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			env = e
			if timeout > 0 {
				var ctx context.Context
				ctx, cancel = context.WithTimeout(cmd.Context(), timeout)
				cmd.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			cancel()
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Abort the operation after this long (0 means no limit)")

	processor := func() media.Processor { return env.Processor }

	root.AddCommand(
		newConcatCommand(processor),
		newSplitCommand(processor),
		newTransitionCommand(processor),
		newOverlayCommand(processor),
		newColorCommand(processor),
		newLUTCommand(processor),
		newTextCommand(processor),
		newProbeCommand(processor),
		newChatCommand(func() (ChatSession, error) {
			if env.NewChat == nil {
				return nil, errors.New("chat is not configured")
			}
			return env.NewChat()
		}),
	)
	return root
}

func wrote(cmd *cobra.Command, paths ...string) {
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
	}
}

func newConcatCommand(processor func() media.Processor) *cobra.Command {
	return &cobra.Command{
		Use:   "concat <first> <second> <output>",
		Short: "Join two videos back to back",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := media.ConcatenateRequest{First: args[0], Second: args[1], Output: args[2]}
			if err := processor().Concatenate(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
}

func newSplitCommand(processor func() media.Processor) *cobra.Command {
	var at float64
	cmd := &cobra.Command{
		Use:   "split <input> <before> <after>",
		Short: "Cut a video in two at a timestamp",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := media.SplitRequest{Input: args[0], Before: args[1], After: args[2], At: at}
			if err := processor().Split(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Before, req.After)
			return nil
		},
	}
	cmd.Flags().Float64Var(&at, "at", 0, "Split point in seconds")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newTransitionCommand(processor func() media.Processor) *cobra.Command {
	var (
		kind     string
		duration float64
		offset   float64
	)
	cmd := &cobra.Command{
		Use:   "transition <first> <second> <output>",
		Short: "Join two videos with a visual transition",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := media.ParseTransition(kind)
			if err != nil {
				return err
			}
			req := media.TransitionRequest{
				First:      args[0],
				Second:     args[1],
				Output:     args[2],
				Transition: t,
				Duration:   duration,
			}
			if cmd.Flags().Changed("offset") {
				req.Offset = &offset
			}
			if err := processor().MergeWithTransition(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", string(media.TransitionFade), "Transition name, see `mediaops transition --help`")
	cmd.Flags().Float64Var(&duration, "duration", 1, "Transition duration in seconds")
	cmd.Flags().Float64Var(&offset, "offset", 0, "Transition start in seconds (default: first video duration minus 1s, floored at 0; the fallback offset if probing fails)")
	names := make([]string, 0, len(media.Transitions))
	for _, t := range media.Transitions {
		names = append(names, string(t))
	}
	cmd.Long = "Join two videos with a visual transition.\n\nTransitions: " + strings.Join(names, ", ")
	return cmd
}

func newOverlayCommand(processor func() media.Processor) *cobra.Command {
	var (
		x, y          int
		opacity       float64
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "overlay <input> <image> <output>",
		Short: "Place an image on top of a video",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := media.ImageOverlayRequest{
				Input:   args[0],
				Image:   args[1],
				Output:  args[2],
				X:       x,
				Y:       y,
				Opacity: opacity,
			}
			if cmd.Flags().Changed("width") {
				req.Width = &width
			}
			if cmd.Flags().Changed("height") {
				req.Height = &height
			}
			if err := processor().OverlayImage(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "Left edge of the image in pixels")
	cmd.Flags().IntVar(&y, "y", 0, "Top edge of the image in pixels")
	cmd.Flags().Float64Var(&opacity, "opacity", 0, "Image opacity between 0 and 1 (0 keeps it opaque)")
	cmd.Flags().IntVar(&width, "width", 0, "Scale the image to this width")
	cmd.Flags().IntVar(&height, "height", 0, "Scale the image to this height")
	return cmd
}

func newColorCommand(processor func() media.Processor) *cobra.Command {
	var (
		color         string
		width, height int
	)
	cmd := &cobra.Command{
		Use:   "color <output>",
		Short: "Write a single-frame solid color image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := media.SolidColorRequest{Color: color, Width: width, Height: height, Output: args[0]}
			if err := processor().CreateSolidColorImage(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "black", "Color name, hex (#RRGGBB) or 0xRRGGBB")
	cmd.Flags().IntVar(&width, "width", 0, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Image height in pixels")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func newLUTCommand(processor func() media.Processor) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "lut <input> <output>",
		Short: "Color grade a video with a bundled LUT",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := media.ParseLUT(name)
			if err != nil {
				return err
			}
			req := media.LUTRequest{Input: args[0], Output: args[1], LUT: l}
			if err := processor().ApplyLUT(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "lut", string(media.LUTRetroWarm), "LUT name")
	return cmd
}

func newTextCommand(processor func() media.Processor) *cobra.Command {
	var (
		font, text string
		size       int
	)
	cmd := &cobra.Command{
		Use:   "text <input> <output>",
		Short: "Draw centered text over a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := media.TextOverlayRequest{
				Input:    args[0],
				Output:   args[1],
				FontFile: font,
				Text:     text,
				FontSize: size,
			}
			if err := processor().AddCenteredText(cmd.Context(), req); err != nil {
				return err
			}
			wrote(cmd, req.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&font, "font", "", "Path to a TrueType font file")
	cmd.Flags().StringVar(&text, "text", "", "Text to draw")
	cmd.Flags().IntVar(&size, "size", 50, "Font size")
	_ = cmd.MarkFlagRequired("font")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newProbeCommand(processor func() media.Processor) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <input>",
		Short: "Print the dimensions and duration of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := processor().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(meta)
			}
			_, err = fmt.Fprintf(out, "width: %d, height: %d, duration: %g\n", meta.Width, meta.Height, meta.Duration)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func newChatCommand(newChat func() (ChatSession, error)) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a local Ollama model that can call host tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := newChat()
			if err != nil {
				return err
			}
			if interactive {
				return chatLoop(cmd.Context(), session, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			for _, prompt := range scriptedPrompts {
				if err := exchange(cmd.Context(), session, prompt, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read prompts from stdin until \"exit\"")
	return cmd
}

func exchange(ctx context.Context, session ChatSession, prompt string, out io.Writer) error {
	fmt.Fprintf(out, "User: %s\n", prompt)
	reply, err := session.Chat(ctx, assistant.UserMessage(prompt))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Assistant: %s\n", reply.Content)
	return nil
}

// chatLoop reads one prompt per line. Empty lines are skipped; "exit" or
// end of input stops the loop.
func chatLoop(ctx context.Context, session ChatSession, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, `Type "exit" to quit.`)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return nil
		}
		if err := exchange(ctx, session, line, out); err != nil {
			return err
		}
	}
}
