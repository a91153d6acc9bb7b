// agentdeck - normalize, replay, and follow AI agent CLI output streams.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/config"
	"github.com/agentdeck/agentdeck/render"
)

var (
	styleFlag   string
	widthFlag   int
	verboseFlag bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentdeck",
	Short: "Normalize AI agent CLI output streams",
	Long: `agentdeck - turn fragmented AI agent CLI output into stable session views.

It speaks the codex streaming-events protocol, the responses delta
protocol, claude stream-json, and the plain transcript format, detecting
the right one per session.

Configuration:
  .agentdeck.yaml in the working directory (buffer_limit, render_style,
  render_width, agents)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verboseFlag {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&styleFlag, "style", "",
		"Markdown style: dark, light, notty (default: from config)")
	rootCmd.PersistentFlags().IntVar(&widthFlag, "width", 0,
		"Render width (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(followCmd)
}

// setup loads config and builds a renderer with flag overrides applied.
func setup() (*config.Config, *render.Renderer, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, nil, err
	}
	style := cfg.RenderStyle
	if styleFlag != "" {
		style = styleFlag
	}
	width := cfg.RenderWidth
	if widthFlag > 0 {
		width = widthFlag
	}
	r, err := render.New(width, style)
	if err != nil {
		return nil, nil, err
	}
	return cfg, r, nil
}
