package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/engine"
	"github.com/agentdeck/agentdeck/sanitize"
)

var followAgent string

// followCmd: agentdeck follow <file>
var followCmd = &cobra.Command{
	Use:   "follow <file>",
	Short: "Follow a growing agent output file",
	Long: `Follow tails an agent output file as it is written, feeding appended
lines through the engine and printing progress. Exits when the session
reaches a terminal state or on interrupt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, r, err := setup()
		if err != nil {
			return err
		}
		path := args[0]
		sessionID := filepath.Base(path)

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng := engine.New(engine.Config{})
		stepsSeen := 0
		eng.AddObserver(func(view engine.SessionView) {
			for ; stepsSeen < len(view.Steps); stepsSeen++ {
				step := view.Steps[stepsSeen]
				label := step.Label
				if label == "" {
					label = step.ID
				}
				fmt.Printf("  • %s\n", label)
			}
		})

		var pending string
		feed := func() (engine.SessionView, bool) {
			data, err := io.ReadAll(f)
			if err != nil || len(data) == 0 {
				return engine.SessionView{}, false
			}
			pending += string(data)
			var view engine.SessionView
			applied := false
			for {
				line, rest, ok := strings.Cut(pending, "\n")
				if !ok {
					break
				}
				pending = rest
				filtered, keep := sanitize.FilterNoise(followAgent, line)
				if !keep {
					continue
				}
				view = eng.Apply(engine.Chunk{
					SessionID: sessionID,
					Content:   filtered + "\n",
				})
				applied = true
			}
			return view, applied
		}

		if view, ok := feed(); ok && !view.IsStreaming {
			fmt.Print(r.View(view))
			return nil
		}

		for {
			select {
			case <-ctx.Done():
				view := eng.Apply(engine.Chunk{SessionID: sessionID, Finished: true})
				fmt.Print(r.View(view))
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != filepath.Clean(path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if view, ok := feed(); ok && !view.IsStreaming {
					fmt.Print(r.View(view))
					return nil
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return err
			}
		}
	},
}

func init() {
	followCmd.Flags().StringVar(&followAgent, "agent", "",
		"Agent name for noise filtering (codex, claude, gemini)")
}
