package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/engine"
)

var (
	replayChunkSize int
	replaySession   string
	replayJSON      bool
)

// replayCmd: agentdeck replay <capture-file>
var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a captured stream through the engine",
	Long: `Replay feeds a captured agent output file through the reconciliation
engine in fixed-size chunks and prints the final session view. Shrinking
--chunk-size exercises the same split-tolerant path live streams use.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		sessionID := replaySession
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		eng := engine.New(engine.Config{})
		var view engine.SessionView
		text := string(data)
		for pos := 0; pos < len(text); pos += replayChunkSize {
			end := min(pos+replayChunkSize, len(text))
			view = eng.Apply(engine.Chunk{
				SessionID: sessionID,
				Content:   text[pos:end],
				Finished:  end == len(text),
			})
		}
		if len(text) == 0 {
			view = eng.Apply(engine.Chunk{SessionID: sessionID, Finished: true})
		}

		if replayJSON {
			out, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		_, r, err := setup()
		if err != nil {
			return err
		}
		fmt.Print(r.View(view))
		return nil
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayChunkSize, "chunk-size", 512,
		"Bytes per replayed chunk")
	replayCmd.Flags().StringVar(&replaySession, "session", "",
		"Session id (default: random)")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false,
		"Emit the final view as JSON")
}
