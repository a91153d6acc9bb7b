package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/transcript"
)

var parseJSON bool

// parseCmd: agentdeck parse <transcript-file>
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a stored transcript",
	Long: `Parse reads a complete plain-text transcript and prints the parsed
document, rendered for the terminal or as JSON with --json.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := transcript.Parse(string(data))
		if err != nil {
			return err
		}

		if parseJSON {
			out, err := json.MarshalIndent(doc, "", "  ")
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
		fmt.Print(r.Document(doc))
		return nil
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Emit the parsed document as JSON")
}
