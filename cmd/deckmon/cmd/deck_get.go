package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var deckGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the current composition of a deck",
	Long:  "Print the current manifest of a deck: its version and the fingerprints of its slides and assets, in presentation order.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		manifest, err := eng.Index().Current(ctx, deckmonFlags.deck.ID)
		if err != nil {
			wrapFatalln("read manifest for "+deckmonFlags.deck.ID, err)
			return
		}
		out, err := yaml.Marshal(manifest)
		if err != nil {
			wrapFatalln("serialize manifest", err)
			return
		}
		infoLogger.Print(string(out))
	},
}

func init() {
	requiredFlags := []string{addDeckFlag(deckGetCmd)}

	for _, flag := range requiredFlags {
		if err := deckGetCmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}

	deckCmd.AddCommand(deckGetCmd)
}
