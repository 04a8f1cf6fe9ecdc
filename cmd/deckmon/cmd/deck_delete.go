package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var deckDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a deck from the local index",
	Long: `Delete a deck from the local index.

The references its composition held on slides and assets are released; blobs
no longer cited by any deck become eligible for 'deckmon gc'. The remote copy
of the deck is left untouched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		if err := eng.Index().Delete(ctx, deckmonFlags.deck.ID); err != nil {
			wrapFatalln("delete "+deckmonFlags.deck.ID, err)
			return
		}
		infoLogger.Printf("deleted %s", deckmonFlags.deck.ID)
	},
}

func init() {
	requiredFlags := []string{addDeckFlag(deckDeleteCmd)}

	for _, flag := range requiredFlags {
		if err := deckDeleteCmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}

	deckCmd.AddCommand(deckDeleteCmd)
}
