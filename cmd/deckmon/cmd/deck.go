package cmd

import (
	"github.com/spf13/cobra"
)

// deckCmd represents the deck related commands
var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Commands to manage decks",
	Long: `Commands to manage decks in the slide store.

A deck is a named sequence of slides. Its composition is versioned locally
and published to the remote as a single manifest per deck.`,
}

func init() {
	addRemoteBackendFlag(deckCmd)
	addBucketFlag(deckCmd)
	addRemotePathFlag(deckCmd)

	rootCmd.AddCommand(deckCmd)
}
