package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oneconcern/deckmon/pkg/model"
)

var deckSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize a deck with the remote",
	Long: `Synchronize a deck with the remote store.

Blobs missing on either side are transferred, then the remote manifest is
advanced with a conditional write. A remote that moved on since the last
reconciliation is reported as a conflict and left untouched: resolve by
re-indexing the winning version of the deck, then sync again.`,
	Run: func(cmd *cobra.Command, args []string) {
		ensureManifestCapableRemote()
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		result, err := eng.Sync(ctx, deckmonFlags.deck.ID)
		if err != nil {
			wrapFatalln("sync "+deckmonFlags.deck.ID, err)
			return
		}
		switch result.Status {
		case model.SyncConflict:
			wrapFatalln("conflict: remote version "+
				strconv.FormatUint(result.RemoteVersion, 10)+" of "+result.DeckID+
				" was published elsewhere, nothing was overwritten", nil)
		case model.SyncNoop:
			infoLogger.Printf("%s is up to date at remote version %d", result.DeckID, result.RemoteVersion)
		default:
			infoLogger.Printf("%s synced to remote version %d: %d blobs pushed, %d pulled in %s",
				result.DeckID, result.RemoteVersion, len(result.Pushed), len(result.Pulled), result.Duration)
		}
	},
}

func init() {
	requiredFlags := []string{addDeckFlag(deckSyncCmd)}

	addConcurrencyFactorFlag(deckSyncCmd, 0)
	addCredentialFileFlag(deckSyncCmd)

	for _, flag := range requiredFlags {
		if err := deckSyncCmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}

	deckCmd.AddCommand(deckSyncCmd)
}
