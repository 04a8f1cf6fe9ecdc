package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oneconcern/deckmon/pkg/deck"
	deckstatus "github.com/oneconcern/deckmon/pkg/deck/status"
	"github.com/oneconcern/deckmon/pkg/errors"
)

var deckStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the sync status of a deck",
	Long: `Report the sync status of a deck.

Shows the engine state for the deck, the last reconciled remote version and
whether the local composition has drifted from it.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		deckID := deckmonFlags.deck.ID
		manifest, err := eng.Index().Current(ctx, deckID)
		if err != nil {
			if errors.Is(err, deckstatus.ErrDeckNotFound) {
				wrapFatalln("deck "+deckID+" is not tracked locally", nil)
				return
			}
			wrapFatalln("read manifest for "+deckID, err)
			return
		}
		state, err := eng.Index().SyncState(ctx, deckID)
		if err != nil {
			wrapFatalln("read sync state for "+deckID, err)
			return
		}

		infoLogger.Printf("deck:            %s", deckID)
		infoLogger.Printf("engine state:    %s", eng.Status(deckID))
		infoLogger.Printf("local version:   %d", manifest.Version)
		if state.RemoteVersion == 0 {
			infoLogger.Println("remote version:  never synced")
			return
		}
		infoLogger.Printf("remote version:  %d (reconciled %s)", state.RemoteVersion, state.LastReconciledAt.Format("2006-01-02 15:04:05"))

		plan := deck.CompareSets(state.RemoteSlides, manifest.Slides, state.RemoteAssets, manifest.Assets)
		if plan.InSync() {
			infoLogger.Println("in sync with the last reconciled remote composition")
			return
		}
		infoLogger.Printf("local drift:     %d added, %d removed, reordered=%v",
			len(plan.Added), len(plan.Removed), plan.Reordered)
	},
}

func init() {
	requiredFlags := []string{addDeckFlag(deckStatusCmd)}

	for _, flag := range requiredFlags {
		if err := deckStatusCmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}

	deckCmd.AddCommand(deckStatusCmd)
}
