package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim unreferenced blobs",
	Long: `Reclaim blobs from the local slide store that no deck composition cites
anymore. Blobs still referenced by any deck are never touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		reclaimed, err := eng.Blobs().GC(ctx)
		if err != nil {
			wrapFatalln("garbage collect blobs", err)
			return
		}
		infoLogger.Printf("reclaimed %d blobs", reclaimed)
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
