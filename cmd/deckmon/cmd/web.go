package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oneconcern/deckmon/pkg/web"

	"github.com/spf13/cobra"
)

var webSrv = &cobra.Command{
	Use:   "web",
	Short: "Webserver",
	Long:  "A webserver process to browse decks and trigger syncs over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		ensureManifestCapableRemote()
		infoLogger.Println("begin webserver")
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		s := web.NewServer(eng, web.Logger(mustLogger()))
		infoLogger.Printf("serving on %d...", deckmonFlags.web.port)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", deckmonFlags.web.port), s.Router()); err != nil {
			wrapFatalln("server listen error", err)
			return
		}
	},
}

func init() {
	addWebPortFlag(webSrv)
	addRemoteBackendFlag(webSrv)
	addBucketFlag(webSrv)
	addRemotePathFlag(webSrv)
	addCredentialFileFlag(webSrv)

	rootCmd.AddCommand(webSrv)
}
