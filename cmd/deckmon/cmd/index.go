package cmd

import (
	"bytes"
	"context"
	"log"
	"os"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/oneconcern/deckmon/pkg/model"
)

const manifestLineTemplateString = `{{.DeckID}} , version {{.Version}} , {{len .Slides}} slides , {{len .Assets}} assets`

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index decks into the local slide store",
	Long: `Index a deck file or a folder of decks into the local slide store.

Each deck is split into slides, every slide and asset is fingerprinted and
stored once, and a new composition is recorded for the deck. Decks that did
not change produce no new blobs. When given a folder, decks that fail to
parse are skipped and reported; cache and handout folders are excluded.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		path := args[0]
		fi, err := os.Stat(path)
		if err != nil {
			wrapFatalln("stat "+path, err)
			return
		}

		var manifests []model.DeckManifest
		if fi.IsDir() {
			manifests, err = eng.IngestTree(ctx, path)
		} else {
			var manifest model.DeckManifest
			manifest, err = eng.Ingest(ctx, deckmonFlags.deck.ID, path)
			manifests = append(manifests, manifest)
		}
		if err != nil {
			wrapFatalln("index "+path, err)
			return
		}

		lineTemplate := template.Must(template.New("manifest line").Parse(manifestLineTemplateString))
		for _, manifest := range manifests {
			var buf bytes.Buffer
			if err := lineTemplate.Execute(&buf, manifest); err != nil {
				log.Println("executing template:", err)
			}
			log.Println(buf.String())
		}
	},
}

func init() {
	addDeckFlag(indexCmd)
	addConcurrencyFactorFlag(indexCmd, 0)
	addExcludeFlag(indexCmd)
	addRemoteBackendFlag(indexCmd)
	addBucketFlag(indexCmd)
	addRemotePathFlag(indexCmd)

	rootCmd.AddCommand(indexCmd)
}
