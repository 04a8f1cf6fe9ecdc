package cmd

import (
	"bytes"
	"context"
	"log"
	"text/template"

	"github.com/spf13/cobra"
)

var deckListCmd = &cobra.Command{
	Use:   "list",
	Short: "List decks",
	Long:  "List the decks tracked by the local index",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, closeEngine := flagsToEngine(ctx)
		defer closeEngine()

		deckIDs, err := eng.Index().List(ctx)
		if err != nil {
			wrapFatalln("list decks", err)
			return
		}
		lineTemplate := template.Must(template.New("deck line").Parse(manifestLineTemplateString))
		for _, deckID := range deckIDs {
			manifest, err := eng.Index().Current(ctx, deckID)
			if err != nil {
				wrapFatalln("read manifest for "+deckID, err)
				return
			}
			var buf bytes.Buffer
			if err := lineTemplate.Execute(&buf, manifest); err != nil {
				log.Println("executing template:", err)
			}
			log.Println(buf.String())
		}
	},
}

func init() {
	deckCmd.AddCommand(deckListCmd)
}
