package main

import (
	"github.com/oneconcern/deckmon/cmd/deckmon/cmd"
)

func main() {
	cmd.Execute()
}
