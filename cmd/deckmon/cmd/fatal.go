package cmd

import (
	"fmt"
	"log"
	"os"
)

var (
	// globals used to patch over calls to os.Exit() during test

	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit

	// infoLogger wraps informative messages to os.Stdout without cluttering
	// expected output in tests. To be used instead of fmt.Printf(os.Stdout, ...)
	infoLogger = log.New(os.Stdout, "", 0)
)

func wrapFatalln(msg string, err error) {
	if err == nil {
		logFatalln(msg)
	} else {
		logFatalf("%v", fmt.Errorf(msg+": %w", err))
	}
}
