package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deckmon",
	Short: "Deckmon keeps slide decks in sync",
	Long: `Deckmon indexes presentation decks into a content-addressed slide store
and synchronizes them against a remote object store.

Slides are deduplicated by fingerprint, so a slide reused across decks or
across versions of the same deck is stored and transferred exactly once.
Concurrent edits from several machines are reconciled with optimistic
concurrency: a publish that lost the race surfaces as a conflict, never as
an overwrite.
`,
}

var config *CLIConfig

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addConfigFileFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addStateDirFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetDefault("remote", "localfs")
	viper.SetDefault("loglevel", "info")
	if os.Getenv("DECKMON_CONFIG") != "" {
		// Use config file from the environment.
		viper.SetConfigFile(os.Getenv("DECKMON_CONFIG"))
	} else if deckmonFlags.root.configFile != "" {
		viper.SetConfigFile(deckmonFlags.root.configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.deckmon")
		viper.AddConfigPath("/etc/deckmon")
		viper.SetConfigName("deckmon")
	}

	viper.SetEnvPrefix("deckmon")
	viper.AutomaticEnv() // read in environment variables that match
	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
	config.setDeckmonParams(&deckmonFlags)
	if config.Credential != "" {
		// Always pick the config file over a stray environment variable:
		// a duplicate bucket name in a different project must not win.
		_ = os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", config.Credential)
	}
}
