package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	deck struct {
		ID string
	}
	index struct {
		ConcurrencyFactor int
		Exclude           []string
	}
	web struct {
		port int
	}
	remote struct {
		Backend string
		Bucket  string
		Path    string
	}
	root struct {
		configFile string
		credFile   string
		logLevel   string
		stateDir   string
	}
}

var deckmonFlags = flagsT{}

func addDeckFlag(cmd *cobra.Command) string {
	deckID := "deck"
	if cmd != nil {
		cmd.Flags().StringVar(&deckmonFlags.deck.ID, deckID, "", "The id of the deck, as reported by 'deckmon deck list'")
	}
	return deckID
}

func addConcurrencyFactorFlag(cmd *cobra.Command, defaultConcurrency int) string {
	concurrencyFactor := "concurrency-factor"
	cmd.Flags().IntVar(&deckmonFlags.index.ConcurrencyFactor, concurrencyFactor, defaultConcurrency,
		"Heuristic on the amount of concurrency used by ingest and transfer operations. "+
			"Turn this value down to use less memory, increase for faster operations.")
	return concurrencyFactor
}

func addExcludeFlag(cmd *cobra.Command) string {
	exclude := "exclude"
	cmd.Flags().StringSliceVar(&deckmonFlags.index.Exclude, exclude, nil,
		"Path fragments to skip while walking a folder (may be repeated)")
	return exclude
}

func addWebPortFlag(cmd *cobra.Command) string {
	port := "port"
	cmd.Flags().IntVar(&deckmonFlags.web.port, port, 8080, "Port number for the web server")
	return port
}

func addRemoteBackendFlag(cmd *cobra.Command) string {
	backend := "remote"
	cmd.PersistentFlags().StringVar(&deckmonFlags.remote.Backend, backend, "",
		`Remote backend to publish to: "gcs", "s3" or "localfs" ("s3" stores blobs only and cannot host deck manifests)`)
	return backend
}

func addBucketFlag(cmd *cobra.Command) string {
	bucket := "bucket"
	cmd.PersistentFlags().StringVar(&deckmonFlags.remote.Bucket, bucket, "",
		"The name of the bucket holding published blobs and manifests (do not set the scheme, e.g. 'gs://')")
	return bucket
}

func addRemotePathFlag(cmd *cobra.Command) string {
	path := "remote-path"
	cmd.PersistentFlags().StringVar(&deckmonFlags.remote.Path, path, "",
		"The directory backing the localfs remote (testing and air-gapped setups)")
	return path
}

func addCredentialFileFlag(cmd *cobra.Command) string {
	credential := "credential"
	cmd.PersistentFlags().StringVar(&deckmonFlags.root.credFile, credential, "", "The path to the credential file")
	return credential
}

func addConfigFileFlag(cmd *cobra.Command) string {
	config := "config"
	cmd.PersistentFlags().StringVar(&deckmonFlags.root.configFile, config, "", "Set the config file to use")
	return config
}

func addLogLevelFlag(cmd *cobra.Command) string {
	loglevel := "loglevel"
	cmd.PersistentFlags().StringVar(&deckmonFlags.root.logLevel, loglevel, "", "The logging level (debug, info, warn, error)")
	return loglevel
}

func addStateDirFlag(cmd *cobra.Command) string {
	stateDir := "state-dir"
	cmd.PersistentFlags().StringVar(&deckmonFlags.root.stateDir, stateDir, "",
		"Directory holding the local slide store and deck index (defaults to $HOME/.deckmon/state)")
	return stateDir
}
