package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLIConfig describes the CLI configuration.
type CLIConfig struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	Credential string `json:"credential" yaml:"credential"` // Credentials to use for GCS
	Remote     string `json:"remote" yaml:"remote"`         // Remote backend: localfs, gcs or s3
	Bucket     string `json:"bucket" yaml:"bucket"`         // Bucket holding blobs and manifests
	RemotePath string `json:"remotepath" yaml:"remotepath"` // Directory backing the localfs remote
	Statedir   string `json:"statedir" yaml:"statedir"`     // Directory for the local index and blob store
	Loglevel   string `json:"loglevel" yaml:"loglevel"`     // Log level: debug, info, warn, error
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *CLIConfig) setDeckmonParams(flags *flagsT) {
	if flags.remote.Backend == "" {
		flags.remote.Backend = c.Remote
	}
	if flags.remote.Bucket == "" {
		flags.remote.Bucket = c.Bucket
	}
	if flags.remote.Path == "" {
		flags.remote.Path = c.RemotePath
	}
	if flags.root.stateDir == "" {
		flags.root.stateDir = c.Statedir
	}
	if flags.root.logLevel == "" {
		flags.root.logLevel = c.Loglevel
	}
	if flags.root.credFile == "" {
		flags.root.credFile = c.Credential
	}
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage a config",
	Long: `Commands to manage deckmon CLI config.

Configuration for deckmon is the common set of flags that are needed for most
commands and do not change across runs, analogous to "git config ...".`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
