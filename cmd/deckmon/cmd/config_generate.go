package cmd

import (
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/spf13/cobra"
)

var configGen = &cobra.Command{
	Use:   "create",
	Short: "Create a config",
	Long:  "Create a config to use for deckmon. Config file will be placed in $HOME/.deckmon/deckmon.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		user, err := user.Current()
		if user == nil || err != nil {
			wrapFatalln("could not get home directory for user", nil)
			return
		}
		config := CLIConfig{
			Credential: deckmonFlags.root.credFile,
			Remote:     deckmonFlags.remote.Backend,
			Bucket:     deckmonFlags.remote.Bucket,
			RemotePath: deckmonFlags.remote.Path,
			Statedir:   deckmonFlags.root.stateDir,
			Loglevel:   deckmonFlags.root.logLevel,
		}
		o, e := yaml.Marshal(config)
		if e != nil {
			wrapFatalln("serialize config to yaml", e)
			return
		}
		_ = os.Mkdir(filepath.Join(user.HomeDir, ".deckmon"), 0777)
		err = os.WriteFile(filepath.Join(user.HomeDir, ".deckmon", "deckmon.yaml"), o, 0666)
		if err != nil {
			wrapFatalln("write config file", err)
			return
		}
	},
}

func init() {
	addCredentialFileFlag(configGen)
	addRemoteBackendFlag(configGen)
	addBucketFlag(configGen)
	addRemotePathFlag(configGen)

	configCmd.AddCommand(configGen)
}
