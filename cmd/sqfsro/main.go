// Command sqfsro mounts a SquashFS image read-only and exposes the
// three operations the core library supports from a shell: listing a
// directory, printing a file's content, and reporting a file's size
// and type. It is an external collaborator wrapping the core library,
// not part of it.
package main

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var log = logrus.New()

func main() {
	if err := newApp().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sqfsro",
		Short:   "Read-only SquashFS image inspector",
		Version: strings.TrimPrefix(version, "v"),
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int("partition", 0, "partition number (0 = whole image/device)")
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.sqfsro.yaml)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(logrus.DebugLevel)
		}

		return initConfig(cmd)
	}

	rootCmd.AddCommand(
		newLsCommand(),
		newCatCommand(),
		newStatCommand(),
	)

	return rootCmd
}

// initConfig loads an optional config file through viper, the way lima
// and linuxkit's own CLIs layer viper under cobra flags. No subcommand
// reads a setting from it: the image path, the partition and the log
// level come only from arguments and flags. It is not a core-library
// concern (the library takes all configuration as explicit Go
// arguments).
func initConfig(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".sqfsro")
		viper.AddConfigPath("$HOME")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		return err
	}

	log.WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")

	return nil
}
