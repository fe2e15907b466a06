// Package cmd implements the curator command-line interface.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/north-cloud/curator/internal/bootstrap"
)

const (
	envPrefix         = "CURATOR"
	defaultConfigFile = "config.yml"
)

// NewRootCommand builds the curator command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "curator",
		Short:         "Educational content acquisition engine",
		Long:          `Curator crawls registered sources, scores what it finds and serves the curated library over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", defaultConfigFile, "config file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "curator version %s\n", bootstrap.Version)
		},
	})
	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSourcesCommand(),
		newContentCommand(),
		newPurgeCommand(),
		newRescoreCommand(),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	return NewRootCommand().ExecuteContext(context.Background())
}

// commandDeps loads configuration and logging for a subcommand. The --config
// and --debug flags may also come from CURATOR_CONFIG and CURATOR_DEBUG.
func commandDeps() (*bootstrap.CommandDeps, error) {
	return bootstrap.NewCommandDeps(viper.GetString("config"), viper.GetBool("debug"))
}
