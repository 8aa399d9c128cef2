package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openstore/openstore/internal/cli/apps"
	"github.com/openstore/openstore/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "OPENSTORE"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:     "openstore-cli",
		Short:   "CLI for the OpenStore catalog",
		Version: version.Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (defaults to $HOME/.openstore.yaml)")
	flags.StringP("url", "u", "http://localhost:8080", "Endpoint of the store")
	flags.String("apikey", "", "API key used for manage operations")
	viper.BindPFlag("url", flags.Lookup("url"))
	viper.BindPFlag("apikey", flags.Lookup("apikey"))

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(apps.NewCmd())
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.SetConfigFile(filepath.Join(home, ".openstore.yaml"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			fmt.Fprintf(os.Stderr, "failed to read config: %s\n", err)
		}
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\n", version.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", version.Commit)
			return nil
		},
	}
}
