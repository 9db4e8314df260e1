package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type configOptions struct {
	path    string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &configOptions{}
	rootCmd := &cobra.Command{
		Use:           "deskrelay",
		Short:         "Relay Discord direct messages to a Chatwoot inbox and agent replies back",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *opts)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.path, "config", "c", os.Getenv("CONFIG_PATH"), "path to the TOML config file (default config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "path to the .env file (default .env)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newCheckConfigCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newServeCmd(opts *configOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve the Chatwoot webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *opts)
		},
	}
}
