package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memohai/deskrelay/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.GetInfo())
			return err
		},
	}
}
