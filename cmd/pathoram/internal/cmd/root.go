package cmd

import (
	"github.com/spf13/cobra"
)

// RootCmd represents the base "pathoram" command when called without any
// subcommands (init, run, version).
var RootCmd = &cobra.Command{
	Use:   "pathoram",
	Short: "Path ORAM client",
	Long: `pathoram stores fixed-size blocks in an untrusted bucket store so that
the store learns neither the block contents nor which blocks are accessed.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "config.toml", "Path to the toml config file.")
}
