package cmd

import (
	"fmt"
	"os"

	"github.com/etclab/pathoram-client/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file for pathoram.",
	Long: `Create a configuration file for pathoram.

The default config keeps buckets in memory. Set storage.backend to "leveldb"
and storage.path to a directory to keep them on disk.

oram.bucket_size defaults to 16. Setting it to 0 derives ceil(log2 num_blocks)
slots per bucket, which makes a full root, and with it the end of the
session, noticeably more likely in long sessions.`,
	RunE: runInit,
}

func init() {
	RootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file.")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote "+path)
	return nil
}
