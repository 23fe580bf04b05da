package main

import (
	"fmt"
	"os"

	"github.com/fsarchiver/fsa"
	"github.com/spf13/cobra"
)

var archinfoCmd = &cobra.Command{
	Use:   "archinfo ARCHIVE",
	Short: "Print an archive's main header and per-filesystem headers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corrupt, err := fsa.PrintArchiveInfo(os.Stdout, args[0])
		if err != nil {
			return err
		}
		if corrupt > 0 {
			return fmt.Errorf("fsarchiver: archive contains %d corrupt record(s)", corrupt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archinfoCmd)
}
