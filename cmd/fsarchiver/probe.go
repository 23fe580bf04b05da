package main

import (
	"os"

	"github.com/fsarchiver/fsa"
	"github.com/spf13/cobra"
)

var probeDetailed bool

var probeCmd = &cobra.Command{
	Use:   "probe DEVICE",
	Short: "Report which registered filesystem adapters claim a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fsa.PrintProbe(os.Stdout, args[0], probeDetailed)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolVar(&probeDetailed, "detailed", false, "also print capability booleans and required mount options")
}
