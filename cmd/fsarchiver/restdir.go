package main

import (
	"fmt"

	"github.com/fsarchiver/fsa"
	"github.com/spf13/cobra"
)

var restdirCmd = &cobra.Command{
	Use:   "restdir ARCHIVE DESTDIR...",
	Short: "Restore a savedir archive into one or more destination directories",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		return runRestdir(args[0], args[1:], newOptions(password))
	},
}

func init() {
	rootCmd.AddCommand(restdirCmd)
	passwordFlag(restdirCmd)
}

func runRestdir(archivePath string, destDirs []string, opts *fsa.Options) error {
	ctx := fsa.NewContext(opts)

	fr, err := fsa.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer fr.Close()

	dests := make([]fsa.RestoreDest, len(destDirs))
	for i, d := range destDirs {
		dests[i] = fsa.RestoreDest{MountPath: d}
	}

	consumer := fsa.NewConsumer(ctx, fr, dests)
	if err := consumer.Restore(); err != nil {
		return err
	}

	fmt.Printf("restdir: archive %s restored to %d destination(s)\n", archivePath, len(destDirs))
	printStats(ctx.Stats)
	if ctx.Stats.ExitNonZero() {
		return fmt.Errorf("fsarchiver: completed with errors")
	}
	return nil
}
