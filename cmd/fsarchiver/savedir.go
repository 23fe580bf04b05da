package main

import (
	"fmt"

	"github.com/fsarchiver/fsa"
	"github.com/fsarchiver/fsa/fsadapter"
	"github.com/spf13/cobra"
)

var savedirCmd = &cobra.Command{
	Use:   "savedir ARCHIVE DIR...",
	Short: "Archive one or more directory trees without mounting anything",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		return runSavedir(args[0], args[1:], newOptions(password))
	},
}

func init() {
	rootCmd.AddCommand(savedirCmd)
	passwordFlag(savedirCmd)
}

func runSavedir(archivePath string, dirs []string, opts *fsa.Options) error {
	ctx := fsa.NewContext(opts)

	fw, err := fsa.NewFrameWriter(archivePath, fsa.RandomArchiveID(), opts.SplitSize, opts.Overwrite)
	if err != nil {
		return err
	}

	sources := make([]fsa.SaveSource, len(dirs))
	for i, dir := range dirs {
		sources[i] = fsa.SaveSource{Name: dir, MountPath: dir, Adapter: fsadapter.Dir{}}
	}

	producer := fsa.NewProducer(ctx, fw)
	if err := producer.Save(fsa.ArchiveTypeDirectories, sources); err != nil {
		return err
	}

	fmt.Printf("savedir: %d director%s archived to %s\n", len(dirs), plural(len(dirs)), archivePath)
	printStats(ctx.Stats)
	if ctx.Stats.ExitNonZero() {
		return fmt.Errorf("fsarchiver: completed with errors")
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func printStats(s fsa.Stats) {
	fmt.Printf("regular files: %d (errors: %d)\n", s.CntReg, s.ErrReg)
	fmt.Printf("directories:   %d (errors: %d)\n", s.CntDir, s.ErrDir)
	fmt.Printf("symlinks:      %d (errors: %d)\n", s.CntSym, s.ErrSym)
	fmt.Printf("hardlinks:     %d (errors: %d)\n", s.CntHardlink, s.ErrHardlink)
	fmt.Printf("special files: %d (errors: %d)\n", s.CntSpecial, s.ErrSpecial)
}
