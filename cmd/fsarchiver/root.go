package main

import (
	"fmt"
	"os"

	"github.com/fsarchiver/fsa"
	"github.com/spf13/cobra"
)

var (
	flagOverwrite      bool
	flagVerbose        int
	flagDebug          int
	flagAllowRWMount    bool
	flagRelaxMountOpts  bool
	flagExperimental    bool
	flagExclude         []string
	flagLabel           string
	flagCompLevel       int
	flagSplitSize       int64
	flagWorkers         int
)

var rootCmd = &cobra.Command{
	Use:     "fsarchiver",
	Short:   "Filesystem archiver: save and restore whole filesystems or directory trees",
	Version: "1.0.0",
}

// Execute runs the root command, exiting non-zero per §7's rule: a
// fatal error or any non-zero err_* counter.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fsarchiver: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagOverwrite, "overwrite", "o", false, "overwrite an existing archive/destination")
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase verbosity (repeatable)")
	rootCmd.PersistentFlags().CountVarP(&flagDebug, "debug", "d", "increase debug output (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagAllowRWMount, "allow-rw-mount", "A", false, "allow mounting source filesystems read-write")
	rootCmd.PersistentFlags().BoolVarP(&flagRelaxMountOpts, "relax-mount-opts", "a", false, "don't fail when required mount options can't be honored")
	rootCmd.PersistentFlags().BoolVarP(&flagExperimental, "experimental", "x", false, "enable experimental filesystem adapters")
	rootCmd.PersistentFlags().StringArrayVarP(&flagExclude, "exclude", "e", nil, "exclude paths matching this glob (repeatable)")
	rootCmd.PersistentFlags().StringVarP(&flagLabel, "label", "L", "", "archive label")
	rootCmd.PersistentFlags().IntVarP(&flagCompLevel, "compression", "z", 3, "compression level, 1 (fast) - 9 (best)")
	rootCmd.PersistentFlags().Int64VarP(&flagSplitSize, "split", "s", 0, "split archive every N bytes (0 = never)")
	rootCmd.PersistentFlags().IntVarP(&flagWorkers, "jobs", "j", 2, "number of compression/decompression worker goroutines")
}

func passwordFlag(cmd *cobra.Command) *string {
	p := cmd.Flags().StringP("password", "c", "", "archive password (prompts are the caller's responsibility)")
	return p
}

func newOptions(password string) *fsa.Options {
	return &fsa.Options{
		Label:          flagLabel,
		Overwrite:      flagOverwrite,
		Verbose:        flagVerbose,
		Debug:          flagDebug,
		AllowRWMount:   flagAllowRWMount,
		RelaxMountOpts: flagRelaxMountOpts,
		Experimental:   flagExperimental,
		Exclude:        flagExclude,
		CompLevel:      flagCompLevel,
		SplitSize:      flagSplitSize,
		Workers:        flagWorkers,
		Password:       password,
	}
}
