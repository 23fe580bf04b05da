package main

import (
	"fmt"
	"os"

	"github.com/fsarchiver/fsa"
	"github.com/spf13/cobra"
)

var savefsCmd = &cobra.Command{
	Use:   "savefs ARCHIVE DEVICE...",
	Short: "Archive one or more filesystems by device path",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		return runSavefs(args[0], args[1:], newOptions(password))
	},
}

func init() {
	rootCmd.AddCommand(savefsCmd)
	passwordFlag(savefsCmd)
}

func runSavefs(archivePath string, devices []string, opts *fsa.Options) error {
	ctx := fsa.NewContext(opts)

	fw, err := fsa.NewFrameWriter(archivePath, fsa.RandomArchiveID(), opts.SplitSize, opts.Overwrite)
	if err != nil {
		return err
	}

	sources := make([]fsa.SaveSource, len(devices))
	for i, dev := range devices {
		adapter, err := probeAdapter(dev)
		if err != nil {
			return err
		}
		mnt, err := os.MkdirTemp("", "fsarchiver-savefs-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(mnt)
		sources[i] = fsa.SaveSource{Name: dev, MountPath: mnt, Adapter: adapter}
	}

	producer := fsa.NewProducer(ctx, fw)
	if err := producer.Save(fsa.ArchiveTypeFilesystems, sources); err != nil {
		return err
	}

	fmt.Printf("savefs: %d filesystem(s) archived to %s\n", len(devices), archivePath)
	printStats(ctx.Stats)
	if ctx.Stats.ExitNonZero() {
		return fmt.Errorf("fsarchiver: completed with errors")
	}
	return nil
}

// probeAdapter asks every registered fsa.Adapter whether it claims dev,
// honoring --experimental (§6 "capability booleans").
func probeAdapter(dev string) (fsa.Adapter, error) {
	for _, a := range fsa.Registered() {
		ok, err := a.Probe(dev)
		if err != nil || !ok {
			continue
		}
		if a.Capabilities().Experimental && !flagExperimental {
			continue
		}
		return a, nil
	}
	return nil, fmt.Errorf("fsarchiver: no registered adapter claims %s", dev)
}
