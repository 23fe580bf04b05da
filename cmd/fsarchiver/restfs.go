package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fsarchiver/fsa"
	"github.com/fsarchiver/fsa/fsadapter"
	"github.com/spf13/cobra"
)

var restfsCmd = &cobra.Command{
	Use:   "restfs ARCHIVE id=N,dest=DEVICE[,mkfs=FS][,mkfsopt=OPT][,label=L][,uuid=U] ...",
	Short: "Restore a savefs archive onto one or more destination devices, formatting them first",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		return runRestfs(args[0], args[1:], newOptions(password))
	},
}

func init() {
	rootCmd.AddCommand(restfsCmd)
	passwordFlag(restfsCmd)
}

// destSpec is one parsed "id=N,dest=DEVICE[,mkfs=FS][,mkfsopt=OPT]
// [,label=L][,uuid=U]" positional argument (§6).
type destSpec struct {
	id     int
	dest   string
	mkfs   string
	mkfsOpt string
	label  string
	uuid   string
}

// parseDestSpec parses one comma-separated key=value destination spec.
// id and dest are required; the rest are optional per-device overrides.
func parseDestSpec(spec string) (destSpec, error) {
	var ds destSpec
	haveID, haveDest := false, false
	for _, kv := range strings.Split(spec, ",") {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return ds, fmt.Errorf("fsarchiver: malformed destination spec %q: expected key=value", kv)
		}
		switch key {
		case "id":
			n, err := strconv.Atoi(val)
			if err != nil {
				return ds, fmt.Errorf("fsarchiver: invalid id %q: %w", val, err)
			}
			ds.id = n
			haveID = true
		case "dest":
			ds.dest = val
			haveDest = true
		case "mkfs":
			ds.mkfs = val
		case "mkfsopt":
			ds.mkfsOpt = val
		case "label":
			ds.label = val
		case "uuid":
			ds.uuid = val
		default:
			return ds, fmt.Errorf("fsarchiver: unknown destination key %q", key)
		}
	}
	if !haveID {
		return ds, fmt.Errorf("fsarchiver: destination spec %q missing id=", spec)
	}
	if !haveDest {
		return ds, fmt.Errorf("fsarchiver: destination spec %q missing dest=", spec)
	}
	return ds, nil
}

func runRestfs(archivePath string, specs []string, opts *fsa.Options) error {
	ctx := fsa.NewContext(opts)

	fr, err := fsa.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer fr.Close()

	parsed := make([]destSpec, len(specs))
	maxID := -1
	for i, spec := range specs {
		ds, err := parseDestSpec(spec)
		if err != nil {
			return err
		}
		parsed[i] = ds
		if ds.id > maxID {
			maxID = ds.id
		}
	}

	dests := make([]fsa.RestoreDest, maxID+1)
	for _, ds := range parsed {
		adapter, err := restfsAdapter(ds.mkfs)
		if err != nil {
			return err
		}
		label := ds.label
		if label == "" {
			label = flagLabel
		}
		dests[ds.id] = fsa.RestoreDest{
			MountPath: ds.dest,
			Adapter:   adapter,
			Mkfs: fsa.MkfsOptions{
				FSName: ds.mkfs,
				Opts:   ds.mkfsOpt,
				Label:  label,
				UUID:   ds.uuid,
			},
		}
	}

	consumer := fsa.NewConsumer(ctx, fr, dests)
	if err := consumer.Restore(); err != nil {
		return err
	}

	fmt.Printf("restfs: archive %s restored to %d device(s)\n", archivePath, len(parsed))
	printStats(ctx.Stats)
	if ctx.Stats.ExitNonZero() {
		return fmt.Errorf("fsarchiver: completed with errors")
	}
	return nil
}

// restfsAdapter resolves the adapter for one destination: mkfsName, if
// given, forces a specific registered adapter; otherwise the plain
// directory adapter is used, matching savedir/restdir's no-device
// default.
func restfsAdapter(mkfsName string) (fsa.Adapter, error) {
	if mkfsName != "" {
		for _, a := range fsa.Registered() {
			if a.Name() == mkfsName {
				return a, nil
			}
		}
		return nil, fmt.Errorf("fsarchiver: no registered adapter named %q", mkfsName)
	}
	return fsadapter.Dir{}, nil
}
