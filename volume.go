package fsa

import "fmt"

// VolumePath returns the on-disk path for volume n of an archive whose
// base path is basePath (ending in .fsa by convention). Volume 0 is
// the base path itself; volume N (N>=1) appends a two-digit
// zero-padded suffix for 1..99 and natural decimal for >=100 (§4.5,
// §6 "Archive file format").
func VolumePath(basePath string, n int) string {
	if n <= 0 {
		return basePath
	}
	if n < 100 {
		return fmt.Sprintf("%s.%02d", basePath, n)
	}
	return fmt.Sprintf("%s.%d", basePath, n)
}
