// Command fsarchiver drives the savefs/restfs/savedir/restdir/archinfo/
// probe operations described in the package fsa pipeline (§6).
package main

func main() {
	Execute()
}
