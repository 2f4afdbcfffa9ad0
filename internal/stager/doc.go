// Package stager resets a destination directory and fills it with numbered
// copies of the files a glob pattern matches.
//
// A run moves through a fixed sequence of states:
//
//	Idle → Resetting → Discovering → Copying(1..n) → Done
//
// and any failing step ends the run in Failed. Nothing is retried and copies
// made before a failure are left where they are.
//
// # Ordering
//
// Matched paths are sorted byte-wise by their string form and the file at
// position i (starting at 1) is written to <destination>/<i>. Numbers carry no
// padding and no extension, and the sort is not numeric:
//
//	x/1/f  → 1
//	x/10/f → 2
//	x/2/f  → 3
//
// # Reset
//
// The destination is removed recursively and recreated empty before discovery.
// Copying never starts unless the destination is confirmed empty, so a run
// either produces a fully reset directory or fails before writing anything.
// An existing path that is not a directory is refused rather than deleted.
//
// # Atomic mode
//
// Jobs with Atomic set copy into a hidden sibling directory and swap it into
// place once every file is written. The previous contents stay intact until
// the swap, so an interrupted run never leaves a partially numbered
// destination behind.
//
// # Errors
//
// Failures are reported as *ResetError, *CreateError, *CopyError,
// *PatternError or *DiscoverError, all of which unwrap to the underlying
// filesystem error. Kind maps any of them to a short name for reporting.
package stager
