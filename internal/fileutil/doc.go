// Package fileutil expands glob patterns into the ordered list of source files
// a staging run copies.
//
// Patterns follow doublestar syntax: `*` and `?` match within one path
// segment, `[...]` and `{a,b}` select alternatives, and `**` crosses
// directory boundaries. A pattern without `**` never recurses.
//
// Results are always sorted byte-wise by their string form, so
//
//	x/1/f < x/10/f < x/2/f
//
// regardless of the order the filesystem returns entries in. Directories are
// never returned; symlinks are followed to the regular file they name.
package fileutil
