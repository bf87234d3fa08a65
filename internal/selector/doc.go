// Package selector expands the compact command-line selectors students type
// ("1,2a,5", "3-5", "2*", "all" for tasks; "4-5,7" for chapters) into concrete
// file and directory names.
//
// Expansion is a pure function of its inputs: the file system to look in, the
// directory, the chapter number and the raw selector. Nothing here depends on
// the process working directory.
package selector
