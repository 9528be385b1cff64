// Package fs abstracts the output files of flagsim so tests can inject
// write failures.
//
// Production code uses fs.Default ([LocalFS]). Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".flgc", fs.Fault{FailAfterBytes: 64})
package fs
