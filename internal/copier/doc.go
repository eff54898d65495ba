// Package copier drains the handoff queue and copies each named file into the
// destination directory.
//
// A failed copy is logged, recorded, and counted, then the copier moves on to
// the next path; only the queue reporting that it is finished and empty ends
// Run. The byte-level copy is delegated to a fileutil.CopyFunc so verified
// copies and test doubles plug in without touching the loop.
package copier
