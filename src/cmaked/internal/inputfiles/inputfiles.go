// Package inputfiles tracks the build-definition files reported by the cmake
// server and decides whether the generated build system is out of date.
//
// The server's own dirty check is not consulted; comparing modification times
// locally is cheap and behaves the same across server versions.
package inputfiles

import (
	"os"
	"time"

	"github.com/uber/cmake-driver/src/cmaked/internal/fs"
)

// InputFile is one tracked build-definition file and the modification time it
// had when the snapshot was taken. Present is false for files that did not
// exist at snapshot time.
type InputFile struct {
	Path    string
	ModTime time.Time
	Present bool
}

// Set is an immutable snapshot of input files captured against a source and
// binary directory pair. It is replaced wholesale after every successful
// configure, never patched.
type Set struct {
	fs        fs.DriverFS
	files     []InputFile
	sourceDir string
	binaryDir string
}

// Snapshot records the current modification time of every given path. A
// missing file is recorded as absent rather than failing the snapshot.
func Snapshot(f fs.DriverFS, paths []string, sourceDir, binaryDir string) *Set {
	files := make([]InputFile, 0, len(paths))
	for _, p := range paths {
		info, err := f.Stat(p)
		if err != nil {
			files = append(files, InputFile{Path: p})
			continue
		}
		files = append(files, InputFile{Path: p, ModTime: info.ModTime(), Present: true})
	}
	return &Set{fs: f, files: files, sourceDir: sourceDir, binaryDir: binaryDir}
}

// Empty returns a sentinel snapshot with no tracked files. OutOfDate is false
// for the empty set; callers that have never captured a real snapshot must
// treat that case as "reconfigure required" themselves.
func Empty(f fs.DriverFS) *Set {
	return &Set{fs: f}
}

// OutOfDate re-reads the modification time of every tracked file and reports
// whether any differs from the snapshot. A previously present file that is
// now missing, or a previously absent file that now exists, also counts as
// out of date.
func (s *Set) OutOfDate() bool {
	for _, f := range s.files {
		info, err := s.fs.Stat(f.Path)
		switch {
		case err != nil:
			if !os.IsNotExist(err) || f.Present {
				return true
			}
		case !f.Present:
			return true
		case !info.ModTime().Equal(f.ModTime):
			return true
		}
	}
	return false
}

// Paths returns the tracked file paths in snapshot order.
func (s *Set) Paths() []string {
	out := make([]string, len(s.files))
	for i, f := range s.files {
		out[i] = f.Path
	}
	return out
}

// Len returns the number of tracked files.
func (s *Set) Len() int { return len(s.files) }

// SourceDirectory returns the source directory the snapshot was captured
// against.
func (s *Set) SourceDirectory() string { return s.sourceDir }

// BinaryDirectory returns the binary directory the snapshot was captured
// against.
func (s *Set) BinaryDirectory() string { return s.binaryDir }
