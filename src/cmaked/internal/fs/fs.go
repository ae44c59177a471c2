package fs

import (
	"os"

	"go.uber.org/fx"
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

//go:generate mockgen -source=fs.go -destination=fsmock/fs_mock.go -package=fsmock

// DriverFS wraps the filesystem operations used by the cmake driver.
type DriverFS interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string) error
	Remove(name string) error
	RemoveAll(path string) error
}

type fsImpl struct{}

// New creates a new DriverFS backed by the host filesystem.
func New() DriverFS {
	return fsImpl{}
}

// Stat returns file info for the given path.
func (fsImpl) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

// MkdirAll creates a directory and all its parents.
func (fsImpl) MkdirAll(path string) error { return os.MkdirAll(path, os.ModePerm) }

func (fsImpl) Remove(name string) error { return os.Remove(name) }

// RemoveAll removes a path and any children it contains.
func (fsImpl) RemoveAll(path string) error { return os.RemoveAll(path) }
