package fs

import (
	"io"
	"os"
)

// File is an open output file.
type File interface {
	io.WriteCloser
	Sync() error
}

// FileSystem abstracts the file operations flagsim performs.
type FileSystem interface {
	Create(name string) (File, error)
	Remove(name string) error
}

// LocalFS implements FileSystem with the os package.
type LocalFS struct{}

// Create implements FileSystem.
func (LocalFS) Create(name string) (File, error) { return os.Create(name) }

// Remove implements FileSystem.
func (LocalFS) Remove(name string) error { return os.Remove(name) }

// Default is the local file system.
var Default FileSystem = LocalFS{}
