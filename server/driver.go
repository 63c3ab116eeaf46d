package server

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Driver provides the filesystem primitives used by STOR and RETR.
//
// Paths are the raw STOR/RETR arguments. Implementations decide whether they
// are scoped to a root directory.
//
// Error handling:
//   - Return an error satisfying os.IsNotExist when a file doesn't exist
//   - Return an error satisfying os.IsPermission for permission denied errors
//   - The server will translate these to 550 responses
//
// Implementations must be safe for concurrent use by multiple sessions.
type Driver interface {
	// Stat returns file metadata. Used by RETR to detect missing files before
	// a data channel is opened.
	Stat(path string) (os.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates a file for writing.
	Create(path string) (io.WriteCloser, error)

	// Remove deletes a file. Used to discard a partially received upload.
	Remove(path string) error
}

// FSDriver implements Driver on top of an afero.Fs.
type FSDriver struct {
	fs afero.Fs

	// rooted drivers clean every path against "/" first, so ".." can never
	// climb above the base directory.
	rooted bool
}

// NewFSDriver returns a driver backed by fs.
//
// Example with an in-memory filesystem:
//
//	driver := server.NewFSDriver(afero.NewMemMapFs())
func NewFSDriver(fs afero.Fs) *FSDriver {
	return &FSDriver{fs: fs}
}

// NewOSDriver returns a driver backed by the local filesystem.
//
// If rootPath is empty, paths are used exactly as received, relative to the
// process working directory, with no traversal protection. Otherwise every
// path is resolved inside rootPath, which must be an existing directory.
func NewOSDriver(rootPath string) (*FSDriver, error) {
	osFs := afero.NewOsFs()
	if rootPath == "" {
		return NewFSDriver(osFs), nil
	}

	info, err := osFs.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path validation failed: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", rootPath)
	}

	return &FSDriver{fs: afero.NewBasePathFs(osFs, rootPath), rooted: true}, nil
}

// resolve maps a client path to the name handed to the filesystem.
// BasePathFs only checks that the joined path has the root as a string
// prefix, which a sibling such as "../ftp-secret" satisfies.
func (d *FSDriver) resolve(path string) string {
	if !d.rooted {
		return path
	}
	return filepath.Clean(string(filepath.Separator) + filepath.FromSlash(path))
}

// Stat implements Driver.
func (d *FSDriver) Stat(path string) (os.FileInfo, error) {
	return d.fs.Stat(d.resolve(path))
}

// Open implements Driver.
func (d *FSDriver) Open(path string) (io.ReadCloser, error) {
	path = d.resolve(path)
	info, err := d.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return d.fs.Open(path)
}

// Create implements Driver.
func (d *FSDriver) Create(path string) (io.WriteCloser, error) {
	return d.fs.OpenFile(d.resolve(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
}

// Remove implements Driver.
func (d *FSDriver) Remove(path string) error {
	return d.fs.Remove(d.resolve(path))
}
