package fixtures

import (
	"fmt"

	"github.com/ryanmoran/testbed/lifecycle"
	"github.com/spf13/afero"
)

// Files creates temporary files and directories that are deleted when the
// scope they were created in is drained.
type Files struct {
	lifecycle.Base
	ops  *lifecycle.Operations
	fs   afero.Fs
	dirs tempDirs
}

// NewFiles returns a Files fixture working on fs, or on the OS filesystem
// when fs is nil.
func NewFiles(m *lifecycle.Manager, fs afero.Fs) *Files {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Files{
		Base: lifecycle.Base{DisplayName: "files"},
		ops:  m.Operations(),
		fs:   fs,
		dirs: tempDirs{fs: fs},
	}
}

// Fs returns the filesystem the fixture works on.
func (f *Files) Fs() afero.Fs {
	return f.fs
}

// CreateTempDir creates an empty temporary directory.
func (f *Files) CreateTempDir() (string, error) {
	return execute(f.ops, "Create temporary directory", "Delete temporary directory",
		func() (string, error) {
			return f.dirs.create("testbed-")
		},
		f.dirs.remove,
	)
}

// CreateTempFile creates an empty temporary file whose name is built from
// pattern the way os.CreateTemp does.
func (f *Files) CreateTempFile(pattern string) (string, error) {
	return execute(f.ops, "Create temporary file", "Delete temporary file",
		func() (string, error) {
			file, err := afero.TempFile(f.fs, "", pattern)
			if err != nil {
				return "", err
			}
			defer file.Close()

			return file.Name(), nil
		},
		f.dirs.remove,
	)
}

// RegisterForDeletion deletes path, and everything below it, when the
// current scope is drained. Paths that are already gone are ignored.
func (f *Files) RegisterForDeletion(path string) error {
	op := lifecycle.NewAction(fmt.Sprintf("Register auto-delete: %s", path), nil, func() error {
		return f.dirs.remove(path)
	}).WithReverseDescription(fmt.Sprintf("Deleting: %s", path))

	return f.ops.ExecuteOperation(op)
}
