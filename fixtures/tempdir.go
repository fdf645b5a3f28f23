package fixtures

import (
	"github.com/spf13/afero"
)

// tempDirs creates and deletes temporary directories on fs.
type tempDirs struct {
	fs afero.Fs
}

// osTempDirs works on the OS filesystem. Git, SQLite and NATS hand the
// directory to code that opens it directly, so they always use it.
func osTempDirs() tempDirs {
	return tempDirs{fs: afero.NewOsFs()}
}

func (t tempDirs) create(prefix string) (string, error) {
	return afero.TempDir(t.fs, "", prefix)
}

func (t tempDirs) remove(path string) error {
	return t.fs.RemoveAll(path)
}

// createWith creates a directory and runs fill in it. The directory is
// removed again when fill fails.
func (t tempDirs) createWith(prefix string, fill func(dir string) error) (string, error) {
	dir, err := t.create(prefix)
	if err != nil {
		return "", err
	}

	if err := fill(dir); err != nil {
		_ = t.remove(dir)
		return "", err
	}
	return dir, nil
}
