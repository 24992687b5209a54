package postservice

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskImageStore deletes uploaded images below root.
type DiskImageStore struct {
	root string
}

func NewDiskImageStore(root string) *DiskImageStore {
	return &DiskImageStore{root: root}
}

// Delete removes the file at path, relative to the store root. A file that is
// already gone counts as deleted.
func (s *DiskImageStore) Delete(path string) error {
	full := filepath.Join(s.root, filepath.Clean("/"+path))

	err := os.Remove(full)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}
