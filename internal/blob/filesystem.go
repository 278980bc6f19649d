package blob

import (
	fsstore "rndharness/internal/infra/blob/fs"
)

// NewFilesystem returns a Store rooted at root, creating the directory.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}
