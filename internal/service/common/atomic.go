//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// ReplaceFile writes the contents of r to path through a rename, so readers see
// either the previous file or the complete new one. Missing parent directories
// are created. The file ends up with mode.
func ReplaceFile(path string, r io.Reader, mode os.FileMode) error {
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	// The updater renames the current file aside before moving the new one in,
	// so the target has to exist.
	placeholder, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)

	switch {
	case err == nil:
		if err = placeholder.Close(); err != nil {
			return err
		}
	case !errors.Is(err, os.ErrExist):
		return fmt.Errorf("create %s: %w", path, err)
	}

	oldPath := path + ".old"

	options := goupdate.Options{
		TargetPath:  path,
		TargetMode:  mode,
		OldSavePath: oldPath,
	}

	if err = goupdate.Apply(r, options); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	if err = os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", oldPath, err)
	}

	return nil
}

// DefaultDirMode is used for every directory the updater creates.
const DefaultDirMode os.FileMode = 0o755
