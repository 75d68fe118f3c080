package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

// OwnerOnly is the mode for files only the current user may read or write.
const OwnerOnly os.FileMode = 0600

// RestrictFile limits path to OwnerOnly. Windows ignores Unix permission
// bits so it is a no-op there, and so is a path that does not exist (an
// in-memory database, for example).
func RestrictFile(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm() == OwnerOnly {
		return nil
	}
	if err := os.Chmod(path, OwnerOnly); err != nil {
		return fmt.Errorf("restricting permissions on %s: %w", path, err)
	}
	return nil
}
