package pack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"villager/internal/archive"
)

// artifactPatterns match every file Convert may leave in a package directory.
var artifactPatterns = []string{
	archive.VillageFile,
	"period-*.xml",
	"." + archive.VillageFile + "-*.tmp",
	".period-*.xml-*.tmp",
	".period-*.xml-*.bak",
}

// Remove deletes the package files in dir and then dir itself when nothing
// else is left in it. Files that Convert did not write are never touched.
// removedDir reports whether the directory is gone.
func Remove(dir string) (removedDir bool, err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return false, fmt.Errorf("stat package: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s is not a directory", dir)
	}

	lockPath := filepath.Join(dir, LockFile)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire package lock: %w", err)
	}
	if !locked {
		return false, fmt.Errorf("%w: %s", ErrPackageBusy, dir)
	}

	var errs []error
	for _, pattern := range artifactPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, path := range matches {
			if err := removeFile(path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release package lock: %w", err))
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, errors.Join(errs...)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read package directory: %w", err)
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, fmt.Errorf("remove package directory: %w", err)
	}
	return true, nil
}

// removeFile deletes path unless it is a directory, which Convert never
// creates.
func removeFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return os.Remove(path)
}
