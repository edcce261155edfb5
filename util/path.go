package util

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// CleanAndExpandPath resolves a leading ~ and $VARIABLE references in path
// and returns the cleaned result. Empty paths stay empty.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		path = strings.Replace(path, "~", homeDir(), 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}

func homeDir() string {
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return os.Getenv("HOME")
}

// FileExists reports whether name exists. Stat errors other than a missing
// file count as existing.
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return !errors.Is(err, fs.ErrNotExist)
}

// MakeDirectory creates dir and its parents with owner-only permissions.
func MakeDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && errors.Is(err, fs.ErrExist) {
			// usually a dangling symlink to an unmounted volume
			if link, lerr := os.Readlink(pathErr.Path); lerr == nil {
				err = fmt.Errorf("is symlink %s -> %s mounted?", pathErr.Path, link)
			}
		}
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}
	return nil
}
