//go:build windows

package storage

import (
	"fmt"
	"os"
)

// lockFile approximates the unix flock with an exclusive create-open.
// Windows keeps the handle exclusive for the process lifetime; the release
// function closes and removes it.
func lockFile(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return func() error {
		if err := f.Close(); err != nil {
			return err
		}
		return os.Remove(path)
	}, nil
}
