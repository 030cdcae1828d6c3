//go:build !windows

package parser

import (
	"fmt"
	"os"
	"syscall"
)

// openExport opens an export file for reading. O_NOFOLLOW makes
// the open fail with ELOOP when the last path component is a
// symlink, so a file swapped for a link after discovery is never
// read. Directories and devices are rejected with ErrNotRegular.
func openExport(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		return nil, err
	}
	return checkRegular(f)
}

func checkRegular(f *os.File) (*os.File, error) {
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", f.Name(), ErrNotRegular)
	}
	return f, nil
}
