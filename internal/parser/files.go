package parser

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNotRegular is returned for export paths that are not
// regular files.
var ErrNotRegular = errors.New("not a regular file")

// Format is an on-disk export format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatJSON  Format = "json"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// ParseFile parses an export file. The path must name a regular
// file, not a symlink.
func ParseFile(path string) (Result, error) {
	format, ok := FormatOf(path)
	if !ok {
		return Result{}, fmt.Errorf("unsupported file type: %s", path)
	}
	f, err := openExport(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if format == FormatJSONL {
		return ParseJSONL(f)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	res, err := ParseRows(data)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}

// DiscoveredFile is an importable file found under a directory.
type DiscoveredFile struct {
	Path  string
	Mtime int64 // UnixNano
	Size  int64
}

// Discover walks root for .json / .jsonl files, skipping hidden
// entries. A missing root yields no files. Results are sorted
// by path.
func Discover(root string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile
	err := filepath.WalkDir(root, func(
		path string, d fs.DirEntry, err error,
	) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if _, ok := FormatOf(name); !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, DiscoveredFile{
			Path:  path,
			Mtime: info.ModTime().UnixNano(),
			Size:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	slices.SortFunc(files, func(a, b DiscoveredFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return files, nil
}
