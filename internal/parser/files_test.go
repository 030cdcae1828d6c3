package parser

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesm/chatview/internal/testjsonl"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path   string
		want   Format
		wantOK bool
	}{
		{"a.jsonl", FormatJSONL, true},
		{"a.NDJSON", FormatJSONL, true},
		{"dir/a.json", FormatJSON, true},
		{"a.csv", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := FormatOf(tt.path)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	rows := testjsonl.NewRowBuilder().
		AddMessage(1, "s", "2024-01-01T00:00:00Z", "AI", "WEB", "a").
		AddMessage(2, "s", "2024-01-01T00:01:00Z", "HUMAN", "WEB", "b")

	jsonl := filepath.Join(dir, "rows.jsonl")
	writeFile(t, jsonl, rows.JSONL())
	res, err := ParseFile(jsonl)
	require.NoError(t, err)
	assert.Len(t, res.Messages, 2)

	arr := filepath.Join(dir, "rows.json")
	writeFile(t, arr, rows.Array())
	res, err = ParseFile(arr)
	require.NoError(t, err)
	assert.Len(t, res.Messages, 2)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"not":"array"}`)
	_, err = ParseFile(bad)
	assert.Error(t, err)

	_, err = ParseFile(filepath.Join(dir, "rows.txt"))
	assert.Error(t, err)
}

func TestParseFile_RefusesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rows.jsonl")
	require.NoError(t, os.Mkdir(dir, 0o755))

	_, err := ParseFile(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotRegular)
}

func TestParseFile_RefusesSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real.jsonl")
	writeFile(t, target, testjsonl.RowJSON(1, "s", "", "t", "", "")+"\n")
	link := filepath.Join(dir, "link.jsonl")
	require.NoError(t, os.Symlink(target, link))

	_, err := ParseFile(link)
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.jsonl"), "")
	writeFile(t, filepath.Join(root, "a.json"), "[]")
	writeFile(t, filepath.Join(root, "nested", "c.jsonl"), "")
	writeFile(t, filepath.Join(root, "notes.txt"), "")
	writeFile(t, filepath.Join(root, ".hidden.jsonl"), "")
	writeFile(t, filepath.Join(root, ".cache", "d.jsonl"), "")

	files, err := Discover(root)
	require.NoError(t, err)
	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		got = append(got, filepath.ToSlash(rel))
		assert.NotZero(t, f.Mtime)
	}
	assert.Equal(t, []string{"a.json", "b.jsonl", "nested/c.jsonl"}, got)
}

func TestDiscover_MissingRoot(t *testing.T) {
	files, err := Discover(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
