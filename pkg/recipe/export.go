package recipe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrExportInsideSource is returned when the export destination would be
// part of the exported tree
var ErrExportInsideSource = errors.New("export destination is inside the source tree")

// ExportSources copies the files selected by exports_sources from srcDir
// into dstDir, keeping their relative layout. It returns the copied paths
// relative to srcDir. A recipe without exports_sources exports nothing.
func (r *Recipe) ExportSources(srcDir, dstDir string) ([]string, error) {
	if len(r.exportsSources) == 0 {
		return nil, nil
	}

	srcDir, err := filepath.Abs(srcDir)
	if err != nil {
		return nil, err
	}
	dstDir, err = filepath.Abs(dstDir)
	if err != nil {
		return nil, err
	}
	if dstDir == srcDir {
		return nil, ErrExportInsideSource
	}

	// a destination below the source is only allowed when excluded
	if rel, err := filepath.Rel(srcDir, dstDir); err == nil && !strings.HasPrefix(rel, "..") {
		if !r.exports.Excluded(rel) {
			return nil, fmt.Errorf("%w: %s", ErrExportInsideSource, rel)
		}
	}

	var exported []string
	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == srcDir {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == dstDir || r.exports.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !r.exports.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		target := filepath.Join(dstDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := copyFile(path, target, info.Mode().Perm()); err != nil {
			return fmt.Errorf("export %s: %w", rel, err)
		}
		exported = append(exported, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return exported, nil
}
