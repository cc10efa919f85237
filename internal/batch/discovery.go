package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// fileFilter selects files by base name. Exclusions win over inclusions; an
// empty include list admits everything not excluded.
type fileFilter struct {
	include []string
	exclude []string
}

func (f fileFilter) admits(path string) bool {
	base := filepath.Base(path)
	if globMatch(base, f.exclude) {
		return false
	}
	return len(f.include) == 0 || globMatch(base, f.include)
}

func globMatch(name string, patterns []string) bool {
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := filepath.Match(p, name)
		return ok
	})
}

// discoverImageFiles expands args into the list of files to scan. Files
// named explicitly are kept whatever their extension, so a bad input is
// reported rather than silently skipped; files found in directories must
// look like images. A file reached twice is listed once, at its first
// position.
func discoverImageFiles(afs afero.Fs, args []string, recursive bool, include, exclude []string) ([]string, error) {
	filter := fileFilter{include: include, exclude: exclude}
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if key := filepath.Clean(p); !seen[key] {
			seen[key] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := afs.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if filter.admits(arg) {
				add(arg)
			}
			continue
		}

		found, err := walkImages(afs, arg, recursive, filter)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}

// walkImages lists the images under dir in lexical order, descending into
// subdirectories only when recursive is set.
func walkImages(afs afero.Fs, dir string, recursive bool, filter fileFilter) ([]string, error) {
	var found []string
	err := afero.Walk(afs, dir, func(path string, info fs.FileInfo, err error) error {
		switch {
		case err != nil:
			return err
		case info.IsDir() && path != dir && !recursive:
			return filepath.SkipDir
		case !info.IsDir() && utils.IsSupportedImage(path) && filter.admits(path):
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(found)
	return found, nil
}
