// Package fileutil expands the file arguments of a turn into the list of
// paths shown to the planner.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// DefaultExcludeDirs are skipped when walking a directory argument
var DefaultExcludeDirs = []string{"node_modules", "vendor", "__pycache__"}

// Options configures Collect
type Options struct {
	// Extensions restricts files found inside directories (e.g. ".go").
	// Files named directly are always kept.
	Extensions []string

	// ExcludeDirs are directory names skipped while walking. Hidden
	// directories are always skipped.
	ExcludeDirs []string

	// MaxFiles caps the number of files taken from directories (0 = no cap)
	MaxFiles int
}

// Result is the outcome of Collect
type Result struct {
	// Files are the collected paths in argument order, directory contents
	// sorted, without duplicates
	Files []string

	// Missing are arguments that do not exist
	Missing []string

	// Truncated is set when MaxFiles cut a directory short
	Truncated bool
}

// Collect resolves each argument: existing files are kept as given,
// directories are walked, and missing paths are reported in Result.Missing.
// Errors met while walking are combined and returned with the partial result.
func Collect(paths []string, opts Options) (*Result, error) {
	res := &Result{Files: []string{}}
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			res.Files = append(res.Files, p)
		}
	}

	var errs error
	fromDirs := 0
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			res.Missing = append(res.Missing, p)
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		files, err := walk(p, opts)
		errs = multierr.Append(errs, err)
		for _, f := range files {
			if opts.MaxFiles > 0 && fromDirs >= opts.MaxFiles {
				res.Truncated = true
				break
			}
			if !seen[f] {
				fromDirs++
			}
			add(f)
		}
	}
	return res, errs
}

func walk(dir string, opts Options) ([]string, error) {
	exts := make(map[string]bool)
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}
	exclude := make(map[string]bool)
	for _, name := range opts.ExcludeDirs {
		exclude[name] = true
	}

	var files []string
	var errs error
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil
		}
		if path == dir {
			return nil
		}
		if d.IsDir() {
			if exclude[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, errs
}
