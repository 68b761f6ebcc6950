package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// ScanOptions filters the files a scan returns. Patterns use doublestar
// syntax and match paths relative to the root, with forward slashes.
type ScanOptions struct {
	// Include keeps files matching any pattern. Empty keeps everything.
	Include []string
	// Exclude drops files and prunes directories matching any pattern.
	Exclude []string
	// Hidden includes dot files and dot directories.
	Hidden bool
	// FollowSymlinks follows symbolic links to directories.
	FollowSymlinks bool
}

// Validate checks every pattern.
func (o ScanOptions) Validate() error {
	for _, p := range append(append([]string(nil), o.Include...), o.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return nil
}

// Scan walks root and returns the matching regular files in sorted order.
// A root that is a file is returned as is.
func Scan(ctx context.Context, root string, opts ScanOptions) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: opts.FollowSymlinks}
	err = fastwalk.Walk(&conf, root, func(path string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if (!opts.Hidden && strings.HasPrefix(d.Name(), ".")) || matchAny(opts.Exclude, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && !(opts.FollowSymlinks && d.Type()&os.ModeSymlink != 0) {
			return nil
		}
		if !opts.Hidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if matchAny(opts.Exclude, rel) {
			return nil
		}
		if len(opts.Include) > 0 && !matchAny(opts.Include, rel) {
			return nil
		}

		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
