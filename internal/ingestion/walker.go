// Package ingestion indexes directories of segmented document bundles and
// keeps them indexed as files change.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileEntry represents a document bundle to be indexed.
type FileEntry struct {
	// Path is the absolute file path.
	Path string

	// RelPath is the slash-separated path relative to the walked root. It is
	// also the name of the file's graph.
	RelPath string

	// SHA256 is the hash of the file content.
	SHA256 string
}

// BundleExt is the extension of document bundle files.
const BundleExt = ".json"

// Default patterns to ignore (in addition to .gitignore).
var defaultIgnorePatterns = []string{
	".git/",
	".lexigraph/",
	"node_modules/",
	".venv/",
	"venv/",
	".DS_Store",
	"Thumbs.db",
}

// WalkDocuments walks dir and returns every document bundle not excluded by
// the default ignores or the root .gitignore.
func WalkDocuments(dir string) ([]FileEntry, error) {
	matcher, err := loadMatcher(dir)
	if err != nil {
		return nil, err
	}

	var entries []FileEntry
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != dir && shouldSkipDir(d.Name(), path, dir, matcher) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isBundleFile(d.Name()) {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if matcher.Match(splitPath(relPath), false) {
			return nil
		}

		entry, err := newFileEntry(dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})

	return entries, err
}

func newFileEntry(root, path string) (FileEntry, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return FileEntry{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return FileEntry{}, err
	}
	hash := sha256.Sum256(content)

	return FileEntry{
		Path:    path,
		RelPath: filepath.ToSlash(relPath),
		SHA256:  hex.EncodeToString(hash[:]),
	}, nil
}

// loadMatcher combines the default ignore patterns with the patterns of the
// .gitignore in dir, if any.
func loadMatcher(dir string) (gitignore.Matcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	loaded, err := loadGitignore(dir)
	if err != nil {
		return nil, err
	}
	return gitignore.NewMatcher(append(patterns, loaded...)), nil
}

// loadGitignore loads .gitignore patterns from dir.
func loadGitignore(dir string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, nil
}

// isBundleFile checks if a file has the bundle extension.
func isBundleFile(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), BundleExt)
}

// shouldSkipDir checks if a directory should be skipped.
func shouldSkipDir(name, path, root string, matcher gitignore.Matcher) bool {
	if name == ".git" {
		return true
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return matcher.Match(splitPath(relPath), true)
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	return strings.Split(path, string(filepath.Separator))
}
