package walker

import (
	"fmt"
	"os"
	"path/filepath"
)

// Entry describes one filesystem node visited during a walk.
type Entry struct {
	RelPath string // path relative to the walk root
	Name    string // base name
	Depth   int    // 1 for direct children of the root
	IsDir   bool
}

// ignoredDirs are never descended into and never reported.
var ignoredDirs = map[string]bool{
	".git": true,
}

// ignoredFiles carry no package semantics and never participate in diffing.
var ignoredFiles = map[string]bool{
	".gitignore": true,
	".SRCINFO":   true,
}

// Walk traverses root depth-first and returns every entry below it in a
// deterministic order: siblings are sorted by name at each level, so two
// walks of structurally identical trees produce identical entry sequences.
// The root itself is not reported. Version-control metadata is filtered out
// entirely. A missing or unreadable directory fails the walk.
func Walk(root string) ([]Entry, error) {
	var entries []Entry
	if err := walk(root, "", 1, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func walk(dir, rel string, depth int, out *[]Entry) error {
	// os.ReadDir returns entries sorted by filename, which gives the
	// stable sibling ordering the lock-step comparison relies on.
	children, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, child := range children {
		name := child.Name()
		if child.IsDir() && ignoredDirs[name] {
			continue
		}
		if !child.IsDir() && ignoredFiles[name] {
			continue
		}

		childRel := filepath.Join(rel, name)
		*out = append(*out, Entry{
			RelPath: childRel,
			Name:    name,
			Depth:   depth,
			IsDir:   child.IsDir(),
		})

		if child.IsDir() {
			if err := walk(filepath.Join(dir, name), childRel, depth+1, out); err != nil {
				return err
			}
		}
	}

	return nil
}

// Files returns the subset of Walk's output that are regular files, in walk
// order. Both trees of a package comparison are paired file-by-file from
// this sequence.
func Files(root string) ([]Entry, error) {
	entries, err := Walk(root)
	if err != nil {
		return nil, err
	}

	files := entries[:0:0]
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e)
		}
	}
	return files, nil
}
