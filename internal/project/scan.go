package project

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"make-upload/internal/ignore"
)

// Scan builds the tree of root on local disk, skipping entries matched by
// the project's .upload_ignore rules. The tree ID is the absolute root path.
func Scan(root string) (*Tree, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	ic := ignore.NewCache(absRoot)

	top := &Node{name: filepath.Base(absRoot), kind: KindFolder, absPath: absRoot}
	folders := map[string]*Node{absRoot: top}

	// WalkDir visits entries in lexical order, which becomes the tree order.
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == absRoot {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == absRoot {
			return nil
		}
		if ic.Match(p, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		parent := folders[filepath.Dir(p)]
		if parent == nil {
			return nil
		}

		n := &Node{name: d.Name(), absPath: p}
		switch {
		case d.IsDir():
			n.kind = KindFolder
			folders[p] = n
		case d.Type().IsRegular():
			n.kind = KindFile
		default:
			// sockets, devices and symlinks are not uploaded
			return nil
		}
		parent.Add(n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", absRoot, err)
	}
	return &Tree{ID: absRoot, root: top}, nil
}
