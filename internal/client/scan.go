package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// uploadExtensions are the file types the server extracts text from.
var uploadExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".doc":      true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// ExpandPaths replaces every directory in paths with the uploadable files below it.
// Plain file arguments are kept as given, whatever their extension.
func ExpandPaths(ctx context.Context, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", p, err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := ScanDir(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// ScanDir walks root and returns the uploadable files in lexical order.
// Hidden directories (".git", ".obsidian", ...) are skipped.
func ScanDir(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		// Check for context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !uploadExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return files, nil
}
