package core

import (
	"io/fs"
	"path/filepath"
)

// ScanDirectory walks root and returns one FileEntry per regular
// file, in deterministic lexical walk order, with per-file hashes
// computed up front. Entry paths are relative to root and use forward
// slashes.
func ScanDirectory(root, algorithm string, chunkSize int) ([]FileEntry, int64, error) {
	var entries []FileEntry
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum, err := HashFile(path, algorithm, chunkSize)
		if err != nil {
			return err
		}

		entries = append(entries, FileEntry{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			Hash:    sum,
			abspath: path,
		})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
