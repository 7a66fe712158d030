package store

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a temporary sibling with a random suffix
// and renames it onto path, so a reader never observes a partial write.
// A failed write that leaves the temp file behind is swept the next
// time this function runs against the same target.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	sweepOrphanedTemp(dir, filepath.Base(path))

	suffix, err := randomSuffix()
	if err != nil {
		return err
	}
	tmp := path + ".tmp-" + suffix
	if err := os.WriteFile(tmp, data, perm); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

// sweepOrphanedTemp removes leftover temp files from a previous crashed
// write to baseName in dir.
func sweepOrphanedTemp(dir, baseName string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	prefix := baseName + ".tmp-"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}
