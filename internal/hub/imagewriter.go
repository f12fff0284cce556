package hub

import (
	"os"
	"path/filepath"
)

// FileImageWriter writes decoded capture bytes under a per-install
// directory.
type FileImageWriter struct{}

func (FileImageWriter) Write(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
