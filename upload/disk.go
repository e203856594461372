package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DiskStorage writes objects below Root and serves them under PublicPrefix.
type DiskStorage struct {
	root         string
	publicPrefix string
}

func NewDiskStorage(root, publicPrefix string) (*DiskStorage, error) {
	if root == "" {
		return nil, errors.New("upload root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &DiskStorage{root: root, publicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

// Root is the directory objects are written to.
func (d *DiskStorage) Root() string {
	return d.root
}

func (d *DiskStorage) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	clean := filepath.Clean("/" + key)
	full := filepath.Join(d.root, clean)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return d.publicPrefix + filepath.ToSlash(clean), nil
}
