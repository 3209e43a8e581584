package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local implements ports.FileStorage on the local filesystem. Files are
// content-addressed: the URL embeds the SHA-256 of the payload, so a
// re-upload of identical bytes is a no-op and URLs never collide.
type Local struct {
	root string
}

// NewLocal creates the storage root if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = "data/files"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

// Store writes the payload and returns its file:// URL.
func (l *Local) Store(_ context.Context, data []byte, name string) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	// Two-level fan-out keeps directory sizes sane.
	dir := filepath.Join(l.root, digest[:2])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	path := filepath.Join(dir, digest+sanitizeExt(name))
	if _, err := os.Stat(path); err == nil {
		return "file://" + path, nil
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename: %w", err)
	}
	return "file://" + path, nil
}

// Delete removes a stored file. Unknown URLs are ignored.
func (l *Local) Delete(_ context.Context, url string) error {
	path := strings.TrimPrefix(url, "file://")
	rel, err := filepath.Rel(l.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("url outside storage root: %s", url)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf", ".png", ".jpg", ".jpeg", ".zip":
		return ext
	default:
		return ".bin"
	}
}
