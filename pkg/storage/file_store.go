package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// FileStore saves uploads to a local directory served under urlPrefix.
type FileStore struct {
	basePath  string
	urlPrefix string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath, urlPrefix string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	urlPrefix = "/" + strings.Trim(strings.TrimSpace(urlPrefix), "/")
	if urlPrefix == "/" {
		urlPrefix = "/uploads"
	}
	return &FileStore{basePath: basePath, urlPrefix: urlPrefix}, nil
}

// Put writes the object to disk and returns its URL path.
func (f *FileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	name := safeFilename(key)
	if name == "" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	target := filepath.Join(f.basePath, name)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return f.urlPrefix + "/" + name, nil
}

// Delete removes a stored file; missing files are ignored.
func (f *FileStore) Delete(_ context.Context, key string) error {
	name := safeFilename(key)
	if name == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(f.basePath, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URLPrefix is the path under which Handler must be mounted.
func (f *FileStore) URLPrefix() string {
	return f.urlPrefix
}

// Handler serves stored files. Directory listings are not exposed.
func (f *FileStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(f.basePath))
	return http.StripPrefix(f.urlPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	}))
}

func safeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == ".." || name == string(os.PathSeparator) {
		return ""
	}
	return name
}
