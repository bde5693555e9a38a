// Package storage 存储桶：按 key 存取上传文件，本地文件系统实现，通过静态路由对外提供
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrNotExist   = errors.New("storage: object does not exist")
)

type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(u string) (string, bool)
}

// FileBucket 把对象存到 root 目录下，对外地址为 publicURL/key
type FileBucket struct {
	root      string
	publicURL string
}

func NewFileBucket(root, publicURL string) (*FileBucket, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileBucket{root: root, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// cleanKey 只允许相对路径，拒绝 .. 逃逸
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

func (b *FileBucket) path(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(b.root, filepath.FromSlash(k)), nil
}

// Put 先写临时文件再 rename，读者不会看到写了一半的对象
func (b *FileBucket) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	dst, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return b.URL(key), nil
}

func (b *FileBucket) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

func (b *FileBucket) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (b *FileBucket) URL(key string) string {
	return b.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// KeyFromURL 反解本桶生成的地址，不属于本桶时 ok=false
func (b *FileBucket) KeyFromURL(u string) (string, bool) {
	key, ok := strings.CutPrefix(u, b.publicURL+"/")
	if !ok {
		return "", false
	}
	if _, err := cleanKey(key); err != nil {
		return "", false
	}
	return key, true
}
