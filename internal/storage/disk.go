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
	"time"
)

// DiskStore writes attachments under a local directory that the server
// exposes at urlPrefix.
type DiskStore struct {
	dir       string
	urlPrefix string
	now       func() time.Time
}

func NewDiskStore(dir, urlPrefix string) *DiskStore {
	return &DiskStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/"), now: time.Now}
}

func (d *DiskStore) Dir() string {
	return d.dir
}

func (d *DiskStore) Save(ctx context.Context, filename, _ string, _ int64, r io.Reader) (string, error) {
	key := objectKey(filename, d.now())
	target := filepath.Join(d.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		f.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return path.Join(d.urlPrefix, key), nil
}

func (d *DiskStore) Delete(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, d.urlPrefix+"/")
	if !ok || !strings.HasPrefix(key, "attachments/") || strings.Contains(key, "..") {
		return fmt.Errorf("not an attachment of this store: %s", ref)
	}
	err := os.Remove(filepath.Join(d.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
