// Package storage saves message attachments and returns the reference kept
// on the message.
package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AttachmentStore interface {
	// Save stores the content and returns a URL or path clients can fetch.
	Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error)
	// Delete removes content saved under ref. Unknown refs are not an error.
	Delete(ctx context.Context, ref string) error
}

// objectKey builds a collision free key that keeps the original extension.
func objectKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return path.Join("attachments", now.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}
