// Package storage keeps notification attachments on local disk or in S3 and
// hands out the reference persisted on the notification record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedType is returned for files outside the allow-list.
	ErrUnsupportedType = errors.New("file type not allowed")
	// ErrTooLarge is returned when a file exceeds the size ceiling.
	ErrTooLarge = errors.New("file exceeds the maximum upload size")
	// ErrNotFound is returned when a reference does not resolve to a stored file.
	ErrNotFound = errors.New("attachment not found")
)

// DefaultMaxBytes is the upload ceiling used when none is configured.
const DefaultMaxBytes int64 = 10_000_000

// allowed maps each accepted extension to the MIME types browsers send for it.
var allowed = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".jpg":  {"image/jpeg", "image/jpg"},
	".jpeg": {"image/jpeg", "image/jpg"},
	".png":  {"image/png"},
	".xls":  {"application/vnd.ms-excel"},
	".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".ppt":  {"application/vnd.ms-powerpoint"},
	".pptx": {"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
}

// Upload is an incoming file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Blob is stored attachment content.
type Blob struct {
	Filename    string
	ContentType string
	Content     []byte
}

// AttachmentStore persists uploaded files and releases them when the owning
// notification drops the reference.
type AttachmentStore interface {
	Save(ctx context.Context, upload Upload) (string, error)
	Open(ctx context.Context, ref string) (*Blob, error)
	Release(ctx context.Context, ref string) error
}

// Validate checks both the extension and the declared MIME type against the
// allow-list, and the size against max.
func Validate(filename, contentType string, size, max int64) error {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if size > max {
		return ErrTooLarge
	}

	ext := strings.ToLower(filepath.Ext(filename))
	types, ok := allowed[ext]
	if !ok {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, t := range types {
		if mediaType == t {
			return nil
		}
	}
	return fmt.Errorf("%w: content type %q", ErrUnsupportedType, mediaType)
}

// readLimited reads at most max bytes and fails when the content is longer.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	return data, nil
}

// storedName builds a collision-free file name that keeps the extension.
func storedName(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString(), ext)
}

// refName extracts the stored name from a reference under prefix.
func refName(prefix, ref string) (string, bool) {
	prefix = strings.TrimRight(prefix, "/") + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, prefix)
	if name == "" || name != path.Clean(name) || strings.HasPrefix(name, "..") || strings.HasPrefix(name, "/") {
		return "", false
	}
	return name, true
}

// FileName returns the base name of a reference, used as the email attachment name.
func FileName(ref string) string {
	return path.Base(ref)
}
