// Package blob stores uploaded files behind a small Store interface.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// DefaultMaxBytes is the largest accepted upload.
	DefaultMaxBytes = 10 << 20
	// URLPrefix is the public path blobs are served under.
	URLPrefix = "/uploads/"
)

// DefaultExtensions is the extension allow-list used when none is configured.
var DefaultExtensions = []string{"png", "jpg", "jpeg", "gif", "pdf", "txt"}

var (
	ErrNotFound            = errors.New("blob: not found")
	ErrEmptyName           = errors.New("blob: empty file name")
	ErrDisallowedExtension = errors.New("blob: file type not allowed")
	ErrTooLarge            = errors.New("blob: file too large")
	ErrUnavailable         = errors.New("blob: store unavailable")
)

// Store persists blobs by name.
type Store interface {
	// Put writes r under name and returns the number of bytes stored.
	Put(ctx context.Context, name string, r io.Reader) (int64, error)
	// Open returns the blob content and its size. Unknown names yield ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	// Delete removes a blob. Unknown names are ignored.
	Delete(ctx context.Context, name string) error
	Close() error
}

// Policy limits what may be uploaded.
type Policy struct {
	MaxBytes          int64
	AllowedExtensions []string
}

// DefaultPolicy returns the 10 MiB png/jpg/jpeg/gif/pdf/txt policy.
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, AllowedExtensions: DefaultExtensions}
}

// Allowed reports whether filename carries an allowed extension (case-insensitive).
func (p Policy) Allowed(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range p.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces a client-supplied file name to a safe base name.
// Directory parts are dropped and runs of unsafe characters become "_".
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Stored describes a blob accepted by an Uploader.
type Stored struct {
	Name     string // storage key, "<uuid>_<sanitized>"
	Original string // sanitized client name
	URL      string
	Size     int64
}

// Uploader applies a Policy before handing bytes to a Store.
type Uploader struct {
	store  Store
	policy Policy
}

// NewUploader creates an uploader. Zero policy fields fall back to defaults.
func NewUploader(store Store, policy Policy) *Uploader {
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultMaxBytes
	}
	if len(policy.AllowedExtensions) == 0 {
		policy.AllowedExtensions = DefaultExtensions
	}
	return &Uploader{store: store, policy: policy}
}

// Policy returns the effective upload policy.
func (u *Uploader) Policy() Policy {
	return u.policy
}

// Check validates a client file name without storing anything and returns its sanitized form.
func (u *Uploader) Check(filename string, size int64) (string, error) {
	clean := SanitizeName(filename)
	if clean == "" {
		return "", ErrEmptyName
	}
	if !u.policy.Allowed(clean) {
		return "", ErrDisallowedExtension
	}
	if size > u.policy.MaxBytes {
		return "", ErrTooLarge
	}
	return clean, nil
}

// Save checks filename, then streams r into the store under a unique name.
// Content beyond MaxBytes removes the partial blob and returns ErrTooLarge.
func (u *Uploader) Save(ctx context.Context, filename string, r io.Reader) (*Stored, error) {
	clean, err := u.Check(filename, 0)
	if err != nil {
		return nil, err
	}

	name := uuid.NewString() + "_" + clean
	n, err := u.store.Put(ctx, name, io.LimitReader(r, u.policy.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("put blob: %w", err)
	}
	if n > u.policy.MaxBytes {
		_ = u.store.Delete(ctx, name)
		return nil, ErrTooLarge
	}

	return &Stored{Name: name, Original: clean, URL: URLPrefix + name, Size: n}, nil
}

// Open returns a stored blob.
func (u *Uploader) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	return u.store.Open(ctx, name)
}

// Discard removes a stored blob.
func (u *Uploader) Discard(ctx context.Context, name string) error {
	return u.store.Delete(ctx, name)
}
