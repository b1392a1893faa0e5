// Package storage keeps uploaded files in a local directory served under /storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrOutsideRoot = errors.New("path outside storage root")

// Object is a stored file.
type Object struct {
	Key  string // slash separated, relative to the root
	Path string // absolute filesystem path
	Size int64
	URL  string
}

type Local struct {
	root       string
	publicBase string
}

func NewLocal(root, publicBase string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

func (l *Local) Root() string { return l.root }

// Put copies r into <prefix>/<uuid>-<name>. The copy stops when ctx is done.
func (l *Local) Put(ctx context.Context, prefix, name string, r io.Reader) (Object, error) {
	key := path.Join(cleanSegment(prefix), uuid.NewString()+"-"+cleanName(name))
	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Object{}, err
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, err
	}
	n, err := io.Copy(f, ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return Object{}, err
	}
	return Object{Key: key, Path: dst, Size: n, URL: l.PublicURL(key)}, nil
}

// Remove deletes a file by absolute path or key. Missing files are not an error.
func (l *Local) Remove(p string) error {
	abs, err := l.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) PublicURL(key string) string {
	u := &url.URL{Path: "/storage/" + strings.TrimLeft(key, "/")}
	return l.publicBase + u.EscapedPath()
}

func (l *Local) resolve(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(l.root, filepath.FromSlash(p))
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideRoot
	}
	return abs, nil
}

func cleanSegment(s string) string {
	s = strings.Trim(path.Clean("/"+s), "/")
	if s == "" {
		return "misc"
	}
	return s
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
