// Public domain.

// Package fetch downloads data files and opens them, gzip or not.
package fetch

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// ErrStatus is wrapped by errors for non-200 HTTP responses.
var ErrStatus = errors.New("fetch: unexpected HTTP status")

// File gets a fresh copy of the data at url and writes it to the file
// fn.  The file appears only once the download is complete.  The number of
// bytes written is returned.
func File(ctx context.Context, client *http.Client, url, fn string) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	r, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s from %s", ErrStatus, r.Status, url)
	}
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		return 0, err
	}
	f, err := os.CreateTemp(filepath.Dir(fn), ".fetch-*")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r.Body)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return 0, err
	}
	if err = f.Close(); err != nil {
		os.Remove(f.Name())
		return 0, err
	}
	return n, os.Rename(f.Name(), fn)
}

// CachePath returns the file name under dir that Cached uses for url.
func CachePath(dir, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	base := "data"
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" &&
		path.Base(u.Path) != "." {
		base = path.Base(u.Path)
	}
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+"-"+base)
}

// Cached returns the name of a local copy of url, downloading it into
// dir only if no copy is present.  The byte count is zero for cache hits.
func Cached(ctx context.Context, client *http.Client, dir, rawURL string) (fn string, n int64, err error) {
	fn = CachePath(dir, rawURL)
	if _, err = os.Stat(fn); err == nil {
		return fn, 0, nil
	}
	n, err = File(ctx, client, rawURL, fn)
	return fn, n, err
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (rc *readCloser) Close() (err error) {
	for _, c := range rc.closers {
		if e := c.Close(); err == nil {
			err = e
		}
	}
	return err
}

// Open opens fn for reading.  Gzip compressed content is recognized by
// its magic number and decompressed transparently.
func Open(fn string) (io.ReadCloser, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(f)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readCloser{zr, []io.Closer{zr, f}}, nil
	}
	return &readCloser{br, []io.Closer{f}}, nil
}
