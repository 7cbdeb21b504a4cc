// Package iohelper provides helper functions for I/O operations,
// particularly for safely reading HTTP response bodies with limits.
package iohelper

import (
	"bytes"
	"io"

	"golang.org/x/net/html/charset"
)

// Standard body size limits
const (
	// SmallMaxBodySize is for status pages and logout responses (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for HTML pages holding forms (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024
)

// ReadBody reads from an io.Reader with a size limit.
// If r is nil, returns empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodyDefault reads from an io.Reader with the default 1MB limit.
func ReadBodyDefault(r io.Reader) ([]byte, error) {
	return ReadBody(r, DefaultMaxBodySize)
}

// DecodeHTML converts an HTML body to UTF-8 using the charset declared in
// contentType, a <meta> tag, or a BOM, in that order. Bodies that are
// already UTF-8, or whose charset cannot be determined, are returned as is.
func DecodeHTML(body []byte, contentType string) []byte {
	if len(body) == 0 {
		return body
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return body
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return body
	}
	return decoded
}

// DrainAndClose reads any remaining data from r and closes it if it's a ReadCloser.
// This ensures the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	// Drain remaining data (limited to 64KB)
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
