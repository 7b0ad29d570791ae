package compress

import (
	"compress/gzip"
	"io"
	"net/http"
)

// GzipReader implements io.ReadCloser for reading a gzip-compressed request body.
type GzipReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
}

// NewGzipReader creates a new GzipReader over the request body.
func NewGzipReader(r io.ReadCloser) (*GzipReader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &GzipReader{
		body: r,
		zr:   zr,
	}, nil
}

// Read reads decompressed data from the body.
func (g *GzipReader) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

// Close closes both the gzip reader and the underlying body.
func (g *GzipReader) Close() error {
	if err := g.body.Close(); err != nil {
		return err
	}
	return g.zr.Close()
}

// GzipWriter wraps an http.ResponseWriter, compressing everything written to it.
type GzipWriter struct {
	http.ResponseWriter
	zw *gzip.Writer
}

// NewGzipWriter creates a new GzipWriter over the response writer.
func NewGzipWriter(w http.ResponseWriter) *GzipWriter {
	return &GzipWriter{
		ResponseWriter: w,
		zw:             gzip.NewWriter(w),
	}
}

// Write writes compressed data to the underlying response.
func (g *GzipWriter) Write(p []byte) (int, error) {
	return g.zw.Write(p)
}

// WriteHeader sets the Content-Encoding header before writing the status code.
func (g *GzipWriter) WriteHeader(statusCode int) {
	g.Header().Set("Content-Encoding", "gzip")
	g.ResponseWriter.WriteHeader(statusCode)
}

// Close flushes the remaining compressed data.
func (g *GzipWriter) Close() error {
	return g.zw.Close()
}
