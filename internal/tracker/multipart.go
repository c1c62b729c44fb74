package tracker

import (
	"bytes"
	"strings"

	"github.com/google/uuid"
)

const crlf = "\r\n"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"", "\r", "", "\n", "")

// MultipartBuilder frames a multipart/form-data body byte for byte. The tracker's
// upload endpoint is picky about framing, so parts are written explicitly.
type MultipartBuilder struct {
	boundary string
	buf      bytes.Buffer
	closed   bool
}

// NewMultipartBuilder creates a builder with a random boundary
func NewMultipartBuilder() *MultipartBuilder {
	return NewMultipartBuilderWithBoundary("----SupportFormBoundary" + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// NewMultipartBuilderWithBoundary creates a builder with a fixed boundary
func NewMultipartBuilderWithBoundary(boundary string) *MultipartBuilder {
	return &MultipartBuilder{boundary: boundary}
}

// Boundary returns the boundary token
func (b *MultipartBuilder) Boundary() string {
	return b.boundary
}

// ContentType returns the Content-Type header value for the body
func (b *MultipartBuilder) ContentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// AddFile appends one file part. Data is copied as is.
func (b *MultipartBuilder) AddFile(field, filename, contentType string, data []byte) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.buf.WriteString("--" + b.boundary + crlf)
	b.buf.WriteString(`Content-Disposition: form-data; name="` + quoteEscaper.Replace(field) + `"; filename="` + quoteEscaper.Replace(filename) + `"` + crlf)
	b.buf.WriteString("Content-Type: " + strings.NewReplacer("\r", "", "\n", "").Replace(contentType) + crlf)
	b.buf.WriteString(crlf)
	b.buf.Write(data)
	b.buf.WriteString(crlf)
}

// Close writes the terminating boundary. Further calls are no-ops.
func (b *MultipartBuilder) Close() {
	if b.closed {
		return
	}
	b.closed = true
	b.buf.WriteString("--" + b.boundary + "--" + crlf)
}

// Bytes closes the body and returns it
func (b *MultipartBuilder) Bytes() []byte {
	b.Close()
	return b.buf.Bytes()
}

// Len returns the current body length
func (b *MultipartBuilder) Len() int {
	return b.buf.Len()
}
