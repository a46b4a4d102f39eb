// Package textfile implements the ports.SourceReader interface for plain
// documents on disk. Binary content is detected up front (null-byte and
// MIME sniff on the first 512 bytes) and reported as empty text so the
// tokenizer yields no words for it.
package textfile

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// maxSourceSize caps a single document at 64 MB. The stream cache
// re-reads the full text on every refill, so an unbounded document
// would make refills arbitrarily expensive.
const maxSourceSize = 64 << 20

// Reader implements ports.SourceReader over the local filesystem.
type Reader struct{}

// NewReader creates a filesystem source reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadAll returns the entire text of the file at path. Missing or
// unreadable files return an error; binary files return empty text.
func (r *Reader) ReadAll(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	if info.Size() > maxSourceSize {
		return "", fmt.Errorf("source too large: %d bytes", info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}

	if !isText(data) {
		return "", nil
	}
	return string(data), nil
}

// isText sniffs the first 512 bytes for binary content: any null byte
// or a non-text MIME type disqualifies the document.
func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	header := data
	if len(header) > 512 {
		header = header[:512]
	}
	for _, b := range header {
		if b == 0 {
			return false
		}
	}
	return isTextMIME(http.DetectContentType(header))
}

// isTextMIME returns true if the MIME type indicates text content.
func isTextMIME(mime string) bool {
	if strings.HasPrefix(mime, "text/") {
		return true
	}
	// http.DetectContentType returns "application/octet-stream" for unknown
	// types, but also returns specific application types for JSON, XML, etc.
	switch {
	case strings.Contains(mime, "javascript"),
		strings.Contains(mime, "json"),
		strings.Contains(mime, "xml"):
		return true
	}
	return false
}
