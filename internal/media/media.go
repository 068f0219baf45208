// Package media sniffs and checks uploaded files before they are sent for analysis.
package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmpty       = errors.New("file is empty")
	ErrUnsupported = errors.New("unsupported file type: upload an image, a video or a PDF")
)

// ErrTooLarge reports an upload over the configured limit.
type ErrTooLarge struct {
	Size, Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("file is %d bytes, the limit is %d bytes", e.Size, e.Limit)
}

// Detect sniffs the content type of data and checks that it is an image, a
// video or a PDF. The declared type is only used when sniffing is inconclusive.
func Detect(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	mt := mimetype.Detect(data)
	mimeType := baseType(mt.String())
	if !Supported(mimeType) {
		// Some containers (e.g. HEIC, raw camera files) sniff as octet-stream.
		if mt.Is("application/octet-stream") && Supported(baseType(declared)) {
			return baseType(declared), nil
		}
		return "", ErrUnsupported
	}
	return mimeType, nil
}

// CheckSize enforces limit (in bytes) when it is positive.
func CheckSize(size, limit int64) error {
	if limit > 0 && size > limit {
		return &ErrTooLarge{Size: size, Limit: limit}
	}
	return nil
}

// Supported reports whether the MIME type can be analyzed.
func Supported(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") ||
		strings.HasPrefix(mimeType, "video/") ||
		mimeType == "application/pdf"
}

func baseType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
