// Package source reads the transfer source object from object storage.
// The streaming engine consumes it through the Reader interface; the S3
// implementation is built per transfer from the session's ephemeral
// credentials.
package source

import (
	"context"
	"io"
	"strings"
)

// ObjectInfo is the metadata the planner needs: the object size drives
// strategy selection, the ETag supplies the expected checksum when it is a
// plain MD5.
type ObjectInfo struct {
	Size int64
	ETag string
}

// MD5 returns the object's MD5 hex digest when the ETag carries one.
// Multipart-uploaded objects have composite ETags ("<hex>-<parts>") that are
// not usable as content checksums.
func (i *ObjectInfo) MD5() (string, bool) {
	etag := strings.Trim(i.ETag, `"`)
	if len(etag) == 32 && !strings.Contains(etag, "-") {
		return etag, true
	}
	return "", false
}

// Reader provides ranged read access to source objects.
type Reader interface {
	// Stat returns size and metadata for the object.
	Stat(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// Open returns a stream over the whole object.
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// OpenRange returns a stream over [offset, offset+length).
	OpenRange(ctx context.Context, bucket, key string, offset, length int64) (io.ReadCloser, error)
}
