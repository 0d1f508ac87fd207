// Package dest abstracts the destination file-transfer protocols (ftp, sftp,
// ftps). Variants differ only in transport and auth handshake; the chunk
// loop in the engine is protocol-agnostic.
package dest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// Conn is one authenticated connection to a destination server. Connections
// are not safe for concurrent use; parallel workers dial their own.
type Conn interface {
	// Store writes the whole stream to path, replacing any existing file.
	Store(ctx context.Context, path string, r io.Reader) (int64, error)

	// StoreAt writes the stream starting at a byte offset. Used for resume
	// and for parallel chunk writes. Servers without offset support reject
	// the call; the engine falls back to whole-object restart.
	StoreAt(ctx context.Context, path string, r io.Reader, offset int64) (int64, error)

	Close() error
}

// Dialer opens connections to a destination endpoint.
type Dialer interface {
	Dial(ctx context.Context, d *models.Destination) (Conn, error)
}

// ProtocolDialer dispatches on the plan's protocol field.
type ProtocolDialer struct {
	Timeout time.Duration
}

func (pd *ProtocolDialer) Dial(ctx context.Context, d *models.Destination) (Conn, error) {
	switch d.Protocol {
	case models.ProtocolFTP:
		return dialFTP(ctx, d, pd.Timeout, false)
	case models.ProtocolFTPS:
		return dialFTP(ctx, d, pd.Timeout, true)
	case models.ProtocolSFTP:
		return dialSFTP(d, pd.Timeout)
	default:
		return nil, fmt.Errorf("%w: unsupported protocol %q", common.ErrValidation, d.Protocol)
	}
}

// countingReader tracks bytes consumed by protocol clients that do not
// report a written-byte count themselves.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
