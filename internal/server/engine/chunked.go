package engine

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/fileferry/internal/server/dest"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

// lazyConn re-dials the destination after a failed attempt so a broken
// control connection does not poison every remaining retry.
type lazyConn struct {
	dialer dest.Dialer
	d      *models.Destination
	conn   dest.Conn
}

func (lc *lazyConn) get(ctx context.Context) (dest.Conn, error) {
	if lc.conn != nil {
		return lc.conn, nil
	}
	conn, err := lc.dialer.Dial(ctx, lc.d)
	if err != nil {
		return nil, err
	}
	lc.conn = conn
	return conn, nil
}

func (lc *lazyConn) invalidate() {
	if lc.conn != nil {
		_ = lc.conn.Close()
		lc.conn = nil
	}
}

func (lc *lazyConn) Close() {
	if lc.conn != nil {
		_ = lc.conn.Close()
		lc.conn = nil
	}
}

// chunked writes the object as sequential fixed-size chunks at explicit
// offsets, so a mid-transfer failure resumes from the last acknowledged
// chunk instead of byte zero. The rolling checksum only sees a chunk once
// the destination has acknowledged it.
func (e *Engine) chunked(ctx context.Context, reader source.Reader, plan *models.TransferPlan,
	size int64, progress ProgressFunc) (*Result, error) {

	chunks := models.SplitChunks(size, e.cfg.ChunkSize)
	remote := plan.Destination.RemoteFile(plan.Source.Key)

	lc := &lazyConn{dialer: e.dialer, d: &plan.Destination}
	defer lc.Close()

	h := md5.New()
	var transferred int64

	for _, c := range chunks {
		data, err := e.transferChunk(ctx, reader, lc, plan, remote, c)
		if err != nil {
			return &Result{BytesTransferred: transferred}, err
		}

		h.Write(data)
		transferred += int64(len(data))
		progress(transferred)
	}

	return &Result{
		BytesTransferred: transferred,
		Checksum:         hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// transferChunk reads one chunk from the source and writes it at its offset,
// retrying with bounded exponential backoff. The returned bytes are exactly
// what the destination acknowledged.
func (e *Engine) transferChunk(ctx context.Context, reader source.Reader, lc *lazyConn,
	plan *models.TransferPlan, remote string, c models.Chunk) ([]byte, error) {

	var data []byte

	err := retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		rc, err := reader.OpenRange(ctx, plan.Source.Bucket, plan.Source.Key, c.Offset, c.Length)
		if err != nil {
			return classify(err)
		}
		buf := make([]byte, c.Length)
		_, err = io.ReadFull(rc, buf)
		_ = rc.Close()
		if err != nil {
			return classify(fmt.Errorf("reading chunk %d: %w", c.Index, err))
		}

		conn, err := lc.get(ctx)
		if err != nil {
			return classify(err)
		}
		if _, err := conn.StoreAt(ctx, remote, bytes.NewReader(buf), c.Offset); err != nil {
			lc.invalidate()
			return classify(err)
		}

		data = buf
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %d [%d,%d): %w", c.Index, c.Offset, c.Offset+c.Length, err)
	}

	return data, nil
}
