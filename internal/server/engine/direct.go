package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

// direct streams the whole object through one connection with no chunk
// accounting. Used for small objects; a failure is escalated to the caller
// for a whole-phase retry.
func (e *Engine) direct(ctx context.Context, reader source.Reader, plan *models.TransferPlan,
	progress ProgressFunc) (*Result, error) {

	conn, err := e.dialer.Dial(ctx, &plan.Destination)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stream, err := reader.Open(ctx, plan.Source.Bucket, plan.Source.Key)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	h := md5.New()
	pr := &progressReader{
		r:        io.TeeReader(stream, h),
		interval: e.cfg.ChunkSize,
		progress: progress,
	}

	remote := plan.Destination.RemoteFile(plan.Source.Key)
	n, err := conn.Store(ctx, remote, pr)
	if err != nil {
		return &Result{BytesTransferred: n}, err
	}

	progress(n)
	return &Result{
		BytesTransferred: n,
		Checksum:         hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// progressReader reports the running byte total every interval bytes read.
type progressReader struct {
	r        io.Reader
	interval int64
	progress ProgressFunc

	total      int64
	lastReport int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.total += int64(n)
	if p.interval > 0 && p.total-p.lastReport >= p.interval {
		p.lastReport = p.total
		p.progress(p.total)
	}
	return n, err
}
