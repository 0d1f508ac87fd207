package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

type chunkResult struct {
	index int
	data  []byte
}

// parallel partitions the object into fixed-size chunks and transfers them
// with a bounded worker pool; each worker dials its own destination
// connection and writes its byte range at an explicit offset. Completion
// waits for every chunk: if any one exhausts its retry budget the whole
// strategy fails, never a partial silent success.
//
// Completed chunks are handed to a collector that feeds the rolling digest
// strictly in chunk order, so the overall checksum does not depend on worker
// scheduling. The semaphore is released only when a chunk has been folded
// into the digest, which bounds buffered out-of-order chunks to the worker
// count.
func (e *Engine) parallel(ctx context.Context, reader source.Reader, plan *models.TransferPlan,
	size int64, progress ProgressFunc) (*Result, error) {

	chunks := models.SplitChunks(size, e.cfg.ChunkSize)
	remote := plan.Destination.RemoteFile(plan.Source.Key)

	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan models.Chunk)
	results := make(chan chunkResult, workers)
	sem := make(chan struct{}, workers)

	g.Go(func() error {
		defer close(jobs)
		for _, c := range chunks {
			select {
			case jobs <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			lc := &lazyConn{dialer: e.dialer, d: &plan.Destination}
			defer lc.Close()

			for c := range jobs {
				select {
				case sem <- struct{}{}:
				case <-gctx.Done():
					return gctx.Err()
				}

				data, err := e.transferChunk(gctx, reader, lc, plan, remote, c)
				if err != nil {
					return err
				}

				select {
				case results <- chunkResult{index: c.Index, data: data}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	h := md5.New()
	var transferred int64
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		pending := make(map[int][]byte)
		next := 0
		for res := range results {
			pending[res.index] = res.data
			for {
				data, ok := pending[next]
				if !ok {
					break
				}
				h.Write(data)
				transferred += int64(len(data))
				progress(transferred)
				delete(pending, next)
				next++
				<-sem
			}
		}
	}()

	err := g.Wait()
	close(results)
	<-collectorDone

	if err != nil {
		return &Result{BytesTransferred: transferred}, err
	}

	return &Result{
		BytesTransferred: transferred,
		Checksum:         hex.EncodeToString(h.Sum(nil)),
	}, nil
}
