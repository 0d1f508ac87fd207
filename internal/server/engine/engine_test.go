package engine

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/logging"
	"github.com/dmitrijs2005/fileferry/internal/server/dest"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
	"github.com/dmitrijs2005/fileferry/internal/server/source"
)

// --- fakes ---

// memReader serves a fixed byte slice as the source object.
type memReader struct {
	data []byte
}

func (m *memReader) Stat(context.Context, string, string) (*source.ObjectInfo, error) {
	sum := md5.Sum(m.data)
	return &source.ObjectInfo{Size: int64(len(m.data)), ETag: hex.EncodeToString(sum[:])}, nil
}

func (m *memReader) Open(context.Context, string, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *memReader) OpenRange(_ context.Context, _, _ string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || offset+length > int64(len(m.data)) {
		return nil, fmt.Errorf("%w: range out of bounds", common.ErrSourceUnreadable)
	}
	return io.NopCloser(bytes.NewReader(m.data[offset : offset+length])), nil
}

// memServer is a destination all fake connections write into.
type memServer struct {
	mu    sync.Mutex
	files map[string][]byte

	// failures counts down: while positive, StoreAt/Store fail.
	failures int
	failWith error

	dials    int
	attempts int
}

func newMemServer() *memServer {
	return &memServer{files: make(map[string][]byte), failWith: common.ErrDestinationUnreachable}
}

func (s *memServer) file(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.files[path]...)
}

func (s *memServer) writeAt(path string, data []byte, offset int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.files[path]
	need := int(offset) + len(data)
	if len(f) < need {
		grown := make([]byte, need)
		copy(grown, f)
		f = grown
	}
	copy(f[offset:], data)
	s.files[path] = f
}

func (s *memServer) takeFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return s.failWith
	}
	return nil
}

type memConn struct {
	s *memServer
}

func (c *memConn) Store(_ context.Context, path string, r io.Reader) (int64, error) {
	if err := c.s.takeFailure(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	c.s.writeAt(path, data, 0)
	return int64(len(data)), nil
}

func (c *memConn) StoreAt(_ context.Context, path string, r io.Reader, offset int64) (int64, error) {
	if err := c.s.takeFailure(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	c.s.writeAt(path, data, offset)
	return int64(len(data)), nil
}

func (c *memConn) Close() error { return nil }

type memDialer struct {
	s *memServer
}

func (d *memDialer) Dial(context.Context, *models.Destination) (dest.Conn, error) {
	d.s.mu.Lock()
	d.s.dials++
	d.s.mu.Unlock()
	return &memConn{s: d.s}, nil
}

// --- helpers ---

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func randomData(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	rnd := rand.New(rand.NewSource(42))
	_, err := rnd.Read(data)
	require.NoError(t, err)
	return data
}

func testPlan() *models.TransferPlan {
	return &models.TransferPlan{
		Source: models.Source{Bucket: "b", Key: "dir/obj.bin"},
		Destination: models.Destination{
			Protocol:   models.ProtocolSFTP,
			Host:       "files.example.com",
			Username:   "u",
			Password:   "p",
			RemotePath: "/in",
		},
		RequestedBy:       "alice",
		ApprovalReference: "REQ1",
	}
}

func newTestEngine(s *memServer, chunkSize int64, workers int) *Engine {
	return NewEngine(&memDialer{s: s}, Config{
		ChunkSize:    chunkSize,
		Workers:      workers,
		ChunkRetries: 3,
		RetryBackoff: time.Millisecond,
	}, testLogger())
}

// --- tests ---

func TestEngine_Direct_RoundTrip(t *testing.T) {
	data := randomData(t, 1000)
	s := newMemServer()
	e := newTestEngine(s, 256, 1)

	var lastProgress int64
	res, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyDirect, func(n int64) { lastProgress = n })
	require.NoError(t, err)

	assert.Equal(t, int64(1000), res.BytesTransferred)
	assert.Equal(t, int64(1000), lastProgress)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)
	assert.Equal(t, data, s.file("/in/obj.bin"))
}

func TestEngine_Chunked_RoundTrip(t *testing.T) {
	data := randomData(t, 2500)
	s := newMemServer()
	e := newTestEngine(s, 1000, 1)

	var progressCalls []int64
	res, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyChunked, func(n int64) { progressCalls = append(progressCalls, n) })
	require.NoError(t, err)

	assert.Equal(t, int64(2500), res.BytesTransferred)
	assert.Equal(t, data, s.file("/in/obj.bin"))

	// one progress report per acknowledged chunk
	assert.Equal(t, []int64{1000, 2000, 2500}, progressCalls)

	sum := md5.Sum(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)
}

func TestEngine_Chunked_RetriesTransientFailure(t *testing.T) {
	data := randomData(t, 2500)
	s := newMemServer()
	s.failures = 2
	e := newTestEngine(s, 1000, 1)

	res, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyChunked, nil)
	require.NoError(t, err)

	assert.Equal(t, data, s.file("/in/obj.bin"))
	assert.Equal(t, int64(2500), res.BytesTransferred)
}

func TestEngine_Chunked_ExhaustsRetryBudget(t *testing.T) {
	data := randomData(t, 500)
	s := newMemServer()
	s.failures = 100
	e := newTestEngine(s, 1000, 1)

	_, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyChunked, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDestinationUnreachable)

	// 1 initial attempt + 3 retries
	assert.Equal(t, 4, s.attempts)
}

func TestEngine_AuthRejection_NotRetried(t *testing.T) {
	data := randomData(t, 500)
	s := newMemServer()
	s.failures = 100
	s.failWith = common.ErrAuthRejected
	e := newTestEngine(s, 1000, 1)

	_, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyChunked, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAuthRejected)
	assert.Equal(t, 1, s.attempts)
}

func TestEngine_Parallel_RoundTrip(t *testing.T) {
	data := randomData(t, 100_000)
	s := newMemServer()
	e := newTestEngine(s, 1024, 5)

	res, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyParallel, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), res.BytesTransferred)
	assert.Equal(t, data, s.file("/in/obj.bin"))

	// ceil(100000/1024) chunks, one attempt each
	assert.Equal(t, 98, s.attempts)
}

// The combined parallel checksum must equal the direct single-stream
// checksum for the same bytes, independent of worker scheduling.
func TestEngine_Parallel_ChecksumMatchesDirect(t *testing.T) {
	data := randomData(t, 50_000)

	direct := newTestEngine(newMemServer(), 512, 1)
	dres, err := direct.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyDirect, nil)
	require.NoError(t, err)

	parallel := newTestEngine(newMemServer(), 512, 5)
	pres, err := parallel.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyParallel, nil)
	require.NoError(t, err)

	assert.Equal(t, dres.Checksum, pres.Checksum)
}

func TestEngine_Parallel_FailureIsNeverPartialSuccess(t *testing.T) {
	data := randomData(t, 10_000)
	s := newMemServer()
	s.failures = 1000
	e := newTestEngine(s, 1024, 5)

	_, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyParallel, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDestinationUnreachable)
}

func TestEngine_Parallel_ProgressIsMonotonic(t *testing.T) {
	data := randomData(t, 20_000)
	s := newMemServer()
	e := newTestEngine(s, 1024, 5)

	var mu sync.Mutex
	var reports []int64
	_, err := e.Transfer(context.Background(), &memReader{data: data}, testPlan(),
		int64(len(data)), models.StrategyParallel, func(n int64) {
			mu.Lock()
			reports = append(reports, n)
			mu.Unlock()
		})
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
	assert.Equal(t, int64(20_000), reports[len(reports)-1])
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e := newTestEngine(newMemServer(), 1024, 1)
	_, err := e.Transfer(context.Background(), &memReader{data: []byte("x")}, testPlan(),
		1, models.Strategy("zigzag"), nil)
	assert.Error(t, err)
}

func TestProgressReader_ReportsAtIntervals(t *testing.T) {
	data := randomData(t, 1000)

	var reports []int64
	pr := &progressReader{
		r:        bytes.NewReader(data),
		interval: 300,
		progress: func(n int64) { reports = append(reports, n) },
	}

	_, err := io.Copy(io.Discard, pr)
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for _, r := range reports {
		assert.GreaterOrEqual(t, r, int64(300))
	}
}
