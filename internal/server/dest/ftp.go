package dest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

// ftpConn wraps one FTP or FTPS control connection. Offset writes map to
// REST+STOR via StorFrom; servers without REST support reject them.
type ftpConn struct {
	c *ftp.ServerConn
}

func dialFTP(ctx context.Context, d *models.Destination, timeout time.Duration, useTLS bool) (Conn, error) {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(timeout),
	}
	if useTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(&tls.Config{ServerName: d.Host}))
	}

	c, err := ftp.Dial(d.Addr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrDestinationUnreachable, d.Addr(), err)
	}

	if err := c.Login(d.Username, d.Password); err != nil {
		_ = c.Quit()
		if isFTPAuthError(err) {
			return nil, fmt.Errorf("%w: %s@%s: %w", common.ErrAuthRejected, d.Username, d.Host, err)
		}
		return nil, fmt.Errorf("%w: login %s: %w", common.ErrDestinationUnreachable, d.Addr(), err)
	}

	return &ftpConn{c: c}, nil
}

// isFTPAuthError recognizes permanent authentication rejections (5xx reply
// to USER/PASS), which must never be retried.
func isFTPAuthError(err error) bool {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code == ftp.StatusNotLoggedIn || protoErr.Code == ftp.StatusLoginNeedAccount
	}
	return false
}

func (fc *ftpConn) Store(ctx context.Context, path string, r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	if err := fc.c.Stor(path, cr); err != nil {
		return cr.n, fmt.Errorf("%w: stor %s: %w", common.ErrDestinationUnreachable, path, err)
	}
	return cr.n, nil
}

func (fc *ftpConn) StoreAt(ctx context.Context, path string, r io.Reader, offset int64) (int64, error) {
	cr := &countingReader{r: r}
	if err := fc.c.StorFrom(path, cr, uint64(offset)); err != nil {
		return cr.n, fmt.Errorf("%w: stor %s at %d: %w", common.ErrDestinationUnreachable, path, offset, err)
	}
	return cr.n, nil
}

func (fc *ftpConn) Close() error {
	return fc.c.Quit()
}
