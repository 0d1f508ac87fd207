package dest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/dmitrijs2005/fileferry/internal/common"
	"github.com/dmitrijs2005/fileferry/internal/server/models"
)

type sftpConn struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func dialSFTP(d *models.Destination, timeout time.Duration) (Conn, error) {
	cfg := &ssh.ClientConfig{
		User:            d.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(d.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: known_hosts pinning once endpoints provide fingerprints
		Timeout:         timeout,
	}

	conn, err := ssh.Dial("tcp", d.Addr(), cfg)
	if err != nil {
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("%w: %s@%s: %w", common.ErrAuthRejected, d.Username, d.Host, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrDestinationUnreachable, d.Addr(), err)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: sftp subsystem: %w", common.ErrDestinationUnreachable, err)
	}

	return &sftpConn{ssh: conn, client: client}, nil
}

func (sc *sftpConn) Store(ctx context.Context, remotePath string, r io.Reader) (int64, error) {
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := sc.client.MkdirAll(dir); err != nil {
			return 0, fmt.Errorf("%w: mkdir %s: %w", common.ErrDestinationUnreachable, dir, err)
		}
	}

	f, err := sc.client.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", common.ErrDestinationUnreachable, remotePath, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("%w: write %s: %w", common.ErrDestinationUnreachable, remotePath, err)
	}
	return n, nil
}

func (sc *sftpConn) StoreAt(ctx context.Context, remotePath string, r io.Reader, offset int64) (int64, error) {
	f, err := sc.client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", common.ErrDestinationUnreachable, remotePath, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: seek %s to %d: %w", common.ErrDestinationUnreachable, remotePath, offset, err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("%w: write %s at %d: %w", common.ErrDestinationUnreachable, remotePath, offset, err)
	}
	return n, nil
}

func (sc *sftpConn) Close() error {
	cerr := sc.client.Close()
	serr := sc.ssh.Close()
	if cerr != nil {
		return cerr
	}
	return serr
}
