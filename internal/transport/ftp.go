package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"pushsync/internal/model"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jlaffaye/ftp"
	"github.com/spf13/afero"
)

const ftpTimeout = 30 * time.Second

// ftpConn is the subset of *ftp.ServerConn used for uploads.
type ftpConn interface {
	Login(user, password string) error
	Stor(path string, r io.Reader) error
	FileSize(path string) (int64, error)
	MakeDir(path string) error
	NoOp() error
	Quit() error
}

type ftpDriver struct {
	target model.Target
	fs     afero.Fs
	dial   func(ctx context.Context, addr string) (ftpConn, error)
	conn   ftpConn
}

func newFTPDriver(target model.Target, fs afero.Fs) *ftpDriver {
	return &ftpDriver{
		target: target,
		fs:     fs,
		dial:   dialFTP,
	}
}

func dialFTP(ctx context.Context, addr string) (ftpConn, error) {
	c, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(ftpTimeout))
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (d *ftpDriver) connect(ctx context.Context) error {
	conn, err := d.dial(ctx, d.target.Addr())
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", d.target.Addr(), err)
	}

	if err := conn.Login(d.target.Username, d.target.Password); err != nil {
		_ = conn.Quit()
		return fmt.Errorf("failed to login as %s: %w", d.target.Username, err)
	}

	d.conn = conn
	return nil
}

func (d *ftpDriver) disconnect() error {
	if d.conn == nil {
		return nil
	}

	err := d.conn.Quit()
	d.conn = nil
	return err
}

func (d *ftpDriver) isConnected() bool {
	return d.conn != nil && d.conn.NoOp() == nil
}

// upload overwrites dst, creating missing remote directories, and verifies
// the stored size. A size mismatch gets one more transfer.
func (d *ftpDriver) upload(_ context.Context, src, dst string) (model.Messages, error) {
	info, err := d.fs.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to stat src: %w", err)
	}

	var ml model.Messages

	err = d.store(src, dst)
	if err != nil && isFileUnavailable(err) {
		dir := path.Dir(dst)
		d.makeDirs(dir)
		ml = append(ml, model.Info("created remote directory %s:%s", d.target.Name(), dir)...)
		err = d.store(src, dst)
	}
	if err != nil {
		return ml, err
	}

	size, err := d.conn.FileSize(dst)
	if err != nil {
		ml = append(ml, model.Warning("could not verify %s:%s: %v", d.target.Name(), dst, err)...)
	} else if size != info.Size() {
		if err := d.store(src, dst); err != nil {
			return ml, err
		}

		size, err = d.conn.FileSize(dst)
		if err != nil || size != info.Size() {
			return ml, fmt.Errorf("verification failed: remote size %d, local size %d", size, info.Size())
		}
	}

	return append(ml, model.Info("%s uploaded to %s:%s (%s)",
		src, d.target.Name(), dst, humanize.Bytes(uint64(info.Size())))...), nil
}

func (d *ftpDriver) store(src, dst string) error {
	f, err := d.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open src: %w", err)
	}

	defer func(f afero.File) {
		_ = f.Close()
	}(f)

	return d.conn.Stor(dst, f)
}

// makeDirs creates every component of dir. Errors are ignored since most of
// them mean the directory already exists; the retried STOR reports the rest.
func (d *ftpDriver) makeDirs(dir string) {
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}

	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)
		_ = d.conn.MakeDir(current)
	}
}

func isFileUnavailable(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable
}
