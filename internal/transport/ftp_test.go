package transport

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"pushsync/internal/model"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFTP struct {
	files    map[string][]byte
	dirs     map[string]bool
	needDirs bool
	// truncate is the number of STORs that store only part of the data.
	truncate int
	sizeErr  error
	loginErr error
	made     []string
	stors    int
	quit     bool
}

func newFakeFTP() *fakeFTP {
	return &fakeFTP{files: map[string][]byte{}, dirs: map[string]bool{}}
}

func (f *fakeFTP) Login(string, string) error {
	return f.loginErr
}

func (f *fakeFTP) Stor(p string, r io.Reader) error {
	f.stors++
	if f.needDirs && !f.dirs[dirOf(p)] {
		return &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "No such file or directory"}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if f.truncate > 0 {
		f.truncate--
		data = data[:len(data)/2]
	}
	f.files[p] = data
	return nil
}

func (f *fakeFTP) FileSize(p string) (int64, error) {
	if f.sizeErr != nil {
		return 0, f.sizeErr
	}
	data, ok := f.files[p]
	if !ok {
		return 0, errors.New("not found")
	}
	return int64(len(data)), nil
}

func (f *fakeFTP) MakeDir(p string) error {
	f.made = append(f.made, p)
	f.dirs[p] = true
	return nil
}

func (f *fakeFTP) NoOp() error {
	if f.quit {
		return errors.New("closed")
	}
	return nil
}

func (f *fakeFTP) Quit() error {
	f.quit = true
	return nil
}

func dirOf(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

func newTestFTPDriver(t *testing.T, conn *fakeFTP) *ftpDriver {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/index.html", []byte("<html></html>"), 0644))

	d := newFTPDriver(model.Target{Method: model.MethodFTP, Host: "h", Port: 21}, fs)
	d.dial = func(context.Context, string) (ftpConn, error) {
		return conn, nil
	}
	require.NoError(t, d.connect(context.Background()))
	return d
}

func TestFTPUpload(t *testing.T) {
	conn := newFakeFTP()
	d := newTestFTPDriver(t, conn)

	ml, err := d.upload(context.Background(), "/src/index.html", "/www/index.html")
	require.NoError(t, err)
	assert.True(t, ml.IsSuccess())
	assert.Equal(t, "<html></html>", string(conn.files["/www/index.html"]))
	assert.Equal(t, 1, conn.stors)
}

func TestFTPUploadCreatesDirectories(t *testing.T) {
	conn := newFakeFTP()
	conn.needDirs = true
	d := newTestFTPDriver(t, conn)

	ml, err := d.upload(context.Background(), "/src/index.html", "/www/site/index.html")
	require.NoError(t, err)
	assert.True(t, ml.IsSuccess())
	assert.Equal(t, []string{"/www", "/www/site"}, conn.made)
	assert.Equal(t, 2, conn.stors)
}

func TestFTPUploadReuploadsOnSizeMismatch(t *testing.T) {
	conn := newFakeFTP()
	conn.truncate = 1
	d := newTestFTPDriver(t, conn)

	_, err := d.upload(context.Background(), "/src/index.html", "/www/index.html")
	require.NoError(t, err)
	assert.Equal(t, 2, conn.stors)
	assert.Equal(t, "<html></html>", string(conn.files["/www/index.html"]))
}

func TestFTPUploadFailsOnRepeatedMismatch(t *testing.T) {
	conn := newFakeFTP()
	conn.truncate = 2
	d := newTestFTPDriver(t, conn)

	_, err := d.upload(context.Background(), "/src/index.html", "/www/index.html")
	assert.Error(t, err)
	assert.Equal(t, 2, conn.stors)
}

func TestFTPUploadWarnsWhenSizeUnavailable(t *testing.T) {
	conn := newFakeFTP()
	conn.sizeErr = errors.New("SIZE not supported")
	d := newTestFTPDriver(t, conn)

	ml, err := d.upload(context.Background(), "/src/index.html", "/www/index.html")
	require.NoError(t, err)
	assert.True(t, ml.IsSuccess())
	require.NotEmpty(t, ml)
	assert.Equal(t, model.SeverityWarning, ml[0].Severity)
}

func TestFTPConnectLoginFailure(t *testing.T) {
	conn := newFakeFTP()
	conn.loginErr = errors.New("530 Login incorrect")

	d := newFTPDriver(model.Target{Method: model.MethodFTP, Host: "h", Port: 21}, afero.NewMemMapFs())
	d.dial = func(context.Context, string) (ftpConn, error) {
		return conn, nil
	}

	err := d.connect(context.Background())
	assert.Error(t, err)
	assert.True(t, conn.quit)
	assert.False(t, d.isConnected())
}

func TestFTPDisconnect(t *testing.T) {
	conn := newFakeFTP()
	d := newTestFTPDriver(t, conn)
	assert.True(t, d.isConnected())

	require.NoError(t, d.disconnect())
	assert.False(t, d.isConnected())
	assert.True(t, conn.quit)
}
