package transport

import (
	"context"
	"errors"
	"pushsync/internal/model"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	connected   bool
	connectErr  error
	connects    int
	disconnects int
	uploads     []string
	uploadErr   error
	panicOn     string
}

func (d *fakeDriver) connect(context.Context) error {
	d.connects++
	if d.connectErr != nil {
		return d.connectErr
	}
	d.connected = true
	return nil
}

func (d *fakeDriver) disconnect() error {
	d.disconnects++
	d.connected = false
	return nil
}

func (d *fakeDriver) isConnected() bool {
	return d.connected
}

func (d *fakeDriver) upload(_ context.Context, src, dst string) (model.Messages, error) {
	if d.panicOn == src {
		panic("boom")
	}
	d.uploads = append(d.uploads, src+"->"+dst)
	if d.uploadErr != nil {
		return model.Info("partial"), d.uploadErr
	}
	return model.Info("ok"), nil
}

var testTarget = model.Target{
	Method:   model.MethodFTP,
	Host:     "example.com",
	Port:     21,
	Username: "deploy",
}

func TestUploadReconnectsOnce(t *testing.T) {
	drv := &fakeDriver{}
	c := newConnection(testTarget, drv)

	ml := c.Upload(context.Background(), "/src/a", "/dst/a")

	assert.True(t, ml.IsSuccess())
	assert.Equal(t, 1, drv.disconnects)
	assert.Equal(t, 1, drv.connects)
	assert.Equal(t, []string{"/src/a->/dst/a"}, drv.uploads)
	assert.True(t, c.IsConnected())
}

func TestUploadSkipsReconnectWhenConnected(t *testing.T) {
	drv := &fakeDriver{connected: true}
	c := newConnection(testTarget, drv)

	ml := c.Upload(context.Background(), "/src/a", "/dst/a")

	assert.True(t, ml.IsSuccess())
	assert.Zero(t, drv.connects)
	assert.Zero(t, drv.disconnects)
}

func TestUploadConnectionFailure(t *testing.T) {
	drv := &fakeDriver{connectErr: errors.New("refused")}
	c := newConnection(testTarget, drv)

	ml := c.Upload(context.Background(), "/src/a", "/dst/a")

	require.Len(t, ml, 1)
	assert.False(t, ml.IsSuccess())
	assert.Contains(t, ml[0].Text, testTarget.Name())
	assert.Contains(t, ml[0].Text, "/src/a")
	assert.Contains(t, ml[0].Text, "refused")
	assert.Equal(t, 1, drv.connects)
	assert.Empty(t, drv.uploads)
	assert.False(t, c.IsConnected())
}

func TestUploadErrorKeepsDriverMessages(t *testing.T) {
	drv := &fakeDriver{connected: true, uploadErr: errors.New("disk full")}
	c := newConnection(testTarget, drv)

	ml := c.Upload(context.Background(), "/src/a", "/dst/a")

	require.Len(t, ml, 2)
	assert.Equal(t, model.SeverityInfo, ml[0].Severity)
	assert.Equal(t, model.SeverityError, ml[1].Severity)
	assert.Contains(t, ml[1].Text, "/dst/a")
	assert.Contains(t, ml[1].Text, "disk full")
}

func TestUploadRecoversPanic(t *testing.T) {
	drv := &fakeDriver{connected: true, panicOn: "/src/bad"}
	c := newConnection(testTarget, drv)

	var ml model.Messages
	assert.NotPanics(t, func() {
		ml = c.Upload(context.Background(), "/src/bad", "/dst/bad")
	})

	require.Len(t, ml, 1)
	assert.Equal(t, model.SeverityError, ml[0].Severity)
	assert.Contains(t, ml[0].Text, "boom")

	// The mutex must have been released.
	ml = c.Upload(context.Background(), "/src/good", "/dst/good")
	assert.True(t, ml.IsSuccess())
}

func TestConnectAndDisconnect(t *testing.T) {
	drv := &fakeDriver{}
	c := newConnection(testTarget, drv)
	assert.False(t, c.IsConnected())

	ml := c.Connect(context.Background())
	assert.True(t, ml.IsSuccess())
	assert.True(t, c.IsConnected())

	ml = c.Disconnect()
	assert.True(t, ml.IsSuccess())
	assert.False(t, c.IsConnected())
}

func TestNew(t *testing.T) {
	for _, m := range []model.Method{model.MethodCopy, model.MethodFTP, model.MethodSCP} {
		c, err := New(model.Target{Method: m, TargetPath: "/srv"})
		require.NoError(t, err)
		assert.NotNil(t, c.drv)
	}

	_, err := New(model.Target{Method: "rsync"})
	assert.Error(t, err)
}

type slowDriver struct {
	running atomic.Int32
	overlap atomic.Bool
}

func (d *slowDriver) connect(context.Context) error { return nil }
func (d *slowDriver) disconnect() error { return nil }
func (d *slowDriver) isConnected() bool { return true }

func (d *slowDriver) upload(context.Context, string, string) (model.Messages, error) {
	if d.running.Add(1) > 1 {
		d.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	d.running.Add(-1)
	return nil, nil
}

func TestUploadsAreSerialized(t *testing.T) {
	drv := &slowDriver{}
	c := newConnection(testTarget, drv)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			c.Upload(context.Background(), "/src/a", "/dst/a")
		})
	}
	wg.Wait()

	assert.False(t, drv.overlap.Load())
}
