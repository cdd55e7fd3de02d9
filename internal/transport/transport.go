package transport

import (
	"context"
	"fmt"
	"pushsync/internal/logger"
	"pushsync/internal/model"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Transport moves files to one target. Implementations never return errors:
// every failure is reported as an Error message.
type Transport interface {
	Name() string
	Connect(ctx context.Context) model.Messages
	Disconnect() model.Messages
	IsConnected() bool
	Upload(ctx context.Context, src, dst string) model.Messages
}

// driver is the protocol specific part of a Connection.
type driver interface {
	connect(ctx context.Context) error
	disconnect() error
	isConnected() bool
	upload(ctx context.Context, src, dst string) (model.Messages, error)
}

// Connection serializes all work for one target and applies the policy
// shared by every protocol: reconnect once before an upload when the link
// is down, and turn errors and panics into messages.
type Connection struct {
	target    model.Target
	drv       driver
	mu        sync.Mutex
	connected atomic.Bool
}

func New(target model.Target) (*Connection, error) {
	var drv driver

	switch target.Method {
	case model.MethodCopy:
		drv = newLocalDriver(afero.NewOsFs())
	case model.MethodFTP:
		drv = newFTPDriver(target, afero.NewOsFs())
	case model.MethodSCP:
		drv = newSCPDriver(target, afero.NewOsFs())
	default:
		return nil, fmt.Errorf("unknown method %q", target.Method)
	}

	return newConnection(target, drv), nil
}

func newConnection(target model.Target, drv driver) *Connection {
	c := &Connection{target: target, drv: drv}
	c.connected.Store(drv.isConnected())
	return c
}

func (c *Connection) Name() string {
	return c.target.Name()
}

func (c *Connection) Target() model.Target {
	return c.target
}

func (c *Connection) Connect(ctx context.Context) (ml model.Messages) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recover(&ml, "Connection to %s failed", c.Name())

	return c.connect(ctx)
}

func (c *Connection) Disconnect() (ml model.Messages) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recover(&ml, "Error disconnecting from %s", c.Name())

	return c.disconnect()
}

// IsConnected reports the link state observed by the last operation. It does
// not wait for an upload in progress.
func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

func (c *Connection) Upload(ctx context.Context, src, dst string) (ml model.Messages) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.recover(&ml, "Error uploading %s to %s:%s", src, c.Name(), dst)

	if !c.drv.isConnected() {
		logger.Log.Info("reconnecting",
			zap.String("target", c.Name()))

		c.disconnect()

		if err := c.dial(ctx); err != nil {
			return model.Error(err, "Connection to %s failed, %s not uploaded", c.Name(), src)
		}
	}

	msgs, err := c.drv.upload(ctx, src, dst)
	c.connected.Store(c.drv.isConnected())
	if err != nil {
		return append(msgs, model.Error(err, "Error uploading %s to %s:%s", src, c.Name(), dst)...)
	}

	return msgs
}

func (c *Connection) connect(ctx context.Context) model.Messages {
	if err := c.dial(ctx); err != nil {
		return model.Error(err, "Connection to %s failed", c.Name())
	}

	return model.Info("Connected to %s", c.Name())
}

func (c *Connection) dial(ctx context.Context) error {
	err := c.drv.connect(ctx)
	c.connected.Store(err == nil && c.drv.isConnected())
	return err
}

func (c *Connection) disconnect() model.Messages {
	err := c.drv.disconnect()
	c.connected.Store(false)
	if err != nil {
		return model.Error(err, "Error disconnecting from %s", c.Name())
	}

	return model.Info("Disconnected from %s", c.Name())
}

func (c *Connection) recover(ml *model.Messages, format string, args ...any) {
	if r := recover(); r != nil {
		logger.Log.Error("transport panic",
			zap.String("target", c.Name()),
			zap.Any("panic", r))
		*ml = append(*ml, model.Error(fmt.Errorf("%v", r), format, args...)...)
	}
}
