package transport

import (
	"context"
	"fmt"
	"path/filepath"
	"pushsync/internal/model"
	"pushsync/internal/util"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

type localDriver struct {
	fs afero.Fs
}

func newLocalDriver(fs afero.Fs) *localDriver {
	return &localDriver{fs: fs}
}

func (d *localDriver) connect(_ context.Context) error {
	return nil
}

func (d *localDriver) disconnect() error {
	return nil
}

func (d *localDriver) isConnected() bool {
	return true
}

func (d *localDriver) upload(_ context.Context, src, dst string) (model.Messages, error) {
	dir := filepath.Dir(dst)
	if dir == "." || dir == "" {
		return nil, fmt.Errorf("directory must be specified for destination %q", dst)
	}

	if err := d.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := util.MakeWritable(d.fs, dst); err != nil {
		return nil, err
	}

	f, err := d.fs.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open src: %w", err)
	}

	defer func(f afero.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat src: %w", err)
	}

	if err := util.AtomicWrite(d.fs, dst, f, info.Mode().Perm()); err != nil {
		return nil, err
	}

	return model.Info("%s copied to %s (%s)", src, dst, humanize.Bytes(uint64(info.Size()))), nil
}
