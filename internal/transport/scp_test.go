package transport

import (
	"context"
	"errors"
	"pushsync/internal/model"
	"regexp"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCopier struct {
	errs   []error
	copies int
	closed bool
}

func (c *fakeCopier) CopyFile(context.Context, string, string) error {
	c.copies++
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func (c *fakeCopier) Alive() bool {
	return !c.closed
}

func (c *fakeCopier) Close() error {
	c.closed = true
	return nil
}

type fakeRunner struct {
	cmds   []string
	status int
	closed bool
}

func (r *fakeRunner) Run(cmd string) (string, int, error) {
	r.cmds = append(r.cmds, cmd)
	return "", r.status, nil
}

func (r *fakeRunner) Alive() bool {
	return !r.closed
}

func (r *fakeRunner) Close() error {
	r.closed = true
	return nil
}

func newTestSCPDriver(t *testing.T, target model.Target, copier *fakeCopier, runner *fakeRunner) (*scpDriver, *int) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{"/src/a.php", "/src/b.php", "/src/a"} {
		require.NoError(t, afero.WriteFile(fs, name, []byte("<?php"), 0o644))
	}

	opened := 0
	d := newSCPDriver(target, fs)
	d.openCopier = func(context.Context, model.Target) (fileCopier, error) {
		return copier, nil
	}
	d.openRunner = func(context.Context, model.Target) (commandRunner, error) {
		opened++
		return runner, nil
	}
	require.NoError(t, d.connect(context.Background()))
	return d, &opened
}

func TestSCPUpload(t *testing.T) {
	copier, runner := &fakeCopier{}, &fakeRunner{}
	d, opened := newTestSCPDriver(t, model.Target{Method: model.MethodSCP}, copier, runner)

	ml, err := d.upload(context.Background(), "/src/a.php", "/var/www/a.php")
	require.NoError(t, err)
	assert.True(t, ml.IsSuccess())
	assert.Equal(t, 1, copier.copies)
	assert.Zero(t, *opened)
}

func TestSCPRemediation(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		sudo      bool
		errs      []error
		expErr    bool
		expCopies int
		expCmds   []string
	}{
		{
			name:      "missing directory",
			errs:      []error{errors.New("scp: /var/www/new/a.php: No such file or directory")},
			expCopies: 2,
			expCmds:   []string{"mkdir -p '/var/www/new'"},
		},
		{
			name:      "missing directory with sudo",
			sudo:      true,
			errs:      []error{errors.New("No such file or directory")},
			expCopies: 2,
			expCmds:   []string{"sudo mkdir -p '/var/www/new'"},
		},
		{
			name:      "permission denied",
			errs:      []error{errors.New("scp: /var/www/new/a.php: Permission denied")},
			expCopies: 2,
			expCmds: []string{
				"touch '/var/www/new/a.php'",
				"chmod a+rw '/var/www/new/a.php'",
			},
		},
		{
			name: "missing directory then permission denied",
			errs: []error{
				errors.New("No such file or directory"),
				errors.New("Permission denied"),
			},
			expErr:    true,
			expCopies: 2,
			expCmds:   []string{"mkdir -p '/var/www/new'"},
		},
		{
			name: "remediation applied only once",
			errs: []error{
				errors.New("No such file or directory"),
				errors.New("No such file or directory"),
			},
			expErr:    true,
			expCopies: 2,
			expCmds:   []string{"mkdir -p '/var/www/new'"},
		},
		{
			name:      "other errors are not remediated",
			errs:      []error{errors.New("connection reset by peer")},
			expErr:    true,
			expCopies: 1,
		},
		{
			name:      "missing local source is not remediated",
			src:       "/src/gone.php",
			expErr:    true,
			expCopies: 0,
		},
		{
			name:      "local open failure is not remediated",
			errs:      []error{&localFileError{err: errors.New("failed to open src: open /src/a.php: no such file or directory")}},
			expErr:    true,
			expCopies: 1,
		},
		{
			name:      "set times quirk is success",
			errs:      []error{errors.New("scp: /var/www/new/a.php: set times: Operation not permitted")},
			expCopies: 1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			copier, runner := &fakeCopier{errs: test.errs}, &fakeRunner{}
			target := model.Target{Method: model.MethodSCP, UseSudoInCmds: test.sudo}
			d, _ := newTestSCPDriver(t, target, copier, runner)

			src := test.src
			if src == "" {
				src = "/src/a.php"
			}

			_, err := d.upload(context.Background(), src, "/var/www/new/a.php")
			if test.expErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, test.expCopies, copier.copies)
			assert.Equal(t, test.expCmds, runner.cmds)
		})
	}
}

func TestSCPCommands(t *testing.T) {
	target := model.Target{
		Method: model.MethodSCP,
		Commands: []model.Command{
			{Cmd: "php -l {path}", MatchingFile: regexp.MustCompile(`\.php$`)},
			{Cmd: "gzip -k {path}", MatchingFile: regexp.MustCompile(`\.css$`)},
			{Cmd: "echo done"},
		},
	}
	copier, runner := &fakeCopier{}, &fakeRunner{}
	d, opened := newTestSCPDriver(t, target, copier, runner)

	_, err := d.upload(context.Background(), "/src/a.php", "/var/www/a.php")
	require.NoError(t, err)
	_, err = d.upload(context.Background(), "/src/b.php", "/var/www/b.php")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"php -l /var/www/a.php", "echo done",
		"php -l /var/www/b.php", "echo done",
	}, runner.cmds)
	assert.Equal(t, 1, *opened, "command session is reused")
}

func TestSCPCommandsIgnoreSudo(t *testing.T) {
	target := model.Target{
		Method:        model.MethodSCP,
		UseSudoInCmds: true,
		Commands:      []model.Command{{Cmd: "php -l {path}"}},
	}
	copier, runner := &fakeCopier{}, &fakeRunner{}
	d, _ := newTestSCPDriver(t, target, copier, runner)

	_, err := d.upload(context.Background(), "/src/a.php", "/var/www/a.php")
	require.NoError(t, err)
	assert.Equal(t, []string{"php -l /var/www/a.php"}, runner.cmds)
}

func TestSCPCommandFailure(t *testing.T) {
	target := model.Target{
		Method:   model.MethodSCP,
		Commands: []model.Command{{Cmd: "false"}},
	}
	copier, runner := &fakeCopier{}, &fakeRunner{status: 1}
	d, _ := newTestSCPDriver(t, target, copier, runner)

	ml, err := d.upload(context.Background(), "/src/a", "/var/www/a")
	require.NoError(t, err)
	assert.True(t, ml.IsSuccess())
	assert.Contains(t, ml.String(), `WARNING: "false" on scp://@:0 exited with status 1`)
}

func TestSCPRemediationFailure(t *testing.T) {
	copier := &fakeCopier{errs: []error{errors.New("No such file or directory")}}
	runner := &fakeRunner{status: 1}
	d, _ := newTestSCPDriver(t, model.Target{Method: model.MethodSCP}, copier, runner)

	_, err := d.upload(context.Background(), "/src/a.php", "/var/www/new/a.php")
	assert.Error(t, err)
	assert.Equal(t, 1, copier.copies)
}

func TestSCPDisconnect(t *testing.T) {
	target := model.Target{
		Method:   model.MethodSCP,
		Commands: []model.Command{{Cmd: "true"}},
	}
	copier, runner := &fakeCopier{}, &fakeRunner{}
	d, _ := newTestSCPDriver(t, target, copier, runner)

	_, err := d.upload(context.Background(), "/src/a", "/var/www/a")
	require.NoError(t, err)
	assert.True(t, d.isConnected())

	require.NoError(t, d.disconnect())
	assert.False(t, d.isConnected())
	assert.True(t, copier.closed)
	assert.True(t, runner.closed)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/var/www/it'\''s'`, shellQuote("/var/www/it's"))
}
