package transport

import (
	"context"
	"errors"
	"fmt"
	"path"
	"pushsync/internal/model"
	"strings"

	"github.com/spf13/afero"
)

type fileCopier interface {
	CopyFile(ctx context.Context, src, dst string) error
	Alive() bool
	Close() error
}

type commandRunner interface {
	Run(cmd string) (output string, status int, err error)
	Alive() bool
	Close() error
}

const pathPlaceholder = "{path}"

// localFileError marks a failure reading the source file. Only errors from
// the remote side are remediated.
type localFileError struct {
	err error
}

func (e *localFileError) Error() string {
	return e.err.Error()
}

func (e *localFileError) Unwrap() error {
	return e.err
}

type remedy int

const (
	remedyNone remedy = iota
	remedyMkdir
	remedyTouch
)

type scpDriver struct {
	target model.Target
	fs     afero.Fs

	openCopier func(ctx context.Context, target model.Target) (fileCopier, error)
	openRunner func(ctx context.Context, target model.Target) (commandRunner, error)

	copier fileCopier
	runner commandRunner
}

func newSCPDriver(target model.Target, fs afero.Fs) *scpDriver {
	return &scpDriver{
		target:     target,
		fs:         fs,
		openCopier: openSCPCopier,
		openRunner: openSSHRunner,
	}
}

func (d *scpDriver) connect(ctx context.Context) error {
	c, err := d.openCopier(ctx, d.target)
	if err != nil {
		return err
	}

	d.copier = c
	return nil
}

func (d *scpDriver) disconnect() error {
	var errs []error

	if d.copier != nil {
		errs = append(errs, d.copier.Close())
		d.copier = nil
	}
	if d.runner != nil {
		errs = append(errs, d.runner.Close())
		d.runner = nil
	}

	return errors.Join(errs...)
}

func (d *scpDriver) isConnected() bool {
	return d.copier != nil && d.copier.Alive()
}

// upload pushes src and applies at most one remediation followed by a
// single re-upload.
func (d *scpDriver) upload(ctx context.Context, src, dst string) (model.Messages, error) {
	if _, err := d.fs.Stat(src); err != nil {
		return nil, &localFileError{err: fmt.Errorf("failed to stat src: %w", err)}
	}

	var ml model.Messages

	err := d.copy(ctx, src, dst)
	if err != nil {
		r := classify(err)
		if r == remedyNone {
			return ml, err
		}

		msgs, rerr := d.remediate(ctx, r, dst)
		ml = append(ml, msgs...)
		if rerr != nil {
			return ml, fmt.Errorf("%w (remediation failed: %v)", err, rerr)
		}

		if err := d.copy(ctx, src, dst); err != nil {
			return ml, err
		}
	}

	ml = append(ml, model.Info("%s uploaded to %s:%s", src, d.target.Name(), dst)...)

	if len(d.target.Commands) > 0 {
		msgs, err := d.runCommands(ctx, dst)
		ml = append(ml, msgs...)
		if err != nil {
			return ml, err
		}
	}

	return ml, nil
}

func (d *scpDriver) copy(ctx context.Context, src, dst string) error {
	err := d.copier.CopyFile(ctx, src, dst)
	if err != nil && isSetTimesQuirk(err) {
		return nil
	}

	return err
}

func classify(err error) remedy {
	var local *localFileError
	if errors.As(err, &local) {
		return remedyNone
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "no such file or directory"):
		return remedyMkdir
	case strings.Contains(text, "permission denied"):
		return remedyTouch
	default:
		return remedyNone
	}
}

// isSetTimesQuirk reports the error some servers raise after the data has
// already been written when they refuse to update the modification time.
func isSetTimesQuirk(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "set times: operation not permitted")
}

func (d *scpDriver) remediate(ctx context.Context, r remedy, dst string) (model.Messages, error) {
	var cmds []string
	switch r {
	case remedyMkdir:
		cmds = []string{d.sudo("mkdir -p " + shellQuote(path.Dir(dst)))}
	case remedyTouch:
		cmds = []string{
			d.sudo("touch " + shellQuote(dst)),
			d.sudo("chmod a+rw " + shellQuote(dst)),
		}
	}

	var ml model.Messages
	for _, cmd := range cmds {
		out, status, err := d.exec(ctx, cmd)
		if err != nil {
			return ml, err
		}
		if status != 0 {
			return ml, fmt.Errorf("command %q on %s exited with status %d: %s", cmd, d.target.Name(), status, out)
		}
		ml = append(ml, executed(cmd, d.target.Name(), out)...)
	}

	return ml, nil
}

// runCommands executes every configured command whose pattern matches dst,
// exactly as written apart from the path substitution. A non-zero exit
// status is reported as a warning; only a broken session fails the upload.
func (d *scpDriver) runCommands(ctx context.Context, dst string) (model.Messages, error) {
	var ml model.Messages

	for _, c := range d.target.Commands {
		if c.MatchingFile != nil && !c.MatchingFile.MatchString(dst) {
			continue
		}

		cmd := strings.ReplaceAll(c.Cmd, pathPlaceholder, dst)
		out, status, err := d.exec(ctx, cmd)
		if err != nil {
			return ml, err
		}

		if status != 0 {
			ml = append(ml, model.Warning("%q on %s exited with status %d", cmd, d.target.Name(), status)...)
			if out != "" {
				ml = append(ml, model.Warning("%s", out)...)
			}
			continue
		}
		ml = append(ml, executed(cmd, d.target.Name(), out)...)
	}

	return ml, nil
}

func (d *scpDriver) exec(ctx context.Context, cmd string) (string, int, error) {
	runner, err := d.commandRunner(ctx)
	if err != nil {
		return "", 0, err
	}

	out, status, err := runner.Run(cmd)
	if err != nil {
		return "", 0, fmt.Errorf("command %q on %s failed: %w", cmd, d.target.Name(), err)
	}

	return out, status, nil
}

func executed(cmd, target, out string) model.Messages {
	ml := model.Info("executed %q on %s", cmd, target)
	if out != "" {
		ml = append(ml, model.Info("%s", out)...)
	}

	return ml
}

// commandRunner opens the command session on first use and reopens it when
// the server has dropped it.
func (d *scpDriver) commandRunner(ctx context.Context) (commandRunner, error) {
	if d.runner != nil && d.runner.Alive() {
		return d.runner, nil
	}

	if d.runner != nil {
		_ = d.runner.Close()
		d.runner = nil
	}

	r, err := d.openRunner(ctx, d.target)
	if err != nil {
		return nil, fmt.Errorf("failed to open command session: %w", err)
	}

	d.runner = r
	return r, nil
}

func (d *scpDriver) sudo(cmd string) string {
	if d.target.UseSudoInCmds {
		return "sudo " + cmd
	}
	return cmd
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
