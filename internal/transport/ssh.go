package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"pushsync/internal/logger"
	"pushsync/internal/model"
	"strings"
	"time"

	scp "github.com/bramvdbogaerde/go-scp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const sshTimeout = 30 * time.Second

func sshClientConfig(target model.Target) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if target.KeyFile != "" {
		key, err := os.ReadFile(target.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(target.Password))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse key file: %w", err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if target.Password != "" {
		auth = append(auth, ssh.Password(target.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if target.KnownHostsFile != "" {
		cb, err := knownhosts.New(target.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKey = cb
	} else {
		logger.Log.Warn("host key verification disabled",
			zap.String("target", target.Name()))
	}

	return &ssh.ClientConfig{
		User:            target.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         sshTimeout,
	}, nil
}

func dialSSH(ctx context.Context, target model.Target) (*ssh.Client, error) {
	cfg, err := sshClientConfig(target)
	if err != nil {
		return nil, err
	}

	d := net.Dialer{Timeout: sshTimeout}
	conn, err := d.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target.Addr(), err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, target.Addr(), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", target.Addr(), err)
	}

	return ssh.NewClient(c, chans, reqs), nil
}

func alive(client *ssh.Client) bool {
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// scpCopier pushes files over the scp sink protocol.
type scpCopier struct {
	client *ssh.Client
	scp    scp.Client
}

func openSCPCopier(ctx context.Context, target model.Target) (fileCopier, error) {
	client, err := dialSSH(ctx, target)
	if err != nil {
		return nil, err
	}

	sc, err := scp.NewClientBySSH(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to open scp session: %w", err)
	}

	return &scpCopier{client: client, scp: sc}, nil
}

func (c *scpCopier) CopyFile(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return &localFileError{err: fmt.Errorf("failed to open src: %w", err)}
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	info, err := f.Stat()
	if err != nil {
		return &localFileError{err: fmt.Errorf("failed to stat src: %w", err)}
	}

	return c.scp.CopyFromFile(ctx, *f, dst, fmt.Sprintf("%04o", info.Mode().Perm()))
}

func (c *scpCopier) Alive() bool {
	return alive(c.client)
}

func (c *scpCopier) Close() error {
	return c.client.Close()
}

// sshRunner executes shell commands, one session per command.
type sshRunner struct {
	client *ssh.Client
}

func openSSHRunner(ctx context.Context, target model.Target) (commandRunner, error) {
	client, err := dialSSH(ctx, target)
	if err != nil {
		return nil, err
	}

	return &sshRunner{client: client}, nil
}

// Run returns the combined output and exit status of cmd. A non-zero exit
// status is not an error.
func (r *sshRunner) Run(cmd string) (string, int, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", 0, fmt.Errorf("failed to open session: %w", err)
	}

	defer func(session *ssh.Session) {
		_ = session.Close()
	}(session)

	out, err := session.CombinedOutput(cmd)
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return strings.TrimSpace(string(out)), exitErr.ExitStatus(), nil
	}
	if err != nil {
		return "", 0, err
	}

	return strings.TrimSpace(string(out)), 0, nil
}

func (r *sshRunner) Alive() bool {
	return alive(r.client)
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}
