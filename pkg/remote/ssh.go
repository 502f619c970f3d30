package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/apparentlymart/go-shquot/shquot"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// SSHOptions configures an SSH connection.
type SSHOptions struct {
	Host                  string
	Port                  int
	User                  string
	IdentityFile          string
	Password              string
	KnownHosts            string
	InsecureIgnoreHostKey bool
	ConnectTimeout        time.Duration
	BecomeCommand         string
}

// sshTransport holds the single connection used for a whole run.
type sshTransport struct {
	client *ssh.Client
	addr   string
	user   string
}

// DialSSH connects to the target and returns a Client bound to that
// connection.
func DialSSH(ctx context.Context, opts SSHOptions) (*Client, error) {
	logger := logging.GetLogger("remote.ssh")

	cfg, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot reach %s", addr)
	}

	if opts.ConnectTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.ConnectTimeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, errors.ErrRemoteConnect, "ssh handshake with %s failed", addr)
	}
	_ = conn.SetDeadline(time.Time{})

	logger.Info().Str("addr", addr).Str("user", opts.User).Msg("Connected to target")
	t := &sshTransport{client: ssh.NewClient(c, chans, reqs), addr: addr, user: opts.User}
	return newClient(t, opts.BecomeCommand), nil
}

func clientConfig(opts SSHOptions) (*ssh.ClientConfig, error) {
	if opts.Host == "" {
		return nil, errors.New(errors.ErrInvalidInput, "no target host configured")
	}

	auth, err := authMethods(opts)
	if err != nil {
		return nil, err
	}

	hostKey, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         opts.ConnectTimeout,
	}, nil
}

func authMethods(opts SSHOptions) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if opts.IdentityFile != "" {
		key, err := os.ReadFile(expandHome(opts.IdentityFile))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot read identity file %s", opts.IdentityFile)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot parse identity file %s", opts.IdentityFile)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			logger := logging.GetLogger("remote.ssh")
			logger.Debug().Err(err).Msg("SSH agent unavailable")
		}
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}

	if len(methods) == 0 {
		return nil, errors.New(errors.ErrRemoteConnect, "no SSH authentication method: set an identity file, a password, or run an agent")
	}
	return methods, nil
}

func hostKeyCallback(opts SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		logger := logging.GetLogger("remote.ssh")
		logger.Warn().Str("host", opts.Host).Msg("Host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := opts.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrRemoteConnect, "cannot locate known_hosts")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(expandHome(path))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot load known hosts from %s", path)
	}
	return cb, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// streamDrainTimeout bounds the wait for a closed session's output.
var streamDrainTimeout = 5 * time.Second

// commandLine quotes argv for the remote POSIX shell.
func commandLine(argv []string) string {
	return shquot.POSIXShell(argv)
}

func (s *sshTransport) exec(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	session, err := s.client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot open session on %s", s.addr)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	if err := session.Start(commandLine(argv)); err != nil {
		return Result{ExitCode: -1}, errors.Wrapf(err, errors.ErrRemoteConnect, "cannot start %s on %s", argv[0], s.addr)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		// the session copies into the buffers until Wait returns
		res := Result{ExitCode: -1}
		select {
		case <-done:
			res.Stdout, res.Stderr = stdout.Bytes(), stderr.Bytes()
		case <-time.After(streamDrainTimeout):
			logger := logging.GetLogger("remote.ssh")
			logger.Debug().Str("target", s.String()).Str("command", argv[0]).Msg("Dropped output of an abandoned session")
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, errors.Wrapf(ctx.Err(), errors.ErrTimeout, "%s on %s timed out", argv[0], s.addr)
		}
		return res, errors.Wrapf(ctx.Err(), errors.ErrCancelled, "%s on %s was cancelled", argv[0], s.addr)
	case err := <-done:
		res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		res.ExitCode = -1
		return res, errors.Wrapf(err, errors.ErrRemoteConnect, "%s on %s ended without an exit status", argv[0], s.addr)
	}
}

func (s *sshTransport) close() error {
	return s.client.Close()
}

func (s *sshTransport) String() string {
	return fmt.Sprintf("%s@%s", s.user, s.addr)
}
