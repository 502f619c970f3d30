package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// ErrNotFound is returned by ReadFile when the remote file does not exist.
var ErrNotFound = stderrors.New("remote file not found")

// Command is a remote command as an argument vector.
type Command struct {
	Args []string
	// Become runs the command through the configured privilege command.
	Become bool
	Stdin  []byte
}

// Result is a finished remote command.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Success reports a zero exit code.
func (r Result) Success() bool { return r.ExitCode == 0 }

// CopyOptions controls how Copy writes the remote file.
type CopyOptions struct {
	Mode   os.FileMode
	Become bool
}

// Executor is the narrow view of the target host the installer needs.
type Executor interface {
	// Copy writes data to remotePath atomically.
	Copy(ctx context.Context, data []byte, remotePath string, opts CopyOptions) error
	// Run executes cmd. A non-zero exit is reported in Result, not as an error.
	Run(ctx context.Context, cmd Command) (Result, error)
	// ReadFile returns the file content, or ErrNotFound.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Close() error
}

// transport runs one argument vector on the target.
type transport interface {
	exec(ctx context.Context, argv []string, stdin []byte) (Result, error)
	close() error
	String() string
}

// Client implements Executor over a transport.
type Client struct {
	t      transport
	become []string
	logger zerolog.Logger
}

var _ Executor = (*Client)(nil)

func newClient(t transport, becomeCommand string) *Client {
	return &Client{
		t:      t,
		become: strings.Fields(becomeCommand),
		logger: logging.GetLogger("remote").With().Str("target", t.String()).Logger(),
	}
}

// Run executes cmd on the target.
func (c *Client) Run(ctx context.Context, cmd Command) (Result, error) {
	if len(cmd.Args) == 0 {
		return Result{}, errors.New(errors.ErrInvalidInput, "remote command requires arguments")
	}
	argv := cmd.Args
	// without a become command, privileged commands run as the login user
	if cmd.Become && len(c.become) > 0 {
		argv = append(append([]string{}, c.become...), cmd.Args...)
	}

	logging.LogCommand(c.logger, argv[0], argv[1:])
	res, err := c.t.exec(ctx, argv, cmd.Stdin)
	if err != nil {
		return res, err
	}
	c.logger.Debug().
		Str("command", cmd.Args[0]).
		Int("exit_code", res.ExitCode).
		Msg("Remote command finished")
	return res, nil
}

// copyScript writes stdin to a temp file next to the destination and renames
// it into place. Paths arrive as positional parameters.
const copyScript = `set -e
umask 077
cat > "$1"
chmod "$2" "$1"
mv -f "$1" "$3"`

// Copy writes data to remotePath via a temp file and rename.
func (c *Client) Copy(ctx context.Context, data []byte, remotePath string, opts CopyOptions) error {
	mode := opts.Mode
	if mode == 0 {
		mode = 0600
	}
	tmp := fmt.Sprintf("%s.%s.tmp", remotePath, uuid.NewString()[:8])

	res, err := c.Run(ctx, Command{
		Args:   []string{"sh", "-c", copyScript, "sh", tmp, fmt.Sprintf("%o", mode.Perm()), remotePath},
		Become: opts.Become,
		Stdin:  data,
	})
	if err != nil {
		return err
	}
	if !res.Success() {
		// best effort; the temp file may not exist
		_, _ = c.Run(ctx, Command{Args: []string{"rm", "-f", "--", tmp}, Become: opts.Become})
		return fmt.Errorf("writing %s exited with status %d: %s", remotePath, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	c.logger.Debug().
		Str("remote_path", remotePath).
		Int("bytes", len(data)).
		Msg("Copied file to target")
	return nil
}

// notFoundStatus is the exit status readScript uses for a missing file.
const notFoundStatus = 44

const readScript = `[ -e "$1" ] || exit 44
exec cat -- "$1"`

// ReadFile returns the content of path.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	res, err := c.Run(ctx, Command{Args: []string{"sh", "-c", readScript, "sh", path}})
	if err != nil {
		return nil, err
	}
	switch res.ExitCode {
	case 0:
		return res.Stdout, nil
	case notFoundStatus:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("reading %s exited with status %d: %s", path, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.t.close()
}

// String names the target.
func (c *Client) String() string { return c.t.String() }
