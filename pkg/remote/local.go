package remote

import (
	"context"

	"github.com/kudato/fcosinstall/pkg/command"
)

// localTransport runs commands on this machine, for use from inside the
// live environment.
type localTransport struct {
	runner command.Runner
}

// NewLocal returns a Client executing on the local machine.
func NewLocal(runner command.Runner, becomeCommand string) *Client {
	return newClient(&localTransport{runner: runner}, becomeCommand)
}

func (l *localTransport) exec(ctx context.Context, argv []string, stdin []byte) (Result, error) {
	out, err := l.runner.Run(ctx, command.Invocation{
		Name:  argv[0],
		Args:  argv[1:],
		Stdin: stdin,
	})
	return Result{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}, err
}

func (l *localTransport) close() error { return nil }

func (l *localTransport) String() string { return "local" }
