package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/errors"
)

// RunFunc answers one invocation.
type RunFunc func(ctx context.Context, inv command.Invocation) (command.Output, error)

// FakeRunner is a command.Runner answering from per-tool handlers.
type FakeRunner struct {
	mu       sync.Mutex
	handlers map[string]RunFunc
	calls    []command.Invocation
}

var _ command.Runner = (*FakeRunner)(nil)

// NewFakeRunner creates a runner with no handlers. Unhandled tools fail
// as if missing from PATH.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{handlers: map[string]RunFunc{}}
}

// Handle registers fn for tool and returns the runner for chaining.
func (f *FakeRunner) Handle(tool string, fn RunFunc) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[tool] = fn
	return f
}

// Run records inv and dispatches it.
func (f *FakeRunner) Run(ctx context.Context, inv command.Invocation) (command.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	fn := f.handlers[inv.Name]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return command.Output{ExitCode: -1}, errors.Wrapf(err, errors.ErrCancelled, "%s was cancelled", inv.Name)
	}
	if fn == nil {
		return command.Output{ExitCode: -1}, errors.Newf(errors.ErrNotFound, "cannot run %s", inv.Name)
	}
	return fn(ctx, inv)
}

// Calls returns every invocation so far.
func (f *FakeRunner) Calls() []command.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]command.Invocation(nil), f.calls...)
}

// CallsTo returns the invocations of tool.
func (f *FakeRunner) CallsTo(tool string) []command.Invocation {
	var out []command.Invocation
	for _, c := range f.Calls() {
		if c.Name == tool {
			out = append(out, c)
		}
	}
	return out
}

// Fail answers with a non-zero exit and stderr.
func Fail(exitCode int, stderr string) RunFunc {
	return func(context.Context, command.Invocation) (command.Output, error) {
		return command.Output{ExitCode: exitCode, Stderr: []byte(stderr)}, nil
	}
}

// Succeed answers with exit 0 and stdout.
func Succeed(stdout string) RunFunc {
	return func(context.Context, command.Invocation) (command.Output, error) {
		return command.Output{Stdout: []byte(stdout)}, nil
	}
}

// ButaneSpecs maps Butane fcos spec versions to Ignition versions.
var ButaneSpecs = map[string]string{
	"1.4.0": "3.3.0",
	"1.5.0": "3.4.0",
	"1.6.0": "3.5.0",
	"1.7.0": "3.6.0",
}

// ButaneHandler emulates butane: it reads the YAML fragment from stdin,
// drops variant and version, and emits the rest as Ignition JSON carrying
// the matching ignition.version. A fragment with a top-level "error" key
// fails with that value as the diagnostic.
func ButaneHandler() RunFunc {
	return func(_ context.Context, inv command.Invocation) (command.Output, error) {
		var tree map[string]any
		if err := yaml.Unmarshal(inv.Stdin, &tree); err != nil {
			return command.Output{ExitCode: 1, Stderr: []byte("error: " + err.Error())}, nil
		}
		if msg, ok := tree["error"]; ok {
			return command.Output{ExitCode: 1, Stderr: []byte(fmt.Sprint(msg))}, nil
		}

		spec, _ := tree["version"].(string)
		ign, ok := ButaneSpecs[spec]
		if !ok {
			return command.Output{ExitCode: 1, Stderr: []byte(fmt.Sprintf("error: unsupported config version %q", spec))}, nil
		}
		delete(tree, "variant")
		delete(tree, "version")

		section, _ := tree["ignition"].(map[string]any)
		if section == nil {
			section = map[string]any{}
		}
		section["version"] = ign
		tree["ignition"] = section

		out, err := json.Marshal(tree)
		if err != nil {
			return command.Output{ExitCode: 1, Stderr: []byte(err.Error())}, nil
		}
		return command.Output{Stdout: out}, nil
	}
}

// ValidateHandler emulates ignition-validate reading the document from fs.
// reject returns a diagnostic for documents that should fail; nil accepts
// everything that parses.
func ValidateHandler(fs afero.Fs, reject func(doc map[string]any) string) RunFunc {
	return func(_ context.Context, inv command.Invocation) (command.Output, error) {
		if len(inv.Args) != 1 {
			return command.Output{ExitCode: 2, Stderr: []byte("usage: ignition-validate <file>")}, nil
		}
		raw, err := afero.ReadFile(fs, inv.Args[0])
		if err != nil {
			return command.Output{ExitCode: 1, Stderr: []byte(err.Error())}, nil
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return command.Output{ExitCode: 1, Stderr: []byte("error: config is not valid JSON: " + err.Error())}, nil
		}
		if reject != nil {
			if msg := reject(doc); msg != "" {
				return command.Output{ExitCode: 1, Stdout: []byte(msg)}, nil
			}
		}
		return command.Output{}, nil
	}
}
