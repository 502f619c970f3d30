package testutil

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kudato/fcosinstall/pkg/remote"
)

// Remote operation names recorded by FakeExecutor.
const (
	OpCopy  = "copy"
	OpRun   = "run"
	OpRead  = "read"
	OpClose = "close"
)

// RemoteCall is one recorded call on FakeExecutor.
type RemoteCall struct {
	Op     string
	Path   string
	Args   []string
	Become bool
	Data   []byte
}

// FakeExecutor is an in-memory target host.
type FakeExecutor struct {
	mu    sync.Mutex
	files map[string][]byte
	calls []RemoteCall

	// RunFunc answers Run; nil uses Answer.
	RunFunc func(ctx context.Context, cmd remote.Command) (remote.Result, error)
	// CopyErr fails Copy for the given remote path.
	CopyErr map[string]error
	// ReadErr fails ReadFile for the given remote path.
	ReadErr map[string]error
	// BeforeRun is called ahead of every Run, after recording it.
	BeforeRun func(cmd remote.Command)
}

var _ remote.Executor = (*FakeExecutor)(nil)

// NewFakeExecutor creates an empty host.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{
		files:   map[string][]byte{},
		CopyErr: map[string]error{},
		ReadErr: map[string]error{},
	}
}

// SetFile places a file on the host without recording a call.
func (f *FakeExecutor) SetFile(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), data...)
}

// File returns a stored file.
func (f *FakeExecutor) File(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return data, ok
}

// Paths lists the stored files.
func (f *FakeExecutor) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (f *FakeExecutor) record(c RemoteCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Copy stores data at remotePath.
func (f *FakeExecutor) Copy(ctx context.Context, data []byte, remotePath string, opts remote.CopyOptions) error {
	f.record(RemoteCall{Op: OpCopy, Path: remotePath, Become: opts.Become, Data: append([]byte(nil), data...)})
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.CopyErr[remotePath]; err != nil {
		return err
	}
	f.files[remotePath] = append([]byte(nil), data...)
	return nil
}

// Run records cmd and answers it.
func (f *FakeExecutor) Run(ctx context.Context, cmd remote.Command) (remote.Result, error) {
	f.record(RemoteCall{Op: OpRun, Args: append([]string(nil), cmd.Args...), Become: cmd.Become})
	if f.BeforeRun != nil {
		f.BeforeRun(cmd)
	}
	if err := ctx.Err(); err != nil {
		return remote.Result{ExitCode: -1}, err
	}
	if f.RunFunc != nil {
		return f.RunFunc(ctx, cmd)
	}
	return f.Answer(cmd), nil
}

// Answer is the default reply to cmd: sha256sum hashes a stored file, rm
// deletes stored files, and everything else exits 0.
func (f *FakeExecutor) Answer(cmd remote.Command) remote.Result {
	if len(cmd.Args) == 0 {
		return remote.Result{}
	}
	switch cmd.Args[0] {
	case "sha256sum":
		path := cmd.Args[len(cmd.Args)-1]
		data, ok := f.File(path)
		if !ok {
			return remote.Result{ExitCode: 1, Stderr: []byte("sha256sum: " + path + ": No such file or directory")}
		}
		return remote.Result{Stdout: []byte(fmt.Sprintf("%x  %s\n", sha256.Sum256(data), path))}
	case "rm":
		f.mu.Lock()
		defer f.mu.Unlock()
		for _, arg := range cmd.Args[1:] {
			if !strings.HasPrefix(arg, "-") {
				delete(f.files, arg)
			}
		}
	}
	return remote.Result{}
}

// ReadFile returns a stored file or remote.ErrNotFound.
func (f *FakeExecutor) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f.record(RemoteCall{Op: OpRead, Path: path})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ReadErr[path]; err != nil {
		return nil, err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Close records the call.
func (f *FakeExecutor) Close() error {
	f.record(RemoteCall{Op: OpClose})
	return nil
}

// Calls returns every call so far.
func (f *FakeExecutor) Calls() []RemoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RemoteCall(nil), f.calls...)
}

// CallsOf returns the calls of one operation.
func (f *FakeExecutor) CallsOf(op string) []RemoteCall {
	var out []RemoteCall
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// RunsOf returns Run calls whose command is name.
func (f *FakeExecutor) RunsOf(name string) []RemoteCall {
	var out []RemoteCall
	for _, c := range f.CallsOf(OpRun) {
		if len(c.Args) > 0 && c.Args[0] == name {
			out = append(out, c)
		}
	}
	return out
}

// Writes counts calls that can change the host: every Copy and every Run
// other than sha256sum.
func (f *FakeExecutor) Writes() int {
	n := len(f.CallsOf(OpCopy))
	for _, c := range f.CallsOf(OpRun) {
		if len(c.Args) == 0 || c.Args[0] != "sha256sum" {
			n++
		}
	}
	return n
}
