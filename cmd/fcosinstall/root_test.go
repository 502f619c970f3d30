package fcosinstall

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudato/fcosinstall/internal/version"
	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/config"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/remote"
	"github.com/kudato/fcosinstall/pkg/testutil"
)

// setupEnv isolates config, cache and log locations and installs fake
// tools and a fake target.
func setupEnv(t *testing.T) (string, *testutil.FakeExecutor) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("FCOSINSTALL_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("FCOSINSTALL_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("FCOSINSTALL_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "xdg-state"))

	runner := testutil.NewFakeRunner().
		Handle("butane", testutil.ButaneHandler()).
		Handle("ignition-validate", testutil.ValidateHandler(afero.NewOsFs(), nil))
	exec := testutil.NewFakeExecutor()

	oldRunner, oldDial := newRunner, dial
	newRunner = func() command.Runner { return runner }
	dial = func(context.Context, *config.Config) (remote.Executor, error) { return exec, nil }
	t.Cleanup(func() { newRunner, dial = oldRunner, oldDial })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "core.bu"), []byte(testutil.UsersFragment("core")), 0644))
	return dir, exec
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestOverrides(t *testing.T) {
	g := &globals{}
	root := newRootCmd(g)
	require.NoError(t, root.PersistentFlags().Parse([]string{
		"--host", "192.0.2.10", "--port", "2222", "--transport", "local", "--workers", "8", "-vv",
	}))

	assert.Equal(t, map[string]interface{}{
		"remote.host":      "192.0.2.10",
		"remote.port":      2222,
		"remote.transport": "local",
		"pipeline.workers": 8,
	}, g.overrides(root.PersistentFlags()))
}

func TestOverrides_UnsetFlagsLeaveConfigAlone(t *testing.T) {
	g := &globals{}
	root := newRootCmd(g)
	require.NoError(t, root.PersistentFlags().Parse(nil))
	assert.Empty(t, g.overrides(root.PersistentFlags()))
}

func TestRootCmd_NoCommand(t *testing.T) {
	setupEnv(t)
	_, err := execute(t)
	assert.EqualError(t, err, MsgErrNoCommand)
}

func TestVersionCmd(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fcosinstall version "+version.Version)
}

func TestLogFileFollowsStateDir(t *testing.T) {
	dir, _ := setupEnv(t)

	_, err := execute(t, "version")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "state", "fcosinstall.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "xdg-state"))
	assert.True(t, os.IsNotExist(err))
}

func TestInstallCmd_RequiresSpecVersionAndDevice(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "install", "-t", "core.bu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec-version")
	assert.Contains(t, err.Error(), "device")
}

func TestInstallCmd(t *testing.T) {
	dir, exec := setupEnv(t)
	tpl := filepath.Join(dir, "core.bu")

	out, err := execute(t, "install", "--output", "json",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", tpl)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, true, rec["changed"])
	assert.Equal(t, "Fedora CoreOS installed on /dev/vda", rec["msg"])
	assert.Equal(t, []any{}, rec["warnings"])
	assert.NotEmpty(t, rec["fingerprint"])

	installs := exec.RunsOf("coreos-installer")
	require.Len(t, installs, 1)
	assert.Equal(t, []string{"coreos-installer", "install", "--ignition-file", "/tmp/fcosinstall.ign", "/dev/vda"}, installs[0].Args)
	_, ok := exec.File("/etc/metadata.json")
	assert.True(t, ok)

	// a second run is a no-op
	out, err = execute(t, "install", "--output", "json",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", tpl)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, false, rec["changed"])
	assert.Len(t, exec.RunsOf("coreos-installer"), 1)
}

func TestInstallCmd_CheckTouchesNothing(t *testing.T) {
	dir, exec := setupEnv(t)

	out, err := execute(t, "install", "--output", "text", "--check",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", filepath.Join(dir, "core.bu"))
	require.NoError(t, err)
	assert.Contains(t, out, "Would install Fedora CoreOS on /dev/vda")
	assert.Zero(t, exec.Writes())
}

func TestInstallCmd_FailureIsReported(t *testing.T) {
	dir, exec := setupEnv(t)
	exec.RunFunc = func(_ context.Context, cmd remote.Command) (remote.Result, error) {
		if cmd.Args[0] == "coreos-installer" {
			return remote.Result{ExitCode: 1, Stderr: []byte("Error: device busy")}, nil
		}
		data, _ := exec.File("/tmp/fcosinstall.ign")
		return remote.Result{Stdout: []byte(sha256Line(data))}, nil
	}

	out, err := execute(t, "install", "--output", "text",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", filepath.Join(dir, "core.bu"))
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))
	assert.Equal(t, ExitManualIntervention, ExitCode(err))
	assert.Contains(t, out, "Error: device busy")
}

func TestInstallCmd_DialsOnlyAfterBuild(t *testing.T) {
	dir, _ := setupEnv(t)
	dials := 0
	dial = func(context.Context, *config.Config) (remote.Executor, error) {
		dials++
		return nil, errors.New(errors.ErrRemoteConnect, "host unreachable")
	}
	newer := filepath.Join(dir, "newer.bu")
	require.NoError(t, os.WriteFile(newer, []byte("variant: fcos\nversion: 1.7.0\n"), 0644))

	_, err := execute(t, "install", "--output", "text",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", newer)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrVersionMismatch), "got %v", err)
	assert.Zero(t, dials)

	// a good build reaches the target and reports the connection failure
	_, err = execute(t, "install", "--output", "text",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", filepath.Join(dir, "core.bu"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRemoteConnect), "got %v", err)
	assert.Equal(t, 1, dials)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestInstallCmd_BadVar(t *testing.T) {
	dir, exec := setupEnv(t)

	_, err := execute(t, "install", "--output", "text", "--var", "novalue",
		"--spec-version", "1.6.0", "--device", "/dev/vda", "-t", filepath.Join(dir, "core.bu"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Empty(t, exec.Calls())
}

func TestRenderCmd(t *testing.T) {
	dir, exec := setupEnv(t)
	dest := filepath.Join(dir, "out.ign")

	_, err := execute(t, "render", "--spec-version", "1.6.0", "--device", "/dev/vda",
		"-t", filepath.Join(dir, "core.bu"), "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("}\n")))
	assert.False(t, bytes.HasSuffix(data, []byte("\n\n")))
	var tree map[string]any
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, "3.5.0", tree["ignition"].(map[string]any)["version"])
	assert.Equal(t, []any{map[string]any{"name": "core"}}, tree["passwd"].(map[string]any)["users"])
	assert.Empty(t, exec.Calls(), "render never contacts the target")
}

func TestStatusCmd(t *testing.T) {
	_, exec := setupEnv(t)

	out, err := execute(t, "status", "--output", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "installed: no")

	exec.SetFile("/etc/metadata.json", []byte(`{"installed_at":"2026-03-01T12:00:00Z","fingerprint":"sha256:abc","device":"/dev/vda"}`))
	out, err = execute(t, "status", "--output", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "fingerprint: sha256:abc")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New(errors.ErrCompile, "x")))
	assert.Equal(t, ExitManualIntervention,
		ExitCode(reported(errors.New(errors.ErrInstall, "x").WithDetail(errors.DetailManualIntervention, true))))
}

func sha256Line(data []byte) string {
	return fmt.Sprintf("%x  /tmp/fcosinstall.ign\n", sha256.Sum256(data))
}

func TestHelpTopics(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "help", "topics")
	require.NoError(t, err)
	assert.Contains(t, out, "merging")
	assert.Contains(t, out, "--force")

	out, err = execute(t, "help", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing is copied to the target")
}

func TestManCmd(t *testing.T) {
	dir, _ := setupEnv(t)
	manDir := filepath.Join(dir, "man")

	_, err := execute(t, "man", "--dir", manDir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(manDir, "fcosinstall-install.1"))
	assert.NoError(t, err)
}
