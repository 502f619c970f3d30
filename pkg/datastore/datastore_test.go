package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/testutil"
)

const markerPath = "/etc/metadata.json"

func TestNeedsInstall(t *testing.T) {
	ctx := context.Background()
	installed := Marker{
		InstalledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Fingerprint: "sha256:abc",
		Device:      "/dev/sda",
	}
	encoded, err := installed.Encode()
	require.NoError(t, err)

	tests := []struct {
		name       string
		file       []byte
		force      bool
		wantNeeds  bool
		wantMarker bool
		wantReads  int
	}{
		{name: "absent", wantNeeds: true, wantReads: 1},
		{name: "present", file: encoded, wantNeeds: false, wantMarker: true, wantReads: 1},
		{name: "corrupt still counts", file: []byte("{not json"), wantNeeds: false, wantMarker: true, wantReads: 1},
		{name: "force skips the read", file: encoded, force: true, wantNeeds: true, wantReads: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := testutil.NewFakeExecutor()
			if tt.file != nil {
				exec.SetFile(markerPath, tt.file)
			}
			store := New(exec, markerPath, true)

			needs, m, err := store.NeedsInstall(ctx, tt.force)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNeeds, needs)
			assert.Equal(t, tt.wantMarker, m != nil)
			assert.Len(t, exec.CallsOf(testutil.OpRead), tt.wantReads)
			assert.Zero(t, exec.Writes())
		})
	}
}

func TestGetMarker(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.SetFile(markerPath, []byte(`{"installed_at":"2026-03-01T12:00:00Z","fingerprint":"sha256:abc","device":"/dev/sda","spec_version":"1.6.0","templates":["a.bu"]}`))

	m, err := New(exec, markerPath, false).GetMarker(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "/dev/sda", m.Device)
	assert.Equal(t, "1.6.0", m.SpecVersion)
	assert.Equal(t, []string{"a.bu"}, m.Templates)
	assert.True(t, m.Matches("sha256:abc"))
	assert.False(t, m.Matches("sha256:def"))

	exec.SetFile(markerPath, []byte("garbage"))
	m, err = New(exec, markerPath, false).GetMarker(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Corrupt)
	assert.False(t, m.Matches(""))
}

func TestGetMarker_ReadError(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.ReadErr[markerPath] = fmt.Errorf("connection reset by peer")

	_, _, err := New(exec, markerPath, false).NeedsInstall(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMarkerRead))
	assert.Equal(t, errors.StageCheckMarker, errors.Stage(err))
}

func TestRecordInstall(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	store := New(exec, markerPath, true)
	m := Marker{
		InstalledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Fingerprint: "sha256:abc",
		Device:      "/dev/sda",
		SpecVersion: "1.6.0",
	}

	require.NoError(t, store.RecordInstall(context.Background(), m))

	copies := exec.CallsOf(testutil.OpCopy)
	require.Len(t, copies, 1)
	assert.Equal(t, markerPath, copies[0].Path)
	assert.True(t, copies[0].Become)

	data, ok := exec.File(markerPath)
	require.True(t, ok)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "2026-03-01T12:00:00Z", got["installed_at"])
	assert.Equal(t, "sha256:abc", got["fingerprint"])
	assert.Equal(t, "/dev/sda", got["device"])
	assert.NotContains(t, got, "Corrupt")

	needs, _, err := store.NeedsInstall(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestRecordInstall_Error(t *testing.T) {
	exec := testutil.NewFakeExecutor()
	exec.CopyErr[markerPath] = fmt.Errorf("read-only file system")

	err := New(exec, markerPath, true).RecordInstall(context.Background(), Marker{})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrMarkerWrite))
	assert.Equal(t, errors.StageWriteMarker, errors.Stage(err))
	assert.Contains(t, err.Error(), "read-only file system")
}

func TestFingerprint(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, map[string]string{
		"/tpl/a.bu": "a",
		"/tpl/b.bu": "b",
	})

	base, err := Fingerprint(fs, "1.6.0", "/dev/sda", []string{"/tpl/a.bu", "/tpl/b.bu"})
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, base)

	again, err := Fingerprint(fs, "1.6.0", "/dev/sda", []string{"/tpl/a.bu", "/tpl/b.bu"})
	require.NoError(t, err)
	assert.Equal(t, base, again)

	variants := map[string][]interface{}{
		"spec version":   {"1.5.0", "/dev/sda", []string{"/tpl/a.bu", "/tpl/b.bu"}},
		"device":         {"1.6.0", "/dev/vda", []string{"/tpl/a.bu", "/tpl/b.bu"}},
		"template order": {"1.6.0", "/dev/sda", []string{"/tpl/b.bu", "/tpl/a.bu"}},
		"template set":   {"1.6.0", "/dev/sda", []string{"/tpl/a.bu"}},
	}
	for name, v := range variants {
		fp, err := Fingerprint(fs, v[0].(string), v[1].(string), v[2].([]string))
		require.NoError(t, err)
		assert.NotEqual(t, base, fp, name)
	}

	require.NoError(t, afero.WriteFile(fs, "/tpl/a.bu", []byte("changed"), 0644))
	changed, err := Fingerprint(fs, "1.6.0", "/dev/sda", []string{"/tpl/a.bu", "/tpl/b.bu"})
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	_, err = Fingerprint(fs, "1.6.0", "/dev/sda", []string{"/tpl/missing.bu"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrTemplateNotFound))
}
