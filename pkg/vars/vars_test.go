package vars

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudato/fcosinstall/pkg/errors"
)

func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func TestLoadFile(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/vars/host.yaml": "hostname: node1\nusers:\n  - core\n  - ansible\nnet:\n  dns: 1.1.1.1\n",
		"/vars/deep.yaml": "net:\n  bond0:\n    mtu: 9000\n",
		"/vars/host.toml": "hostname = \"node2\"\nport = 2222\n",
		"/vars/host.json": `{"hostname": "node3", "debug": true}`,
		"/vars/host.ini":  "hostname=node4",
		"/vars/bad.yaml":  "hostname: [unclosed",
		"/vars/list.yaml": "- a\n- b\n",
	})
	loader := NewLoader(fs)

	t.Run("yaml", func(t *testing.T) {
		v, err := loader.LoadFile("/vars/host.yaml")
		require.NoError(t, err)
		assert.Equal(t, "node1", v["hostname"])
		assert.Equal(t, []interface{}{"core", "ansible"}, v["users"])
		assert.Equal(t, map[string]interface{}{"dns": "1.1.1.1"}, v["net"])
	})

	t.Run("nested yaml mappings are plain maps", func(t *testing.T) {
		v, err := loader.LoadFile("/vars/deep.yaml")
		require.NoError(t, err)
		net, ok := v["net"].(map[string]any)
		require.True(t, ok, "net is %T", v["net"])
		bond, ok := net["bond0"].(map[string]any)
		require.True(t, ok, "bond0 is %T", net["bond0"])
		assert.Equal(t, 9000, bond["mtu"])
	})

	t.Run("toml", func(t *testing.T) {
		v, err := loader.LoadFile("/vars/host.toml")
		require.NoError(t, err)
		assert.Equal(t, "node2", v["hostname"])
		assert.EqualValues(t, 2222, v["port"])
	})

	t.Run("json", func(t *testing.T) {
		v, err := loader.LoadFile("/vars/host.json")
		require.NoError(t, err)
		assert.Equal(t, "node3", v["hostname"])
		assert.Equal(t, true, v["debug"])
	})

	for _, path := range []string{"/vars/host.ini", "/vars/bad.yaml", "/vars/list.yaml", "/vars/missing.yaml"} {
		t.Run("error "+path, func(t *testing.T) {
			_, err := loader.LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
			assert.Equal(t, errors.StageInput, errors.Stage(err))
		})
	}
}

func TestParsePairs(t *testing.T) {
	v, err := ParsePairs([]string{
		"hostname=node1",
		"port=22",
		"enabled=true",
		"ratio=0.5",
		"empty=",
		"version=1.6.0",
		"net.dns=1.1.1.1",
		"net.gateway=10.0.0.1",
		"password=a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, "node1", v["hostname"])
	assert.Equal(t, 22, v["port"])
	assert.Equal(t, true, v["enabled"])
	assert.Equal(t, 0.5, v["ratio"])
	assert.Equal(t, "", v["empty"])
	assert.Equal(t, "1.6.0", v["version"])
	assert.Equal(t, "a=b", v["password"])
	assert.Equal(t, map[string]any{"dns": "1.1.1.1", "gateway": "10.0.0.1"}, v["net"])
}

func TestParsePairs_Errors(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
	}{
		{"no equals", []string{"hostname"}},
		{"empty key", []string{"=value"}},
		{"empty segment", []string{"net..dns=x"}},
		{"scalar then nested", []string{"net=x", "net.dns=y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePairs(tt.pairs)
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
		})
	}
}

func TestLoad_Precedence(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/a.yaml": "hostname: from-a\ndomain: example.com\n",
		"/b.toml": "hostname = \"from-b\"\n",
	})

	v, err := NewLoader(fs).Load([]string{"/a.yaml", "/b.toml"}, []string{"hostname=from-cli"})
	require.NoError(t, err)
	assert.Equal(t, "from-cli", v["hostname"])
	assert.Equal(t, "example.com", v["domain"])

	v, err = NewLoader(fs).Load([]string{"/a.yaml", "/b.toml"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-b", v["hostname"])
}
