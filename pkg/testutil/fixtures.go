package testutil

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/kudato/fcosinstall/pkg/ignition"
)

// Doc builds an ignition.Document from a JSON literal.
func Doc(t *testing.T, source, raw string) ignition.Document {
	t.Helper()
	doc, err := ignition.Parse(source, []byte(raw))
	require.NoError(t, err)
	return doc
}

// Tree decodes a JSON literal, for comparing against merged output.
func Tree(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

// WriteFiles populates fs with path to content pairs.
func WriteFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
}

// UsersFragment returns a Butane fragment declaring one user per name.
func UsersFragment(names ...string) string {
	out := "variant: fcos\nversion: \"{{ .spec_version }}\"\npasswd:\n  users:\n"
	for _, n := range names {
		out += "    - name: " + n + "\n"
	}
	return out
}
