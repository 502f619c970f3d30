package templates

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudato/fcosinstall/pkg/errors"
)

func setupFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func TestRender(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"/tpl/users.bu": `variant: fcos
version: "{{ .spec_version }}"
passwd:
  users:
{{- range .users }}
    - name: {{ . }}
{{- end }}
`,
		"/tpl/optional.bu": `hostname: {{ get . "hostname" | default "fcos" }}
{{- if hasKey . "ssh_key" }}
key: {{ .ssh_key }}
{{- end }}
`,
		"/tpl/encode.bu": `inline: {{ .motd | b64encode }}
file: {{ b64file "files/banner.txt" }}
url: {{ "hi" | dataURL }}
`,
		"/tpl/files/banner.txt": "welcome\n",
		"/tpl/yaml.bu":          "{{ $net := fromYaml .net }}dns: {{ $net.dns }}\n{{ toYaml .extra }}\n",
	})
	r := NewRenderer(fs)

	t.Run("substitutes variables", func(t *testing.T) {
		frag, err := r.Render("/tpl/users.bu", Context{
			"spec_version": "1.6.0",
			"users":        []any{"core", "ansible"},
		})
		require.NoError(t, err)
		assert.Equal(t, "/tpl/users.bu", frag.Template)
		assert.Equal(t, "/tpl", frag.Dir)
		assert.Contains(t, string(frag.Text), `version: "1.6.0"`)
		assert.Contains(t, string(frag.Text), "- name: core\n    - name: ansible")
	})

	t.Run("optional variables fall back", func(t *testing.T) {
		frag, err := r.Render("/tpl/optional.bu", Context{})
		require.NoError(t, err)
		assert.Equal(t, "hostname: fcos\n", string(frag.Text))

		frag, err = r.Render("/tpl/optional.bu", Context{"hostname": "node1", "ssh_key": "ssh-ed25519 AAAA"})
		require.NoError(t, err)
		assert.Equal(t, "hostname: node1\nkey: ssh-ed25519 AAAA\n", string(frag.Text))
	})

	t.Run("encoding helpers", func(t *testing.T) {
		frag, err := r.Render("/tpl/encode.bu", Context{"motd": "hello"})
		require.NoError(t, err)
		text := string(frag.Text)
		assert.Contains(t, text, "inline: "+base64.StdEncoding.EncodeToString([]byte("hello")))
		assert.Contains(t, text, "file: "+base64.StdEncoding.EncodeToString([]byte("welcome\n")))
		assert.Contains(t, text, "url: data:;base64,aGk=")
	})

	t.Run("yaml helpers", func(t *testing.T) {
		frag, err := r.Render("/tpl/yaml.bu", Context{
			"net":   "dns: 1.1.1.1",
			"extra": map[string]any{"a": 1},
		})
		require.NoError(t, err)
		assert.Equal(t, "dns: 1.1.1.1\na: 1\n", string(frag.Text))
	})
}

func TestRender_Errors(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"/tpl/missing-var.bu": "version: {{ .spec_version }}\nhost: {{ .hostname }}\n",
		"/tpl/syntax.bu":      "{{ if .spec_version }}no end\n",
		"/tpl/bad-file.bu":    "x: {{ b64file \"nope.txt\" }}\n",
	})
	r := NewRenderer(fs)

	tests := []struct {
		name    string
		path    string
		code    errors.ErrorCode
		message string
	}{
		{"template not found", "/tpl/absent.bu", errors.ErrTemplateNotFound, "not found"},
		{"unresolved variable", "/tpl/missing-var.bu", errors.ErrTemplateRender, "hostname"},
		{"syntax error", "/tpl/syntax.bu", errors.ErrTemplateRender, "syntax.bu"},
		{"missing embedded file", "/tpl/bad-file.bu", errors.ErrTemplateRender, "nope.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.path, Context{"spec_version": "1.6.0"})
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, tt.code), "got %v", err)
			assert.Equal(t, errors.StageRender, errors.Stage(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRender_DoesNotMutateContext(t *testing.T) {
	fs := setupFs(t, map[string]string{
		"/tpl/mutate.bu": `{{ $_ := set .net "dns" "9.9.9.9" }}{{ $_ := set . "added" true }}dns: {{ .net.dns }}`,
	})
	ctx := Context{"net": map[string]any{"dns": "1.1.1.1"}}

	frag, err := NewRenderer(fs).Render("/tpl/mutate.bu", ctx)
	require.NoError(t, err)
	assert.Equal(t, "dns: 9.9.9.9", string(frag.Text))

	assert.Equal(t, Context{"net": map[string]any{"dns": "1.1.1.1"}}, ctx)
}

func TestRenderMarker(t *testing.T) {
	r := NewRenderer(afero.NewMemMapFs())
	markerJSON := `{"device":"/dev/sda"}`

	frag, err := r.RenderMarker(Context{
		KeySpecVersion: "1.6.0",
		KeyMarkerPath:  "/etc/metadata.json",
		KeyMarkerJSON:  markerJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, MarkerTemplateName, frag.Template)

	text := string(frag.Text)
	assert.True(t, strings.HasPrefix(text, "variant: fcos\nversion: \"1.6.0\"\n"))
	assert.Contains(t, text, `path: "/etc/metadata.json"`)
	assert.Contains(t, text, `source: "data:;base64,`+base64.StdEncoding.EncodeToString([]byte(markerJSON))+`"`)

	_, err = r.RenderMarker(Context{KeySpecVersion: "1.6.0"})
	assert.True(t, errors.IsErrorCode(err, errors.ErrTemplateRender))
}
