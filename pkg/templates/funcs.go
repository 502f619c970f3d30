package templates

import (
	"encoding/base64"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// funcMap returns sprig's text functions plus the Butane helpers. dir is the
// directory b64file resolves relative paths against.
func funcMap(fs afero.Fs, dir string) template.FuncMap {
	fm := sprig.TxtFuncMap()

	fm["b64encode"] = func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	}
	fm["b64file"] = func(name string) (string, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		data, err := afero.ReadFile(fs, name)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(data), nil
	}
	fm["dataURL"] = func(s string) string {
		return "data:;base64," + base64.StdEncoding.EncodeToString([]byte(s))
	}
	fm["toYaml"] = func(v interface{}) (string, error) {
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(string(out), "\n"), nil
	}
	fm["fromYaml"] = func(s string) (map[string]interface{}, error) {
		out := map[string]interface{}{}
		if err := yaml.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return fm
}
