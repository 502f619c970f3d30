// Package vars loads the variable context templates are rendered with.
//
// Variables come from files (YAML, TOML or JSON, picked by extension) and
// from key=value pairs given on the command line. Later sources override
// earlier ones at the top level; nested mappings are replaced, not merged.
package vars

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// Vars is a variable context.
type Vars map[string]any

// Loader reads variable files from a filesystem.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a loader reading from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// LoadFile reads one variables file. The top level must be a mapping.
func (l *Loader) LoadFile(path string) (Vars, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "cannot read vars file %s", path).
			WithStage(errors.StageInput)
	}

	// decode into a plain map: yaml.v3 reuses the target's named type for
	// nested mappings
	out := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	case ".toml":
		err = toml.Unmarshal(data, &out)
	case ".json":
		err = json.Unmarshal(data, &out)
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unsupported vars file type %q", filepath.Ext(path)).
			WithDetail("path", path).
			WithStage(errors.StageInput)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "malformed vars file %s", path).
			WithStage(errors.StageInput)
	}

	logger := logging.GetLogger("vars")
	logger.Debug().
		Str("path", path).
		Int("keys", len(out)).
		Msg("Loaded vars file")
	return Vars(out), nil
}

// Load reads files in order, then applies key=value pairs.
func (l *Loader) Load(files []string, pairs []string) (Vars, error) {
	out := Vars{}
	for _, f := range files {
		v, err := l.LoadFile(f)
		if err != nil {
			return nil, err
		}
		out.Merge(v)
	}

	p, err := ParsePairs(pairs)
	if err != nil {
		return nil, err
	}
	out.Merge(p)
	return out, nil
}

// ParsePairs parses key=value pairs. Values are decoded as YAML scalars, so
// "port=22" yields an int and "enabled=true" a bool; a dotted key nests.
func ParsePairs(pairs []string) (Vars, error) {
	out := Vars{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.Newf(errors.ErrInvalidInput, "variable %q is not in key=value form", pair).
				WithStage(errors.StageInput)
		}

		var value any = raw
		var decoded any
		if raw != "" && yaml.Unmarshal([]byte(raw), &decoded) == nil {
			switch decoded.(type) {
			case bool, int, float64:
				value = decoded
			}
		}

		if err := setPath(out, strings.Split(key, "."), value); err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "variable %q", pair).
				WithStage(errors.StageInput)
		}
	}
	return out, nil
}

// Merge copies src into v, replacing existing keys.
func (v Vars) Merge(src Vars) {
	for k, val := range src {
		v[k] = val
	}
}

func setPath(m map[string]any, keys []string, value any) error {
	for i, k := range keys {
		if k == "" {
			return errors.New(errors.ErrInvalidInput, "empty key segment")
		}
		if i == len(keys)-1 {
			m[k] = value
			return nil
		}
		next, exists := m[k]
		if !exists {
			child := map[string]any{}
			m[k] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return errors.Newf(errors.ErrInvalidInput, "%s is already set to a non-mapping value", strings.Join(keys[:i+1], "."))
		}
		m = child
	}
	return nil
}
