package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"text/template"

	"github.com/mitchellh/copystructure"
	"github.com/spf13/afero"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// Context is the variable context a template is rendered with.
type Context map[string]any

// Well-known context keys injected by the pipeline.
const (
	KeySpecVersion  = "spec_version"
	KeyTargetDevice = "target_device"
)

// Fragment is one rendered Butane document.
type Fragment struct {
	// Template is the path (or built-in name) the fragment came from.
	Template string
	// Index is the fragment's position in the merge order.
	Index int
	// Dir is the directory local file references resolve against.
	Dir  string
	Text []byte
}

// Renderer renders templates read from a filesystem.
type Renderer struct {
	fs afero.Fs
}

// NewRenderer creates a renderer reading templates from fs.
func NewRenderer(fs afero.Fs) *Renderer {
	return &Renderer{fs: fs}
}

// Render renders the template at path with a private copy of ctx.
func (r *Renderer) Render(path string, ctx Context) (Fragment, error) {
	logger := logging.GetLogger("templates").With().Str("template", path).Logger()

	src, err := afero.ReadFile(r.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fragment{}, errors.Wrapf(err, errors.ErrTemplateNotFound, "template %s not found", path).
				WithDetail("template", path).
				WithStage(errors.StageRender)
		}
		return Fragment{}, errors.Wrapf(err, errors.ErrTemplateNotFound, "cannot read template %s", path).
			WithDetail("template", path).
			WithStage(errors.StageRender)
	}

	dir := filepath.Dir(path)
	text, err := r.execute(filepath.Base(path), string(src), dir, ctx)
	if err != nil {
		return Fragment{}, errors.Wrapf(err, errors.ErrTemplateRender, "failed to render %s", path).
			WithDetail("template", path).
			WithStage(errors.StageRender)
	}

	logger.Debug().Int("bytes", len(text)).Msg("Rendered template")
	logger.Trace().Str("fragment", string(text)).Msg("Fragment text")

	return Fragment{Template: path, Dir: dir, Text: text}, nil
}

// RenderString renders inline template text. name is used in diagnostics.
func (r *Renderer) RenderString(name, src string, ctx Context) (Fragment, error) {
	text, err := r.execute(name, src, ".", ctx)
	if err != nil {
		return Fragment{}, errors.Wrapf(err, errors.ErrTemplateRender, "failed to render %s", name).
			WithDetail("template", name).
			WithStage(errors.StageRender)
	}
	return Fragment{Template: name, Dir: ".", Text: text}, nil
}

func (r *Renderer) execute(name, src, dir string, ctx Context) ([]byte, error) {
	data, err := copyContext(ctx)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).
		Funcs(funcMap(r.fs, dir)).
		Option("missingkey=error").
		Parse(src)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// copyContext deep-copies ctx so template functions can never alter the
// caller's variables.
func copyContext(ctx Context) (map[string]any, error) {
	if ctx == nil {
		return map[string]any{}, nil
	}
	c, err := copystructure.Copy(map[string]any(ctx))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInvalidInput, "variable context cannot be copied")
	}
	return c.(map[string]any), nil
}
