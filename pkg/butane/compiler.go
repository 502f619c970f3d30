// Package butane compiles rendered Butane fragments into Ignition documents
// by running the butane binary in strict mode.
package butane

import (
	"context"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kudato/fcosinstall/pkg/command"
	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/ignition"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/templates"
)

// Variant is the only Butane variant fcosinstall compiles.
const Variant = "fcos"

// Compiler runs butane.
type Compiler struct {
	runner  command.Runner
	tool    string
	timeout time.Duration
	// filesDir overrides the fragment directory for --files-dir.
	filesDir string
	logger   zerolog.Logger
}

// NewCompiler creates a compiler invoking tool through runner. An empty
// filesDir resolves local file references next to each template.
func NewCompiler(runner command.Runner, tool string, timeout time.Duration, filesDir string) *Compiler {
	return &Compiler{
		runner:   runner,
		tool:     tool,
		timeout:  timeout,
		filesDir: filesDir,
		logger:   logging.GetLogger("butane"),
	}
}

type header struct {
	Variant string `yaml:"variant"`
	Version string `yaml:"version"`
}

// ParseSpecVersion checks that v is a usable Butane spec version.
func ParseSpecVersion(v string) (*version.Version, error) {
	if v == "" {
		return nil, errors.New(errors.ErrInvalidInput, "spec version is required").
			WithStage(errors.StageInput)
	}
	parsed, err := version.NewSemver(v)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "spec version %q is not a semantic version", v).
			WithStage(errors.StageInput)
	}
	return parsed, nil
}

// CheckHeader requires the fragment to declare variant fcos and exactly
// specVersion, so every fragment of a run targets the same spec.
func CheckHeader(frag templates.Fragment, specVersion string) error {
	want, err := ParseSpecVersion(specVersion)
	if err != nil {
		return err
	}

	var h header
	if err := yaml.Unmarshal(frag.Text, &h); err != nil {
		return errors.Wrapf(err, errors.ErrCompile, "%s is not valid YAML", frag.Template).
			WithDetail("template", frag.Template).
			WithStage(errors.StageCompile)
	}
	if h.Variant != Variant {
		return errors.Newf(errors.ErrCompile, "%s declares variant %q, expected %q", frag.Template, h.Variant, Variant).
			WithDetail("template", frag.Template).
			WithStage(errors.StageCompile)
	}

	got, err := version.NewSemver(h.Version)
	if err != nil || !got.Equal(want) {
		return errors.Newf(errors.ErrVersionMismatch, "%s declares spec version %q, this run targets %s", frag.Template, h.Version, specVersion).
			WithDetails(map[string]interface{}{
				"template": frag.Template,
				"expected": specVersion,
				"actual":   h.Version,
			}).
			WithStage(errors.StageCompile)
	}
	return nil
}

// Compile turns frag into an Ignition document. Compiler diagnostics are
// returned verbatim; nothing is retried.
func (c *Compiler) Compile(ctx context.Context, frag templates.Fragment, specVersion string) (ignition.Document, error) {
	if err := CheckHeader(frag, specVersion); err != nil {
		return ignition.Document{}, err
	}

	filesDir := c.filesDir
	if filesDir == "" {
		filesDir = frag.Dir
	}
	args := []string{"--strict"}
	if filesDir != "" {
		args = append(args, "--files-dir", filesDir)
	}

	out, err := c.runner.Run(ctx, command.Invocation{
		Name:    c.tool,
		Args:    args,
		Stdin:   frag.Text,
		Timeout: c.timeout,
	})
	if err != nil {
		return ignition.Document{}, command.StageError(err, errors.StageCompile, c.tool)
	}
	if !out.Success() {
		return ignition.Document{}, command.Failure(errors.ErrCompile, errors.StageCompile, c.tool, out.ExitCode, out.Stdout, out.Stderr).
			WithDetail("template", frag.Template)
	}

	doc, err := ignition.Parse(frag.Template, out.Stdout)
	if err != nil {
		return ignition.Document{}, errors.Wrapf(err, errors.ErrCompile, "%s produced unusable output", c.tool).
			WithStage(errors.StageCompile)
	}

	c.logger.Debug().
		Str("template", frag.Template).
		Str("ignition_version", doc.Version()).
		Int("bytes", len(doc.Raw)).
		Msg("Compiled fragment")
	return doc, nil
}
