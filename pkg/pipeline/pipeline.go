// Package pipeline turns an ordered template list into one merged Ignition
// document: render, compile and validate every fragment, then merge.
//
// Fragments are processed in parallel up to a worker limit. Results are
// stored by position, so the merge always sees documents in template order
// whatever order the workers finish in. The first failure cancels the
// remaining work and nothing is merged.
package pipeline

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/ignition"
	"github.com/kudato/fcosinstall/pkg/logging"
	"github.com/kudato/fcosinstall/pkg/templates"
)

// Renderer renders templates.
type Renderer interface {
	Render(path string, ctx templates.Context) (templates.Fragment, error)
	RenderMarker(ctx templates.Context) (templates.Fragment, error)
}

// Compiler compiles one fragment.
type Compiler interface {
	Compile(ctx context.Context, frag templates.Fragment, specVersion string) (ignition.Document, error)
}

// Validator validates one document.
type Validator interface {
	Validate(ctx context.Context, doc ignition.Document) error
}

// Plan is the input of one build.
type Plan struct {
	SpecVersion  string
	TargetDevice string
	Templates    []string
	Vars         templates.Context

	// MarkerJSON, when set, is embedded into the installed system at
	// MarkerPath by a final built-in fragment.
	MarkerJSON []byte
	MarkerPath string
}

// Build is the output of a successful build.
type Build struct {
	Fragments []templates.Fragment
	Documents []ignition.Document
	Merged    ignition.Merged
}

// Options tune a Builder.
type Options struct {
	Workers int
	// ValidateMerged runs the validator once more on the merged document.
	ValidateMerged bool
}

// Builder runs the local half of an installation.
type Builder struct {
	renderer  Renderer
	compiler  Compiler
	validator Validator
	opts      Options
	logger    zerolog.Logger
}

// NewBuilder wires the three stages together.
func NewBuilder(r Renderer, c Compiler, v Validator, opts Options) *Builder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Builder{
		renderer:  r,
		compiler:  c,
		validator: v,
		opts:      opts,
		logger:    logging.GetLogger("pipeline"),
	}
}

// Build renders, compiles and validates every fragment of plan and merges
// the results in template order.
func (b *Builder) Build(ctx context.Context, plan Plan) (Build, error) {
	done := logging.LogOperationStart(b.logger, "build")
	defer done()

	if len(plan.Templates) == 0 && plan.MarkerJSON == nil {
		return Build{}, errors.New(errors.ErrInvalidInput, "no templates to build").
			WithStage(errors.StageInput)
	}

	vars := b.context(plan)
	n := len(plan.Templates)
	total := n
	if plan.MarkerJSON != nil {
		total++
	}

	fragments := make([]templates.Fragment, total)
	docs := make([]ignition.Document, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	for i := 0; i < total; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return errors.Wrap(err, errors.ErrCancelled, "build cancelled").WithStage(errors.StageRender)
			}

			var frag templates.Fragment
			var err error
			if i < n {
				frag, err = b.renderer.Render(plan.Templates[i], vars)
			} else {
				frag, err = b.renderer.RenderMarker(markerContext(vars, plan))
			}
			if err != nil {
				return err
			}
			frag.Index = i

			doc, err := b.compiler.Compile(gctx, frag, plan.SpecVersion)
			if err != nil {
				return err
			}
			if err := b.validator.Validate(gctx, doc); err != nil {
				return err
			}

			b.logger.Debug().
				Str("template", frag.Template).
				Int("index", i).
				Msg("Fragment ready")
			fragments[i] = frag
			docs[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.Error().Err(err).Str("stage", errors.Stage(err)).Msg("Build failed")
		return Build{}, err
	}

	merged, err := ignition.Merge(docs)
	if err != nil {
		return Build{}, err
	}

	if b.opts.ValidateMerged {
		if err := b.validator.Validate(ctx, merged.Document); err != nil {
			return Build{}, err
		}
	}

	b.logger.Info().
		Int("fragments", total).
		Str("checksum", merged.Checksum()).
		Msg("Built merged document")
	return Build{Fragments: fragments, Documents: docs, Merged: merged}, nil
}

func (b *Builder) context(plan Plan) templates.Context {
	out := make(templates.Context, len(plan.Vars)+2)
	for k, v := range plan.Vars {
		out[k] = v
	}
	out[templates.KeySpecVersion] = plan.SpecVersion
	out[templates.KeyTargetDevice] = plan.TargetDevice
	return out
}

func markerContext(vars templates.Context, plan Plan) templates.Context {
	out := make(templates.Context, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	out[templates.KeyMarkerPath] = plan.MarkerPath
	out[templates.KeyMarkerJSON] = string(plan.MarkerJSON)
	return out
}
