package ignition

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/mitchellh/copystructure"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

type mergeKind int

const (
	// mergeOverride: the later value replaces the earlier one.
	mergeOverride mergeKind = iota
	// mergeRecurse: both sides are objects merged key by key under the table.
	mergeRecurse
	// mergeShallow: both sides are objects; later keys replace earlier keys.
	mergeShallow
	// mergeConcat: both sides are lists; items are appended in order.
	mergeConcat
	// mergeIdentical: values must be equal.
	mergeIdentical
)

type policy struct {
	kind mergeKind
	// identity names the field two list items are the same entry by. Items
	// without one are kept once when equal.
	identity string
}

// policies is the per-section merge table. Paths absent from it fall back
// to override, with objects merged shallowly.
var policies = map[string]policy{
	"ignition":                {kind: mergeRecurse},
	"ignition.version":        {kind: mergeIdentical},
	"ignition.config":         {kind: mergeRecurse},
	"ignition.config.merge":   {kind: mergeConcat},
	"ignition.config.replace": {kind: mergeOverride},
	"ignition.security":       {kind: mergeRecurse},
	"ignition.security.tls":   {kind: mergeRecurse},

	"ignition.security.tls.certificateAuthorities": {kind: mergeConcat},

	"ignition.timeouts": {kind: mergeShallow},
	"ignition.proxy":    {kind: mergeShallow},

	"storage":             {kind: mergeRecurse},
	"storage.disks":       {kind: mergeConcat, identity: "device"},
	"storage.raid":        {kind: mergeConcat, identity: "name"},
	"storage.filesystems": {kind: mergeConcat, identity: "device"},
	"storage.files":       {kind: mergeConcat, identity: "path"},
	"storage.directories": {kind: mergeConcat, identity: "path"},
	"storage.links":       {kind: mergeConcat, identity: "path"},
	"storage.luks":        {kind: mergeConcat, identity: "name"},

	"systemd":       {kind: mergeRecurse},
	"systemd.units": {kind: mergeConcat, identity: "name"},

	"passwd":        {kind: mergeRecurse},
	"passwd.users":  {kind: mergeConcat, identity: "name"},
	"passwd.groups": {kind: mergeConcat, identity: "name"},

	"kernelArguments":                {kind: mergeRecurse},
	"kernelArguments.shouldExist":    {kind: mergeConcat},
	"kernelArguments.shouldNotExist": {kind: mergeConcat},
}

func policyFor(path string) (policy, bool) {
	p, ok := policies[path]
	return p, ok
}

// Merge combines docs in order into one document. It never modifies its
// inputs and the same list always yields the same bytes.
func Merge(docs []Document) (Merged, error) {
	logger := logging.GetLogger("ignition.merge")

	if len(docs) == 0 {
		return Merged{}, errors.New(errors.ErrInvalidInput, "nothing to merge").
			WithStage(errors.StageMerge)
	}
	if err := checkVersions(docs); err != nil {
		return Merged{}, err
	}

	out := map[string]any{}
	for _, doc := range docs {
		tree, err := copystructure.Copy(doc.Tree)
		if err != nil {
			return Merged{}, errors.Wrapf(err, errors.ErrInternal, "cannot copy %s", doc.Source).
				WithStage(errors.StageMerge)
		}
		m := &merger{source: doc.Source}
		if err := m.mergeObject(out, tree.(map[string]any), ""); err != nil {
			return Merged{}, err
		}
	}

	raw, err := canonical(out)
	if err != nil {
		return Merged{}, errors.Wrap(err, errors.ErrInternal, "cannot encode merged document").
			WithStage(errors.StageMerge)
	}

	merged := Merged{Document: Document{Source: "merged", Tree: out, Raw: raw}}
	logger.Debug().
		Int("documents", len(docs)).
		Str("version", merged.Version()).
		Str("checksum", merged.Checksum()).
		Msg("Merged documents")
	return merged, nil
}

// checkVersions requires every document to declare the same ignition.version.
func checkVersions(docs []Document) error {
	var first *version.Version
	var firstSource string

	for _, doc := range docs {
		raw := doc.Version()
		if raw == "" {
			return errors.Newf(errors.ErrVersionMismatch, "%s declares no ignition.version", doc.Source).
				WithDetail("source", doc.Source).
				WithStage(errors.StageMerge)
		}
		v, err := version.NewVersion(raw)
		if err != nil {
			return errors.Wrapf(err, errors.ErrVersionMismatch, "%s declares an unparseable ignition.version %q", doc.Source, raw).
				WithDetail("source", doc.Source).
				WithStage(errors.StageMerge)
		}
		if first == nil {
			first, firstSource = v, doc.Source
			continue
		}
		if !v.Equal(first) {
			return errors.Newf(errors.ErrVersionMismatch,
				"%s declares ignition.version %s but %s declares %s", doc.Source, v.Original(), firstSource, first.Original()).
				WithDetails(map[string]interface{}{
					"source":   doc.Source,
					"expected": first.Original(),
					"actual":   v.Original(),
				}).
				WithStage(errors.StageMerge)
		}
	}
	return nil
}

type merger struct {
	source string
}

func (m *merger) conflict(path, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrMergeConflict, "%s: %s: %s", m.source, path, fmt.Sprintf(format, args...)).
		WithDetails(map[string]interface{}{"source": m.source, "path": path}).
		WithStage(errors.StageMerge)
}

func (m *merger) mergeObject(dst, src map[string]any, prefix string) error {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if err := m.mergeValue(dst, k, src[k], path); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) mergeValue(dst map[string]any, key string, value any, path string) error {
	existing, present := dst[key]
	if !present || existing == nil {
		dst[key] = value
		return nil
	}
	if value == nil {
		return nil
	}

	p, declared := policyFor(path)
	if !declared {
		return m.mergeUndeclared(dst, key, existing, value, path)
	}

	switch p.kind {
	case mergeIdentical:
		if !sameValue(existing, value) {
			return m.conflict(path, "%v differs from %v", value, existing)
		}
		return nil

	case mergeOverride:
		dst[key] = value
		return nil

	case mergeRecurse, mergeShallow:
		have, ok1 := existing.(map[string]any)
		add, ok2 := value.(map[string]any)
		if !ok1 || !ok2 {
			return m.conflict(path, "expected objects, found %s and %s", kindOf(existing), kindOf(value))
		}
		if p.kind == mergeRecurse {
			return m.mergeObject(have, add, path)
		}
		for k, v := range add {
			have[k] = v
		}
		return nil

	case mergeConcat:
		have, ok1 := existing.([]any)
		add, ok2 := value.([]any)
		if !ok1 || !ok2 {
			return m.conflict(path, "expected lists, found %s and %s", kindOf(existing), kindOf(value))
		}
		out, err := m.concat(have, add, p.identity, path)
		if err != nil {
			return err
		}
		dst[key] = out
		return nil
	}

	return m.conflict(path, "no merge rule")
}

// mergeUndeclared overrides scalars and merges objects shallowly. Changing a
// section's shape between documents is a conflict.
func (m *merger) mergeUndeclared(dst map[string]any, key string, existing, value any, path string) error {
	if kindOf(existing) != kindOf(value) && (isContainer(existing) || isContainer(value)) {
		return m.conflict(path, "found %s after %s", kindOf(value), kindOf(existing))
	}
	if have, ok := existing.(map[string]any); ok {
		for k, v := range value.(map[string]any) {
			have[k] = v
		}
		return nil
	}
	dst[key] = value
	return nil
}

func (m *merger) concat(have, add []any, identity, path string) ([]any, error) {
	out := have
	for _, item := range add {
		id, keyed := identityOf(item, identity)

		dup := false
		for _, prev := range out {
			if keyed {
				prevID, ok := identityOf(prev, identity)
				if !ok || prevID != id {
					continue
				}
				if !reflect.DeepEqual(prev, item) {
					return nil, m.conflict(path, "%s %q is defined twice with different content", identity, id)
				}
				dup = true
				break
			}
			if reflect.DeepEqual(prev, item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, item)
		}
	}
	return out, nil
}

// sameValue compares version strings by version, everything else deeply.
func sameValue(a, b any) bool {
	as, ok1 := a.(string)
	bs, ok2 := b.(string)
	if ok1 && ok2 {
		av, err1 := version.NewVersion(as)
		bv, err2 := version.NewVersion(bs)
		if err1 == nil && err2 == nil {
			return av.Equal(bv)
		}
	}
	return reflect.DeepEqual(a, b)
}

func identityOf(item any, field string) (string, bool) {
	if field == "" {
		return "", false
	}
	obj, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := obj[field].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64:
		return "number"
	case nil:
		return "null"
	}
	return strings.ToLower(reflect.TypeOf(v).Kind().String())
}
