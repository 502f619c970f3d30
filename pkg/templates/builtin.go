package templates

import (
	_ "embed"
)

//go:embed embedded/marker.bu.tmpl
var markerTemplate string

// MarkerTemplateName identifies the built-in marker fragment in diagnostics.
const MarkerTemplateName = "builtin:marker.bu"

// Keys read by the marker fragment.
const (
	KeyMarkerPath = "marker_path"
	KeyMarkerJSON = "marker_json"
)

// RenderMarker renders the built-in fragment that writes the installation
// marker into the installed system. ctx must carry spec_version, marker_path
// and marker_json.
func (r *Renderer) RenderMarker(ctx Context) (Fragment, error) {
	return r.RenderString(MarkerTemplateName, markerTemplate, ctx)
}
