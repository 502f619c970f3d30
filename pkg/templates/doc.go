// Package templates renders Butane fragment templates.
//
// Templates use Go text/template syntax with the sprig function library and
// a handful of helpers for embedding file content in Butane documents:
//
//	b64encode  base64 of a string
//	b64file    base64 of a file, relative to the template's directory
//	dataURL    a "data:;base64,..." URL suitable for contents.source
//	toYaml     YAML encoding of a value
//	fromYaml   YAML decoding of a string
//
// Unknown variables are an error. Optional variables are read with sprig's
// get, hasKey or default on a value that exists:
//
//	{{ if hasKey . "ssh_keys" }}...{{ end }}
//	{{ get . "hostname" | default "fcos" }}
//
// Rendering is pure: templates are only read, never written, and the
// variable context is copied before each render.
package templates
