// Package ignition holds compiled Ignition documents, validates them with
// ignition-validate and merges them into the single document handed to the
// installer.
//
// Merging is driven by a declared policy table keyed by dotted section path
// rather than by the shape of the data. See policies in merge.go.
package ignition
