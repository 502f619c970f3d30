// Package output writes run results for people and for machines.
//
// Three formats are supported. Terminal output is styled with lipgloss
// styles loaded from styles.yaml, uses pterm badges and tables and renders
// the check-mode plan as markdown through glamour. Text output carries the
// same information without escape codes. JSON output is a single record
// with the changed, msg, warnings and fingerprint fields.
package output
