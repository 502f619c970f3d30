// Package testutil provides fakes for the external collaborators of an
// installation run.
//
// Key components:
//   - FakeRunner: scripted local tool runner, with ButaneHandler and
//     ValidateHandler emulating the real binaries well enough for pipeline
//     tests
//   - FakeExecutor: in-memory target host recording every remote call
//   - Doc / Fragment helpers: inline fixture builders
//
// Tests never invoke real butane, ignition-validate or coreos-installer.
package testutil
