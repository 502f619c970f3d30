// Package orchestrator drives one installation run:
//
//	Build -> CheckMarker -> {Skip | Proceed} -> Transfer -> Install -> WriteMarker -> Done
//
// with Failed reachable from every step. The whole local build (render,
// compile, validate, merge) completes before the target is contacted, so
// any build error leaves the host untouched. The installer is run exactly
// once: a failed install is reported for manual inspection, never retried.
// Once the installer has started it runs to completion even if the caller
// cancels; the cancellation is reported as a warning.
package orchestrator
