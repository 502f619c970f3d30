package orchestrator

import (
	"time"

	"github.com/kudato/fcosinstall/pkg/config"
	"github.com/kudato/fcosinstall/pkg/datastore"
)

// State is a step of the installation state machine.
type State string

const (
	StateBuild       State = "build"
	StateCheckMarker State = "check_marker"
	StateSkip        State = "skip"
	StateProceed     State = "proceed"
	StateTransfer    State = "transfer"
	StateInstall     State = "install"
	StateWriteMarker State = "write_marker"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Request holds the inputs of one run.
type Request struct {
	SpecVersion  string
	TargetDevice string
	Templates    []string
	Force        bool
	// Check reports what would happen without touching the target.
	Check bool
	Vars  map[string]any
}

// Result reports the outcome of a run.
type Result struct {
	Changed  bool
	Msg      string
	State    State
	Warnings []string
	// Transitions lists every state entered, in order.
	Transitions []State

	Fingerprint      string
	DocumentChecksum string
	Document         []byte
	// Marker is the marker found on the target, if one was read.
	Marker *datastore.Marker
	// ManualIntervention is set when the target disk may be partially written.
	ManualIntervention bool
}

// Options configure the remote half of a run.
type Options struct {
	DocumentPath   string
	MarkerPath     string
	Installer      string
	Become         bool
	VerifyTransfer bool
	EmbedMarker    bool

	TransferTimeout time.Duration
	InstallTimeout  time.Duration
	MarkerTimeout   time.Duration
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DocumentPath:    cfg.Remote.DocumentPath,
		MarkerPath:      cfg.Marker.Path,
		Installer:       cfg.Tools.Installer,
		Become:          cfg.Remote.Become,
		VerifyTransfer:  cfg.Remote.VerifyTransfer,
		EmbedMarker:     cfg.Pipeline.EmbedMarker,
		TransferTimeout: cfg.Timeouts.Transfer,
		InstallTimeout:  cfg.Timeouts.Install,
		MarkerTimeout:   cfg.Timeouts.Marker,
	}
}
