package config

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

// Config is the fully merged fcosinstall configuration.
type Config struct {
	Tools    Tools    `koanf:"tools"`
	Timeouts Timeouts `koanf:"timeouts"`
	Pipeline Pipeline `koanf:"pipeline"`
	Remote   Remote   `koanf:"remote"`
	Marker   Marker   `koanf:"marker"`
}

// Tools names the external executables.
type Tools struct {
	Butane           string `koanf:"butane"`
	IgnitionValidate string `koanf:"ignition_validate"`
	Installer        string `koanf:"installer"`
}

// Timeouts bounds every blocking stage.
type Timeouts struct {
	Compile  time.Duration `koanf:"compile"`
	Validate time.Duration `koanf:"validate"`
	Connect  time.Duration `koanf:"connect"`
	Transfer time.Duration `koanf:"transfer"`
	Install  time.Duration `koanf:"install"`
	Marker   time.Duration `koanf:"marker"`
}

// Pipeline controls the local render/compile/validate/merge build.
type Pipeline struct {
	Workers        int    `koanf:"workers"`
	ValidateMerged bool   `koanf:"validate_merged"`
	EmbedMarker    bool   `koanf:"embed_marker"`
	FilesDir       string `koanf:"files_dir"`
}

// Remote describes how to reach the target host and where files go there.
type Remote struct {
	Transport             string `koanf:"transport"`
	Host                  string `koanf:"host"`
	Port                  int    `koanf:"port"`
	User                  string `koanf:"user"`
	IdentityFile          string `koanf:"identity_file"`
	Password              string `koanf:"password"`
	KnownHosts            string `koanf:"known_hosts"`
	InsecureIgnoreHostKey bool   `koanf:"insecure_ignore_host_key"`
	Become                bool   `koanf:"become"`
	BecomeCommand         string `koanf:"become_command"`
	DocumentPath          string `koanf:"document_path"`
	VerifyTransfer        bool   `koanf:"verify_transfer"`
}

// Marker locates the installation marker on the target host.
type Marker struct {
	Path string `koanf:"path"`
}

// Transport names
const (
	TransportSSH   = "ssh"
	TransportLocal = "local"
)

// Validate checks the configuration for values no run could succeed with.
func (c *Config) Validate() error {
	var problems []string

	for name, v := range map[string]string{
		"tools.butane":            c.Tools.Butane,
		"tools.ignition_validate": c.Tools.IgnitionValidate,
		"tools.installer":         c.Tools.Installer,
	} {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, name+" must not be empty")
		}
	}

	for name, d := range map[string]time.Duration{
		"timeouts.compile":  c.Timeouts.Compile,
		"timeouts.validate": c.Timeouts.Validate,
		"timeouts.connect":  c.Timeouts.Connect,
		"timeouts.transfer": c.Timeouts.Transfer,
		"timeouts.install":  c.Timeouts.Install,
		"timeouts.marker":   c.Timeouts.Marker,
	} {
		if d <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}

	if c.Pipeline.Workers < 1 {
		problems = append(problems, "pipeline.workers must be at least 1")
	}

	switch c.Remote.Transport {
	case TransportSSH:
		if c.Remote.Port < 1 || c.Remote.Port > 65535 {
			problems = append(problems, fmt.Sprintf("remote.port %d is out of range", c.Remote.Port))
		}
	case TransportLocal:
	default:
		problems = append(problems, fmt.Sprintf("remote.transport %q is not one of ssh, local", c.Remote.Transport))
	}

	if c.Remote.Become && strings.TrimSpace(c.Remote.BecomeCommand) == "" {
		problems = append(problems, "remote.become_command must be set when remote.become is true")
	}
	if !path.IsAbs(c.Remote.DocumentPath) {
		problems = append(problems, "remote.document_path must be absolute")
	}
	if !path.IsAbs(c.Marker.Path) {
		problems = append(problems, "marker.path must be absolute")
	}

	if len(problems) > 0 {
		// map iteration order is random; keep messages stable
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
