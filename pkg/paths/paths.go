package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/kudato/fcosinstall/pkg/errors"
)

// Environment variable names
const (
	EnvConfigDir = "FCOSINSTALL_CONFIG_DIR"
	EnvCacheDir  = "FCOSINSTALL_CACHE_DIR"
	EnvStateDir  = "FCOSINSTALL_STATE_DIR"
)

// Default directories and files
const (
	// AppDirName is the directory name used under every XDG base directory
	AppDirName = "fcosinstall"

	// ConfigFileName is the name of the user configuration file
	ConfigFileName = "config.toml"

	// WorkDirName is the cache subdirectory holding per-run workspaces
	WorkDirName = "work"

	// LogFileName is the name of the log file
	LogFileName = "fcosinstall.log"
)

// Paths provides centralized path management for fcosinstall
type Paths interface {
	ConfigDir() string
	CacheDir() string
	StateDir() string
	ConfigFile() string
	WorkDir() string
	LogFilePath() string
}

type paths struct {
	config string
	cache  string
	state  string
}

// New creates a new Paths instance, honouring the environment overrides.
func New() (Paths, error) {
	p := &paths{}

	if dir := os.Getenv(EnvConfigDir); dir != "" {
		p.config = expandHome(dir)
	} else {
		p.config = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	if dir := os.Getenv(EnvCacheDir); dir != "" {
		p.cache = expandHome(dir)
	} else {
		p.cache = filepath.Join(xdg.CacheHome, AppDirName)
	}

	if dir := os.Getenv(EnvStateDir); dir != "" {
		p.state = expandHome(dir)
	} else {
		p.state = filepath.Join(xdg.StateHome, AppDirName)
	}

	for _, dir := range []*string{&p.config, &p.cache, &p.state} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to resolve %s", *dir)
		}
		*dir = abs
	}

	return p, nil
}

func (p *paths) ConfigDir() string { return p.config }
func (p *paths) CacheDir() string  { return p.cache }
func (p *paths) StateDir() string  { return p.state }

func (p *paths) ConfigFile() string {
	return filepath.Join(p.config, ConfigFileName)
}

func (p *paths) WorkDir() string {
	return filepath.Join(p.cache, WorkDirName)
}

func (p *paths) LogFilePath() string {
	return filepath.Join(p.state, LogFileName)
}

// expandHome expands a leading ~ to the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
