// Package paths provides centralized path handling for fcosinstall.
//
// It implements the XDG Base Directory specification for the few local
// locations the tool needs:
//
//   - Config: $XDG_CONFIG_HOME/fcosinstall (config.toml)
//   - Cache: $XDG_CACHE_HOME/fcosinstall (per-run work directories)
//   - State: $XDG_STATE_HOME/fcosinstall (log file)
//
// # Environment Variables
//
//   - FCOSINSTALL_CONFIG_DIR: Override the config directory
//   - FCOSINSTALL_CACHE_DIR: Override the cache directory
//   - FCOSINSTALL_STATE_DIR: Override the state directory
//
// Nothing here describes the target host; remote locations live in
// pkg/config.
package paths
