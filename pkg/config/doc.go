// Package config handles configuration management for fcosinstall.
// It layers embedded defaults, an optional user config file (TOML or YAML),
// FCOSINSTALL_* environment variables and command-line overrides with koanf.
package config
