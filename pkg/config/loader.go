package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/logging"
)

// EnvPrefix is the prefix of environment variables mapped onto config keys.
// FCOSINSTALL_REMOTE_HOST maps to remote.host.
const EnvPrefix = "FCOSINSTALL_"

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. It must exist when set.
	File string

	// DefaultFile is read when File is empty and the file exists.
	DefaultFile string

	// Overrides are flat dotted keys (remote.host) applied last.
	Overrides map[string]interface{}

	// SkipEnv ignores FCOSINSTALL_* environment variables.
	SkipEnv bool
}

// Load merges embedded defaults, the config file, environment variables and
// overrides, in that order, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	logger := logging.GetLogger("config")
	k := koanf.New(".")

	// 1. Load system defaults
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to load defaults")
	}

	// 2. Load config file
	configPath := opts.File
	if configPath == "" && opts.DefaultFile != "" {
		if _, err := os.Stat(opts.DefaultFile); err == nil {
			configPath = opts.DefaultFile
		}
	} else if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "config file %s", configPath)
		}
	}
	if configPath != "" {
		parser, err := parserFor(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(configPath), parser); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", configPath)
		}
		logger.Debug().Str("path", configPath).Msg("Loaded config file")
	}

	// 3. Load env vars
	if !opts.SkipEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
		}
	}

	// 4. Apply overrides
	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValid, "configuration rejected")
	}

	return &cfg, nil
}

// Default returns the embedded defaults without consulting files or env.
func Default() *Config {
	cfg, err := Load(LoadOptions{SkipEnv: true})
	if err != nil {
		panic(err)
	}
	return cfg
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, errors.Newf(errors.ErrConfigLoad, "unsupported config file type %q", filepath.Ext(path))
	}
}

// envKey maps FCOSINSTALL_REMOTE_IDENTITY_FILE to remote.identity_file: the
// first underscore separates the section, the rest stay in the key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}
