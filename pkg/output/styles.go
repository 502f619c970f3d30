package output

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var defaultStyles []byte

// ColorDef is an adaptive color.
type ColorDef struct {
	Light string `yaml:"light"`
	Dark  string `yaml:"dark"`
}

// StyleDef describes one named style.
type StyleDef struct {
	Bold        bool   `yaml:"bold,omitempty"`
	Italic      bool   `yaml:"italic,omitempty"`
	Foreground  string `yaml:"foreground,omitempty"`
	Background  string `yaml:"background,omitempty"`
	Width       int    `yaml:"width,omitempty"`
	PaddingLeft int    `yaml:"paddingLeft,omitempty"`
}

// StyleConfig is the styles.yaml document.
type StyleConfig struct {
	Colors map[string]ColorDef `yaml:"colors"`
	Styles map[string]StyleDef `yaml:"styles"`
}

// Styles maps semantic names to lipgloss styles bound to one renderer.
type Styles map[string]lipgloss.Style

// ParseStyles decodes a styles document.
func ParseStyles(data []byte) (StyleConfig, error) {
	var cfg StyleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StyleConfig{}, fmt.Errorf("failed to parse styles: %w", err)
	}
	return cfg, nil
}

// LoadStylesFromFile reads a styles document overriding the built-in one.
func LoadStylesFromFile(path string) (StyleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StyleConfig{}, fmt.Errorf("failed to read styles file %s: %w", path, err)
	}
	return ParseStyles(data)
}

// DefaultStyles returns the built-in styles document.
func DefaultStyles() StyleConfig {
	cfg, err := ParseStyles(defaultStyles)
	if err != nil {
		panic(fmt.Sprintf("embedded styles are invalid: %v", err))
	}
	return cfg
}

// Build binds cfg to r.
func (cfg StyleConfig) Build(r *lipgloss.Renderer) Styles {
	colors := make(map[string]lipgloss.AdaptiveColor, len(cfg.Colors))
	for name, def := range cfg.Colors {
		colors[name] = lipgloss.AdaptiveColor{Light: def.Light, Dark: def.Dark}
	}

	out := make(Styles, len(cfg.Styles))
	for name, def := range cfg.Styles {
		style := r.NewStyle()
		if def.Bold {
			style = style.Bold(true)
		}
		if def.Italic {
			style = style.Italic(true)
		}
		if c, ok := colors[def.Foreground]; ok {
			style = style.Foreground(c)
		}
		if c, ok := colors[def.Background]; ok {
			style = style.Background(c)
		}
		if def.Width > 0 {
			style = style.Width(def.Width)
		}
		if def.PaddingLeft > 0 {
			style = style.PaddingLeft(def.PaddingLeft)
		}
		out[name] = style
	}
	return out
}

// Get returns the named style, or an empty one.
func (s Styles) Get(name string) lipgloss.Style {
	if style, ok := s[name]; ok {
		return style
	}
	return lipgloss.NewStyle()
}
