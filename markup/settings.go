package markup

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Keys understood by every kind.
const (
	SettingSuppressDiagnostics   = "suppress_diagnostics"
	SettingMinimumReportSeverity = "minimum_report_severity"
	SettingWarningStream         = "warning_stream"
)

// Keys shared by several kinds. A kind accepts them only if it declares them.
const (
	SettingMath        = "math"
	SettingMathJaxURL  = "mathjax_url"
	SettingDiagrams    = "diagrams"
	SettingDiagramDir  = "diagram_dir"
	SettingGraphvizDot = "graphviz_dot"
)

// OptionType is the value type of a declared setting.
type OptionType string

const (
	OptionBool   OptionType = "bool"
	OptionInt    OptionType = "int"
	OptionString OptionType = "string"
)

// Option declares one settings key a kind accepts.
type Option struct {
	Name        string     `json:"name" yaml:"name"`
	Type        OptionType `json:"type" yaml:"type"`
	Default     any        `json:"default" yaml:"default"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// CommonOptions returns the declarations every kind carries.
func CommonOptions() []Option {
	return []Option{
		{
			Name:        SettingSuppressDiagnostics,
			Type:        OptionBool,
			Default:     false,
			Description: "drop every inline diagnostic from the body",
		},
		{
			Name:        SettingMinimumReportSeverity,
			Type:        OptionInt,
			Default:     int(SeverityWarning),
			Description: "lowest diagnostic level rendered in the body (0-5, 5 disables)",
		},
		{
			Name:        SettingWarningStream,
			Type:        OptionBool,
			Default:     true,
			Description: "also write diagnostics to the log stream",
		},
	}
}

// MathOptions declares the math toggle and loader URL.
func MathOptions() []Option {
	return []Option{
		{Name: SettingMath, Type: OptionBool, Default: true, Description: "render math markup for MathJax"},
		{Name: SettingMathJaxURL, Type: OptionString, Default: DefaultMathJaxURL, Description: "MathJax loader URL"},
	}
}

// DiagramOptions declares the Graphviz diagram settings.
func DiagramOptions() []Option {
	return []Option{
		{Name: SettingDiagrams, Type: OptionBool, Default: true, Description: "render graphviz diagrams to SVG files"},
		{Name: SettingDiagramDir, Type: OptionString, Default: ".", Description: "directory receiving generated diagram files"},
		{Name: SettingGraphvizDot, Type: OptionString, Default: "dot", Description: "graphviz executable"},
	}
}

// Settings configures one adapter. It is copied at construction and never
// mutated afterwards.
type Settings struct {
	// BasePath names the source document. Relative resource references are
	// resolved against its directory and diagnostics cite it.
	BasePath string `json:"basePath,omitempty" yaml:"base_path,omitempty"`
	// Overrides maps declared keys to values.
	Overrides map[string]any `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	// Logger receives the diagnostic stream. Defaults to the global logger.
	Logger *zerolog.Logger `json:"-" yaml:"-"`
}

// With returns a copy of s with key set to value.
func (s Settings) With(key string, value any) Settings {
	cloned := s.clone()
	if cloned.Overrides == nil {
		cloned.Overrides = map[string]any{}
	}
	cloned.Overrides[key] = value
	return cloned
}

func (s Settings) clone() Settings {
	cloned := s
	if s.Overrides != nil {
		cloned.Overrides = make(map[string]any, len(s.Overrides))
		for key, value := range s.Overrides {
			cloned.Overrides[key] = value
		}
	}
	return cloned
}

func (s Settings) logger() *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return &log.Logger
}

// Bool returns the boolean value stored under key.
func (s Settings) Bool(key string) bool {
	v, _ := s.Overrides[key].(bool)
	return v
}

// Int returns the integer value stored under key.
func (s Settings) Int(key string) int {
	v, _ := s.Overrides[key].(int)
	return v
}

// String returns the string value stored under key.
func (s Settings) String(key string) string {
	v, _ := s.Overrides[key].(string)
	return v
}

// resolve validates s against options and returns a copy holding every
// declared key, defaults filled in and values in canonical types.
func (s Settings) resolve(kind string, options []Option) (Settings, error) {
	declared := make(map[string]Option, len(options))
	for _, opt := range options {
		declared[opt.Name] = opt
	}

	resolved := s.clone()
	resolved.Overrides = make(map[string]any, len(options))
	for _, opt := range options {
		resolved.Overrides[opt.Name] = opt.Default
	}

	for key, raw := range s.Overrides {
		opt, ok := declared[key]
		if !ok {
			return Settings{}, &ConfigError{Kind: kind, Key: key, Err: ErrUnknownSetting}
		}
		value, err := coerce(opt, raw)
		if err != nil {
			return Settings{}, &ConfigError{Kind: kind, Key: key, Err: fmt.Errorf("%w: %v", ErrInvalidSetting, err)}
		}
		resolved.Overrides[key] = value
	}

	if level := resolved.Int(SettingMinimumReportSeverity); level < int(SeverityDebug) || level > int(SeverityNone) {
		return Settings{}, &ConfigError{
			Kind: kind,
			Key:  SettingMinimumReportSeverity,
			Err:  fmt.Errorf("%w: must be between %d and %d, got %d", ErrInvalidSetting, SeverityDebug, SeverityNone, level),
		}
	}

	return resolved, nil
}

func coerce(opt Option, raw any) (any, error) {
	switch opt.Type {
	case OptionBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected bool, got %q", v)
			}
			return b, nil
		}
	case OptionInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int32:
			return int(v), nil
		case int64:
			if v < math.MinInt || v > math.MaxInt {
				return nil, fmt.Errorf("integer %d out of range", v)
			}
			return int(v), nil
		case uint:
			if v > math.MaxInt {
				return nil, fmt.Errorf("integer %d out of range", v)
			}
			return int(v), nil
		case uint64:
			if v > math.MaxInt {
				return nil, fmt.Errorf("integer %d out of range", v)
			}
			return int(v), nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected integer, got %v", v)
			}
			// float64(math.MaxInt) rounds up to 2^63 on 64-bit platforms.
			if v < math.MinInt || v >= -float64(math.MinInt) {
				return nil, fmt.Errorf("integer %v out of range", v)
			}
			return int(v), nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		}
	case OptionString:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	default:
		return nil, fmt.Errorf("option %q has unsupported type %q", opt.Name, opt.Type)
	}
	return nil, fmt.Errorf("expected %s, got %T", opt.Type, raw)
}
