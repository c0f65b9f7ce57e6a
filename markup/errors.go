package markup

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every error this package returns.
	ErrConfiguration = errors.New("markup configuration error")

	// ErrLookup indicates that no usable kind matched a name or file.
	ErrLookup = errors.New("markup lookup failed")

	ErrUnknownKind     = fmt.Errorf("%w: unknown markup kind", ErrLookup)
	ErrKindUnavailable = fmt.Errorf("%w: markup kind not available", ErrLookup)
	ErrNoKindForFile   = fmt.Errorf("%w: no markup kind for file", ErrLookup)

	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
	ErrDuplicateKind  = errors.New("duplicate markup kind")
)

// ConfigError reports a problem detected while selecting or constructing an
// adapter. It never describes the converted text.
type ConfigError struct {
	Kind string
	Key  string
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("markup %q: setting %q: %v", e.Kind, e.Key, e.Err)
	case e.Path != "":
		return fmt.Sprintf("markup for %q: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("markup %q: %v", e.Kind, e.Err)
	}
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfiguration, e.Err}
}
