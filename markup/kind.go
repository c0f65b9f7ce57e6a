package markup

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Constructor builds an adapter from resolved settings: every declared key
// is present and typed.
type Constructor func(settings Settings) (Adapter, error)

// KindSpec describes a kind to NewKind.
type KindSpec struct {
	Name                string
	DisplayName         string
	Aliases             []string
	Extensions          []string
	HomePage            string
	SyntaxDocumentation string
	// Options lists the kind specific keys; CommonOptions are always added.
	Options []Option
	// Probe reports whether the converter can be used. It runs at most once.
	Probe func() bool
	New   Constructor
	// ThreadSafe declares that one adapter may serve concurrent calls.
	ThreadSafe bool
	// CommandSetting names the option that selects the converter program.
	// When settings set it, the constructor checks that program and the
	// default probe is not consulted.
	CommandSetting string
}

// Kind is the capability descriptor of one markup language.
type Kind struct {
	name                string
	displayName         string
	aliases             []string
	extensions          []string
	homePage            string
	syntaxDocumentation string
	options             []Option
	construct           Constructor
	threadSafe          bool
	commandSetting      string
	available           func() bool
}

// NewKind validates spec and returns an immutable Kind.
func NewKind(spec KindSpec) (*Kind, error) {
	name := strings.ToLower(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, fmt.Errorf("%w: kind name must be non-empty", ErrConfiguration)
	}
	if spec.New == nil {
		return nil, fmt.Errorf("%w: kind %q has no constructor", ErrConfiguration, name)
	}

	options := CommonOptions()
	seen := make(map[string]struct{}, len(options)+len(spec.Options))
	for _, opt := range options {
		seen[opt.Name] = struct{}{}
	}
	for _, opt := range spec.Options {
		if strings.TrimSpace(opt.Name) == "" {
			return nil, fmt.Errorf("%w: kind %q declares an option without name", ErrConfiguration, name)
		}
		if _, dup := seen[opt.Name]; dup {
			return nil, fmt.Errorf("%w: kind %q declares option %q twice", ErrConfiguration, name, opt.Name)
		}
		if _, err := coerce(opt, opt.Default); err != nil {
			return nil, fmt.Errorf("%w: kind %q option %q default: %v", ErrConfiguration, name, opt.Name, err)
		}
		seen[opt.Name] = struct{}{}
		options = append(options, opt)
	}

	extensions := make([]string, 0, len(spec.Extensions))
	for _, ext := range spec.Extensions {
		extensions = append(extensions, normalizeExtension(ext))
	}

	aliases := make([]string, 0, len(spec.Aliases))
	for _, alias := range spec.Aliases {
		aliases = append(aliases, strings.ToLower(strings.TrimSpace(alias)))
	}

	displayName := spec.DisplayName
	if displayName == "" {
		displayName = spec.Name
	}

	if spec.CommandSetting != "" {
		if _, ok := seen[spec.CommandSetting]; !ok {
			return nil, fmt.Errorf("%w: kind %q command setting %q is not declared", ErrConfiguration, name, spec.CommandSetting)
		}
	}

	probe := spec.Probe
	if probe == nil {
		probe = func() bool { return true }
	}

	return &Kind{
		name:                name,
		displayName:         displayName,
		aliases:             aliases,
		extensions:          extensions,
		homePage:            spec.HomePage,
		syntaxDocumentation: spec.SyntaxDocumentation,
		options:             options,
		construct:           spec.New,
		threadSafe:          spec.ThreadSafe,
		commandSetting:      spec.CommandSetting,
		available:           sync.OnceValue(safeProbe(probe)),
	}, nil
}

// MustKind is NewKind for package level declarations.
func MustKind(spec KindSpec) *Kind {
	kind, err := NewKind(spec)
	if err != nil {
		panic(err)
	}
	return kind
}

func safeProbe(probe func() bool) func() bool {
	return func() (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		return probe()
	}
}

func (k *Kind) Name() string                { return k.name }
func (k *Kind) DisplayName() string         { return k.displayName }
func (k *Kind) HomePage() string            { return k.homePage }
func (k *Kind) SyntaxDocumentation() string { return k.syntaxDocumentation }
func (k *Kind) ThreadSafe() bool            { return k.threadSafe }

func (k *Kind) Aliases() []string    { return append([]string(nil), k.aliases...) }
func (k *Kind) Extensions() []string { return append([]string(nil), k.extensions...) }
func (k *Kind) Options() []Option    { return append([]Option(nil), k.options...) }

// Option returns the declaration of name.
func (k *Kind) Option(name string) (Option, bool) {
	for _, opt := range k.options {
		if opt.Name == name {
			return opt, true
		}
	}
	return Option{}, false
}

// Available reports whether the converter can be used. The probe runs once
// per process; later calls return the cached answer.
func (k *Kind) Available() bool { return k.available() }

// overridesCommand reports whether settings name a converter program other
// than the declared default.
func (k *Kind) overridesCommand(settings Settings) bool {
	opt, ok := k.Option(k.commandSetting)
	if !ok {
		return false
	}
	name, ok := settings.Overrides[k.commandSetting].(string)
	name = strings.TrimSpace(name)
	return ok && name != "" && name != opt.Default
}

// Claims reports whether ext (with or without the leading dot) belongs to k.
func (k *Kind) Claims(ext string) bool {
	ext = normalizeExtension(ext)
	for _, candidate := range k.extensions {
		if candidate == ext {
			return true
		}
	}
	return false
}

// Validate checks settings against the declared options.
func (k *Kind) Validate(settings Settings) error {
	_, err := settings.resolve(k.name, k.options)
	return err
}

// New validates settings and builds an adapter. It does not probe
// availability; use Registry.ForKind for the checked path.
func (k *Kind) New(settings Settings) (Adapter, error) {
	resolved, err := settings.resolve(k.name, k.options)
	if err != nil {
		return nil, err
	}
	adapter, err := k.construct(resolved)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &ConfigError{Kind: k.name, Err: err}
	}
	if !k.threadSafe {
		return &serialized{inner: adapter}, nil
	}
	return adapter, nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
