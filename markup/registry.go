package markup

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Registry holds the known kinds and builds adapters for them.
type Registry struct {
	mu     sync.RWMutex
	kinds  []*Kind
	byName map[string]*Kind
}

// NewRegistry returns a registry containing kinds, in order.
func NewRegistry(kinds ...*Kind) (*Registry, error) {
	r := &Registry{byName: map[string]*Kind{}}
	for _, kind := range kinds {
		if err := r.Register(kind); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds kind. Names and aliases must be unique.
func (r *Registry) Register(kind *Kind) error {
	if kind == nil {
		return fmt.Errorf("%w: nil kind", ErrConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{kind.name}, kind.aliases...)
	for _, key := range keys {
		if _, exists := r.byName[key]; exists {
			return &ConfigError{Kind: kind.name, Err: fmt.Errorf("%w: name %q already registered", ErrDuplicateKind, key)}
		}
	}
	for _, key := range keys {
		r.byName[key] = kind
	}
	r.kinds = append(r.kinds, kind)
	return nil
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []*Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Kind(nil), r.kinds...)
}

// AvailableKinds returns the registered kinds whose converter is usable.
func (r *Registry) AvailableKinds() []*Kind {
	var out []*Kind
	for _, kind := range r.Kinds() {
		if kind.Available() {
			out = append(out, kind)
		}
	}
	return out
}

// Lookup finds a kind by name or alias, ignoring case.
func (r *Registry) Lookup(name string) (*Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return kind, ok
}

// IsAvailable reports whether the named kind exists and its converter is
// usable. It never fails.
func (r *Registry) IsAvailable(name string) bool {
	kind, ok := r.Lookup(name)
	return ok && kind.Available()
}

// ExtensionsFor returns the file extensions of the named kind.
func (r *Registry) ExtensionsFor(name string) []string {
	kind, ok := r.Lookup(name)
	if !ok {
		return nil
	}
	return kind.Extensions()
}

// KindForFilename returns the kind claiming the extension of path. When
// several kinds claim it, an available one wins, then registration order.
func (r *Registry) KindForFilename(path string) (*Kind, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return nil, false
	}

	var fallback *Kind
	for _, kind := range r.Kinds() {
		if !kind.Claims(ext) {
			continue
		}
		if kind.Available() {
			return kind, true
		}
		if fallback == nil {
			fallback = kind
		}
	}
	return fallback, fallback != nil
}

// ForKind returns an adapter for the named kind. It fails with an error
// matching ErrLookup when the kind is unknown or not available.
func (r *Registry) ForKind(name string, settings Settings) (Adapter, error) {
	kind, ok := r.Lookup(name)
	if !ok {
		return nil, &ConfigError{Kind: name, Err: ErrUnknownKind}
	}
	return r.build(kind, settings)
}

// ForFilename infers the kind from the extension of path. An empty
// settings.BasePath defaults to path.
func (r *Registry) ForFilename(path string, settings Settings) (Adapter, error) {
	kind, ok := r.KindForFilename(path)
	if !ok {
		return nil, &ConfigError{Path: path, Err: ErrNoKindForFile}
	}
	if settings.BasePath == "" {
		settings = settings.clone()
		settings.BasePath = path
	}
	return r.build(kind, settings)
}

func (r *Registry) build(kind *Kind, settings Settings) (Adapter, error) {
	if !kind.Available() && !kind.overridesCommand(settings) {
		return nil, &ConfigError{Kind: kind.name, Err: ErrKindUnavailable}
	}
	return kind.New(settings)
}
