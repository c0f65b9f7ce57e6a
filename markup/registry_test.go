package markup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKind(t testing.TB, name string, available bool, exts ...string) *Kind {
	t.Helper()

	kind, err := NewKind(KindSpec{
		Name:       name,
		Extensions: exts,
		Options: []Option{
			{Name: "flavor", Type: OptionString, Default: "plain"},
		},
		Probe: func() bool { return available },
		New: func(settings Settings) (Adapter, error) {
			flavor := settings.String("flavor")
			return AdapterFunc(func(_ context.Context, text string) Document {
				return NewDocument(DocumentParts{Body: flavor + ":" + text, Stylesheet: "p {}"})
			}), nil
		},
		ThreadSafe: true,
	})
	require.NoError(t, err)
	return kind
}

func TestRegistryForKind(t *testing.T) {
	reg, err := NewRegistry(newTestKind(t, "Plain", true, ".txt"))
	require.NoError(t, err)

	adapter, err := reg.ForKind("plain", Settings{Overrides: map[string]any{"flavor": "spicy"}})
	require.NoError(t, err)

	doc := adapter.Convert(context.Background(), "hi")
	assert.Equal(t, "spicy:hi", doc.Body())
}

func TestRegistryForKindUnknown(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	adapter, err := reg.ForKind("nope", Settings{})
	require.Error(t, err)
	assert.Nil(t, adapter)
	assert.ErrorIs(t, err, ErrLookup)
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestRegistryForKindUnavailableNeverReturnsAdapter(t *testing.T) {
	reg, err := NewRegistry(newTestKind(t, "ghost", false, ".ghost"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		adapter, err := reg.ForKind("ghost", Settings{})
		require.Error(t, err)
		assert.Nil(t, adapter)
		assert.ErrorIs(t, err, ErrLookup)
		assert.ErrorIs(t, err, ErrKindUnavailable)
	}
	assert.False(t, reg.IsAvailable("ghost"))
}

func TestRegistryForKindCommandOverrideSkipsDefaultProbe(t *testing.T) {
	kind, err := NewKind(KindSpec{
		Name: "tool",
		Options: []Option{
			{Name: "tool_command", Type: OptionString, Default: "tool"},
		},
		CommandSetting: "tool_command",
		Probe:          func() bool { return false },
		New: func(settings Settings) (Adapter, error) {
			binary := settings.String("tool_command")
			return AdapterFunc(func(_ context.Context, text string) Document {
				return NewDocument(DocumentParts{Body: binary + ":" + text, Stylesheet: "p {}"})
			}), nil
		},
		ThreadSafe: true,
	})
	require.NoError(t, err)
	reg, err := NewRegistry(kind)
	require.NoError(t, err)

	adapter, err := reg.ForKind("tool", Settings{Overrides: map[string]any{"tool_command": "/opt/tool"}})
	require.NoError(t, err)
	assert.Equal(t, "/opt/tool:hi", adapter.Convert(context.Background(), "hi").Body())

	for _, overrides := range []map[string]any{nil, {"tool_command": "tool"}, {"tool_command": "  "}} {
		_, err := reg.ForKind("tool", Settings{Overrides: overrides})
		assert.ErrorIs(t, err, ErrKindUnavailable, "%v", overrides)
	}
}

func TestRegistryForKindRejectsUnknownSetting(t *testing.T) {
	reg, err := NewRegistry(newTestKind(t, "plain", true, ".txt"))
	require.NoError(t, err)

	_, err = reg.ForKind("plain", Settings{Overrides: map[string]any{"colour": "red"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownSetting)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrLookup)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "colour", cfgErr.Key)
}

func TestRegistryForFilename(t *testing.T) {
	reg, err := NewRegistry(
		newTestKind(t, "plain", true, ".txt", "text"),
		newTestKind(t, "other", true, ".other"),
	)
	require.NoError(t, err)

	adapter, err := reg.ForFilename("/docs/README.TXT", Settings{})
	require.NoError(t, err)
	assert.Equal(t, "plain:x", adapter.Convert(context.Background(), "x").Body())

	adapter, err = reg.ForFilename("notes.text", Settings{})
	require.NoError(t, err)
	assert.NotNil(t, adapter)

	_, err = reg.ForFilename("image.png", Settings{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLookup)
	assert.ErrorIs(t, err, ErrNoKindForFile)

	_, err = reg.ForFilename("Makefile", Settings{})
	assert.ErrorIs(t, err, ErrNoKindForFile)
}

func TestRegistryForFilenamePrefersAvailableKind(t *testing.T) {
	reg, err := NewRegistry(
		newTestKind(t, "missing", false, ".doc"),
		newTestKind(t, "present", true, ".doc"),
	)
	require.NoError(t, err)

	kind, ok := reg.KindForFilename("a.doc")
	require.True(t, ok)
	assert.Equal(t, "present", kind.Name())
}

func TestRegistryForFilenameUnavailable(t *testing.T) {
	reg, err := NewRegistry(newTestKind(t, "missing", false, ".doc"))
	require.NoError(t, err)

	_, err = reg.ForFilename("a.doc", Settings{})
	assert.ErrorIs(t, err, ErrKindUnavailable)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg, err := NewRegistry(newTestKind(t, "plain", true))
	require.NoError(t, err)

	err = reg.Register(newTestKind(t, "PLAIN", true))
	assert.ErrorIs(t, err, ErrDuplicateKind)
	assert.Len(t, reg.Kinds(), 1)
}

func TestRegistryAliasesAndExtensions(t *testing.T) {
	kind, err := NewKind(KindSpec{
		Name:       "restructuredtext",
		Aliases:    []string{"rst", "reST"},
		Extensions: []string{"rst", ".REST"},
		New: func(Settings) (Adapter, error) {
			return AdapterFunc(func(context.Context, string) Document { return Document{} }), nil
		},
	})
	require.NoError(t, err)

	reg, err := NewRegistry(kind)
	require.NoError(t, err)

	found, ok := reg.Lookup("ReSt")
	require.True(t, ok)
	assert.Equal(t, "restructuredtext", found.Name())
	assert.Equal(t, []string{".rst", ".rest"}, reg.ExtensionsFor("rst"))
	assert.Nil(t, reg.ExtensionsFor("unknown"))
}

func TestKindProbeRunsOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	kind, err := NewKind(KindSpec{
		Name: "counted",
		Probe: func() bool {
			calls.Add(1)
			return true
		},
		New: func(Settings) (Adapter, error) {
			return AdapterFunc(func(context.Context, string) Document { return Document{} }), nil
		},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, kind.Available())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestKindProbePanicMeansUnavailable(t *testing.T) {
	kind, err := NewKind(KindSpec{
		Name:  "broken",
		Probe: func() bool { panic("converter import failed") },
		New: func(Settings) (Adapter, error) {
			return AdapterFunc(func(context.Context, string) Document { return Document{} }), nil
		},
	})
	require.NoError(t, err)

	assert.False(t, kind.Available())
	assert.False(t, kind.Available())
}

func TestKindSerializesNonReentrantAdapters(t *testing.T) {
	var active, peak atomic.Int32
	kind, err := NewKind(KindSpec{
		Name: "single",
		New: func(Settings) (Adapter, error) {
			return AdapterFunc(func(_ context.Context, text string) Document {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				active.Add(-1)
				return NewDocument(DocumentParts{Body: text})
			}), nil
		},
	})
	require.NoError(t, err)

	adapter, err := kind.New(Settings{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			adapter.Convert(context.Background(), "x")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
}

func TestNewKindValidation(t *testing.T) {
	newAdapter := func(Settings) (Adapter, error) { return nil, nil }

	_, err := NewKind(KindSpec{Name: " ", New: newAdapter})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewKind(KindSpec{Name: "x"})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewKind(KindSpec{
		Name:    "x",
		New:     newAdapter,
		Options: []Option{{Name: SettingWarningStream, Type: OptionBool, Default: true}},
	})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewKind(KindSpec{
		Name:    "x",
		New:     newAdapter,
		Options: []Option{{Name: "level", Type: OptionInt, Default: "high"}},
	})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewKind(KindSpec{Name: "x", New: newAdapter, CommandSetting: "x_command"})
	assert.ErrorIs(t, err, ErrConfiguration)
}
