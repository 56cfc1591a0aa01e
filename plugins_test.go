package oclgrind

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/internal/testing/simtest"
)

// fakeLibrary implements library with a fixed symbol table.
type fakeLibrary struct {
	symbols  map[string]interface{}
	closed   int
	closeErr error
}

func (l *fakeLibrary) Lookup(symbol string) (interface{}, error) {
	if s, ok := l.symbols[symbol]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("symbol %s not found", symbol)
}

func (l *fakeLibrary) Close() error {
	l.closed++
	return l.closeErr
}

// fakeOpener returns a library opener which only opens the given paths.
func fakeOpener(libs map[string]*fakeLibrary) func(string) (library, error) {
	return func(path string) (library, error) {
		if l, ok := libs[path]; ok {
			return l, nil
		}
		return nil, errors.New("no such file")
	}
}

func pluginTypes(ctx *Context) []string {
	var ret []string
	for _, p := range ctx.Plugins() {
		ret = append(ret, fmt.Sprintf("%T", p))
	}
	return ret
}

func TestContext_BuiltInPlugins(t *testing.T) {
	tests := []struct {
		name     string
		config   *ContextConfig
		expected []string
	}{
		{
			name:     "default",
			config:   NewContextConfig(),
			expected: []string{"*logger.Logger"},
		},
		{
			name:     "instruction counts and data races",
			config:   NewContextConfig().WithDataRaces(true).WithInstructionCounts(true),
			expected: []string{"*logger.Logger", "*instcount.Counter", "*racedetect.Detector"},
		},
		{
			name: "all",
			config: NewContextConfig().WithInstructionCounts(true).WithDataRaces(true).
				WithInteractive(true).WithStdin(strings.NewReader("")),
			expected: []string{"*logger.Logger", "*instcount.Counter", "*racedetect.Detector", "*debugger.Debugger"},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			ctx, _, _ := newTestContext(t, tc.config)
			require.Equal(t, tc.expected, pluginTypes(ctx))
		})
	}
}

func TestNewContext_Env(t *testing.T) {
	t.Setenv("OCLGRIND_INST_COUNTS", "1")
	t.Setenv("OCLGRIND_DATA_RACES", "1")
	t.Setenv("OCLGRIND_INTERACTIVE", "true")
	t.Setenv("OCLGRIND_PLUGINS", "")

	ctx := NewContext()
	defer ctx.Close() //nolint

	require.Equal(t, []string{"*logger.Logger", "*instcount.Counter", "*racedetect.Detector"}, pluginTypes(ctx))
}

func TestContext_RegisterPlugin(t *testing.T) {
	ctx, _, _ := newTestContext(t, nil)
	builtIns := ctx.Plugins()

	var events []string
	a, b := simtest.NewRecorder("a", &events), simtest.NewRecorder("b", &events)

	ctx.RegisterPlugin(a)
	ctx.UnregisterPlugin(a)
	require.Equal(t, builtIns, ctx.Plugins())

	ctx.RegisterPlugin(a)
	ctx.RegisterPlugin(b)
	ctx.RegisterPlugin(a)
	ctx.UnregisterPlugin(a)
	require.Equal(t, append(builtIns, b, a), ctx.Plugins())

	// not registered
	ctx.UnregisterPlugin(simtest.NewRecorder("c", &events))
	require.Equal(t, append(builtIns, b, a), ctx.Plugins())

	// plugins created by the context are not removed
	ctx.UnregisterPlugin(builtIns[0])
	require.Equal(t, append(builtIns, b, a), ctx.Plugins())
}

// sliceHolder is a plugin whose value type is not comparable.
type sliceHolder struct {
	api.PluginBase
	events []string
}

func TestContext_RegisterPlugin_Panics(t *testing.T) {
	tests := []struct {
		name     string
		plugin   api.Plugin
		expected string
	}{
		{
			name:     "nil",
			expected: "BUG: RegisterPlugin with nil plugin",
		},
		{
			name:     "non-comparable",
			plugin:   sliceHolder{},
			expected: "BUG: RegisterPlugin with non-comparable plugin type oclgrind.sliceHolder, use a pointer",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			ctx, _, _ := newTestContext(t, nil)
			builtIns := ctx.Plugins()

			require.PanicsWithValue(t, tc.expected, func() { ctx.RegisterPlugin(tc.plugin) })
			require.Equal(t, builtIns, ctx.Plugins())
		})
	}
}

func TestContext_UnregisterPlugin_NonComparable(t *testing.T) {
	ctx, _, _ := newTestContext(t, nil)
	ctx.RegisterPlugin(&sliceHolder{})

	require.NotPanics(t, func() { ctx.UnregisterPlugin(sliceHolder{}) })
	require.Equal(t, []string{"*logger.Logger", "*oclgrind.sliceHolder"}, pluginTypes(ctx))
}

func TestContext_LoadPlugins(t *testing.T) {
	var events []string
	var initialized, released []*Context
	recorder := simtest.NewRecorder("lib", &events)

	libs := map[string]*fakeLibrary{
		"missing.so": {symbols: map[string]interface{}{}},
		"wrong.so": {symbols: map[string]interface{}{
			InitializePluginsSymbol: func() {},
		}},
		"ok.so": {symbols: map[string]interface{}{
			InitializePluginsSymbol: func(ctx *Context) {
				initialized = append(initialized, ctx)
				ctx.RegisterPlugin(recorder)
			},
			ReleasePluginsSymbol: func(ctx *Context) {
				released = append(released, ctx)
				ctx.UnregisterPlugin(recorder)
			},
		}},
		"init-only.so": {symbols: map[string]interface{}{
			InitializePluginsSymbol: func(*Context) {},
		}},
	}

	config := NewContextConfig().
		WithPluginPaths("nonexistent.so", "missing.so", "wrong.so", "ok.so", "init-only.so").
		withOpenLibrary(fakeOpener(libs))
	ctx, _, log := newTestContext(t, config)

	require.Equal(t, []*Context{ctx}, initialized)
	require.Equal(t, []string{"ok.so", "init-only.so"}, ctx.PluginLibraries())
	require.Equal(t, []string{"*logger.Logger", "*simtest.Recorder"}, pluginTypes(ctx))

	logged := log.String()
	require.Contains(t, logged, `msg="Loading Oclgrind plugin failed (open)" path=nonexistent.so`)
	require.Contains(t, logged, `msg="Loading Oclgrind plugin failed (lookup)" path=missing.so`)
	require.Contains(t, logged, `msg="Loading Oclgrind plugin failed (symbol type)" path=wrong.so`)

	// libraries that failed are closed right away
	require.Equal(t, 1, libs["missing.so"].closed)
	require.Equal(t, 1, libs["wrong.so"].closed)
	require.Zero(t, libs["ok.so"].closed)

	require.NoError(t, ctx.Close())
	require.Equal(t, []*Context{ctx}, released)
	require.Equal(t, 1, libs["ok.so"].closed)
	require.Equal(t, 1, libs["init-only.so"].closed)
	require.Empty(t, ctx.PluginLibraries())
}

func TestContext_CloseErrors(t *testing.T) {
	closeErr := errors.New("close failed")
	libs := map[string]*fakeLibrary{
		"a.so": {
			symbols:  map[string]interface{}{InitializePluginsSymbol: func(*Context) {}},
			closeErr: closeErr,
		},
	}

	ctx, _, log := newTestContext(t, NewContextConfig().WithPluginPaths("a.so").withOpenLibrary(fakeOpener(libs)))

	err := ctx.Close()
	require.ErrorIs(t, err, closeErr)
	require.Contains(t, log.String(), "Closing Oclgrind plugin library failed")
}

func TestContext_LoadGoPlugin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.so")
	ctx, _, log := newTestContext(t, NewContextConfig().WithPluginPaths(path))

	require.Empty(t, ctx.PluginLibraries())
	require.Equal(t, []string{"*logger.Logger"}, pluginTypes(ctx))
	require.Contains(t, log.String(), "Loading Oclgrind plugin failed (open)")
}

func TestSplitPluginPaths(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{input: ""},
		{input: ":"},
		{input: "a.so", expected: []string{"a.so"}},
		{input: "a.so:/opt/b.so", expected: []string{"a.so", "/opt/b.so"}},
		{input: ":a.so::b.so:", expected: []string{"a.so", "b.so"}},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.input, func(t *testing.T) {
			require.Equal(t, tc.expected, splitPluginPaths(tc.input))
		})
	}
}

var _ api.Plugin = (*simtest.Recorder)(nil)
