package oclgrind

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestContextConfig(t *testing.T) {
	tests := []struct {
		name     string
		with     func(*ContextConfig) *ContextConfig
		expected *ContextConfig
	}{
		{
			name: "WithInstructionCounts",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithInstructionCounts(true)
			},
			expected: &ContextConfig{instCounts: true},
		},
		{
			name: "WithDataRaces",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithDataRaces(true)
			},
			expected: &ContextConfig{dataRaces: true},
		},
		{
			name: "WithInteractive",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithInteractive(true)
			},
			expected: &ContextConfig{interactive: true},
		},
		{
			name: "WithPluginPaths",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithPluginPaths("a.so", "b.so")
			},
			expected: &ContextConfig{pluginPaths: []string{"a.so", "b.so"}},
		},
		{
			name: "WithLogPath",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithLogPath("oclgrind.log")
			},
			expected: &ContextConfig{logPath: "oclgrind.log"},
		},
		{
			name: "WithMaxErrors",
			with: func(c *ContextConfig) *ContextConfig {
				return c.WithMaxErrors(10)
			},
			expected: &ContextConfig{maxErrors: 10},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			input := &ContextConfig{}
			rc := tc.with(input)
			require.Equal(t, tc.expected, rc)
			// The source wasn't modified
			require.Equal(t, &ContextConfig{}, input)
		})
	}
}

func TestContextConfig_WithPluginPathsCopies(t *testing.T) {
	paths := []string{"a.so"}
	c := NewContextConfig().WithPluginPaths(paths...)
	paths[0] = "b.so"
	require.Equal(t, []string{"a.so"}, c.pluginPaths)
}

func TestNewContextConfig(t *testing.T) {
	c := NewContextConfig()
	require.False(t, c.instCounts)
	require.False(t, c.dataRaces)
	require.False(t, c.interactive)
	require.Empty(t, c.pluginPaths)
	require.Equal(t, 1000, c.maxErrors)
	require.NotNil(t, c.openLibrary)
}

func TestNewContextConfigFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected func(*testing.T, *ContextConfig)
	}{
		{
			name: "unset",
			expected: func(t *testing.T, c *ContextConfig) {
				require.False(t, c.instCounts)
				require.Nil(t, c.pluginPaths)
				require.Equal(t, 1000, c.maxErrors)
			},
		},
		{
			name: "toggles are enabled by 1",
			env:  map[string]string{"OCLGRIND_INST_COUNTS": "1", "OCLGRIND_DATA_RACES": "1", "OCLGRIND_INTERACTIVE": "1"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.True(t, c.instCounts)
				require.True(t, c.dataRaces)
				require.True(t, c.interactive)
			},
		},
		{
			name: "toggles are not enabled by other values",
			env:  map[string]string{"OCLGRIND_INST_COUNTS": "true", "OCLGRIND_DATA_RACES": "0", "OCLGRIND_INTERACTIVE": "yes"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.False(t, c.instCounts)
				require.False(t, c.dataRaces)
				require.False(t, c.interactive)
			},
		},
		{
			name: "plugins",
			env:  map[string]string{"OCLGRIND_PLUGINS": "/opt/a.so::b.so"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.Equal(t, []string{"/opt/a.so", "b.so"}, c.pluginPaths)
			},
		},
		{
			name: "log and max errors",
			env:  map[string]string{"OCLGRIND_LOG": "out.log", "OCLGRIND_MAX_ERRORS": "5"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.Equal(t, "out.log", c.logPath)
				require.Equal(t, 5, c.maxErrors)
			},
		},
		{
			name: "invalid max errors keeps the default",
			env:  map[string]string{"OCLGRIND_MAX_ERRORS": "lots"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.Equal(t, 1000, c.maxErrors)
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range []string{InstCountsKey, DataRacesKey, InteractiveKey, PluginsKey, LogKey, MaxErrorsKey} {
				t.Setenv(EnvPrefix+"_"+strings.ToUpper(key), "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			tc.expected(t, NewContextConfigFromEnv())
		})
	}
}

func TestRegisterFlags(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		expected func(*testing.T, *ContextConfig)
	}{
		{
			name: "bare toggle",
			args: []string{"--data-races"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.True(t, c.dataRaces)
				require.False(t, c.instCounts)
			},
		},
		{
			name: "flag overrides env",
			env:  map[string]string{"OCLGRIND_INST_COUNTS": "1", "OCLGRIND_MAX_ERRORS": "5"},
			args: []string{"--inst-counts=0", "--max-errors", "3"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.False(t, c.instCounts)
				require.Equal(t, 3, c.maxErrors)
			},
		},
		{
			name: "env applies without flag",
			env:  map[string]string{"OCLGRIND_INTERACTIVE": "1", "OCLGRIND_MAX_ERRORS": "5"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.True(t, c.interactive)
				require.Equal(t, 5, c.maxErrors)
			},
		},
		{
			name: "plugins and log",
			args: []string{"--plugins=a.so:b.so", "--log", "out.log"},
			expected: func(t *testing.T, c *ContextConfig) {
				require.Equal(t, []string{"a.so", "b.so"}, c.pluginPaths)
				require.Equal(t, "out.log", c.logPath)
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			v := NewViper()
			require.NoError(t, RegisterFlags(fs, v))
			require.NoError(t, fs.Parse(tc.args))
			tc.expected(t, NewContextConfigFromViper(v))
		})
	}
}
