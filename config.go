package oclgrind

import (
	"io"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/oclgrind/oclgrind/internal/plugins/logger"
)

// EnvPrefix is prepended to configuration keys to form environment variable names, e.g. OCLGRIND_DATA_RACES.
const EnvPrefix = "OCLGRIND"

// Configuration keys, as read by viper. Toggles are enabled only by the literal value "1".
const (
	InstCountsKey  = "inst_counts"
	DataRacesKey   = "data_races"
	InteractiveKey = "interactive"
	PluginsKey     = "plugins"
	LogKey         = "log"
	MaxErrorsKey   = "max_errors"
)

const (
	flagInstCounts  = "inst-counts"
	flagDataRaces   = "data-races"
	flagInteractive = "interactive"
	flagPlugins     = "plugins"
	flagLog         = "log"
	flagMaxErrors   = "max-errors"
)

// ContextConfig controls Context behavior, with the default implementation as NewContextConfig
type ContextConfig struct {
	instCounts  bool
	dataRaces   bool
	interactive bool
	pluginPaths []string
	logPath     string
	maxErrors   int

	stderr io.Writer
	stdin  io.Reader
	stdout io.Writer
	logger log15.Logger

	openLibrary func(path string) (library, error)
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &ContextConfig{
	maxErrors:   logger.DefaultMaxErrors,
	stderr:      os.Stderr,
	stdin:       os.Stdin,
	stdout:      os.Stdout,
	openLibrary: openGoPlugin,
}

// clone ensures all fields are copied even if nil.
func (c *ContextConfig) clone() *ContextConfig {
	ret := *c
	ret.pluginPaths = append([]string(nil), c.pluginPaths...)
	return &ret
}

// NewContextConfig returns a config with no optional plugins enabled, ignoring the environment.
func NewContextConfig() *ContextConfig {
	return defaultConfig.clone()
}

// NewContextConfigFromEnv returns a config read from OCLGRIND_ environment variables.
func NewContextConfigFromEnv() *ContextConfig {
	return NewContextConfigFromViper(NewViper())
}

// NewViper returns a viper reading configuration keys from OCLGRIND_ environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault(MaxErrorsKey, logger.DefaultMaxErrors)
	return v
}

// RegisterFlags adds a flag per configuration key to fs, and binds them to v. Flags that are set take precedence over
// the environment.
//
// Toggle flags are strings so that "--data-races" alone means "1", like OCLGRIND_DATA_RACES=1.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	toggle := func(name, usage string) {
		fs.String(name, "", usage)
		fs.Lookup(name).NoOptDefVal = "1"
	}
	toggle(flagInstCounts, "Print instructions executed per kernel, when 1")
	toggle(flagDataRaces, "Detect data races between work-items, when 1")
	toggle(flagInteractive, "Run kernels under the interactive debugger, when 1")
	fs.String(flagPlugins, "", "Colon-separated list of plugin libraries to load")
	fs.String(flagLog, "", "File to write diagnostics to, instead of stderr")
	fs.Int(flagMaxErrors, logger.DefaultMaxErrors, "Maximum count of errors printed. Zero means unlimited")

	for key, flag := range map[string]string{
		InstCountsKey:  flagInstCounts,
		DataRacesKey:   flagDataRaces,
		InteractiveKey: flagInteractive,
		PluginsKey:     flagPlugins,
		LogKey:         flagLog,
		MaxErrorsKey:   flagMaxErrors,
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// NewContextConfigFromViper returns a config read from v, defaulting programmatic settings as NewContextConfig.
func NewContextConfigFromViper(v *viper.Viper) *ContextConfig {
	ret := defaultConfig.clone()
	ret.instCounts = v.GetString(InstCountsKey) == "1"
	ret.dataRaces = v.GetString(DataRacesKey) == "1"
	ret.interactive = v.GetString(InteractiveKey) == "1"
	ret.pluginPaths = splitPluginPaths(v.GetString(PluginsKey))
	ret.logPath = v.GetString(LogKey)
	if n, err := cast.ToIntE(v.Get(MaxErrorsKey)); err != nil {
		log15.Warn("Invalid Oclgrind max errors, using default", "value", v.Get(MaxErrorsKey),
			"default", logger.DefaultMaxErrors, "err", err)
	} else {
		ret.maxErrors = n
	}
	return ret
}

// splitPluginPaths splits a colon-separated list, skipping empty entries.
func splitPluginPaths(list string) []string {
	var ret []string
	for _, path := range strings.Split(list, ":") {
		if path != "" {
			ret = append(ret, path)
		}
	}
	return ret
}

// WithInstructionCounts enables the plugin which prints instructions executed per opcode at the end of each kernel.
func (c *ContextConfig) WithInstructionCounts(enabled bool) *ContextConfig {
	ret := c.clone()
	ret.instCounts = enabled
	return ret
}

// WithDataRaces enables the plugin which reports data races between work-items.
func (c *ContextConfig) WithDataRaces(enabled bool) *ContextConfig {
	ret := c.clone()
	ret.dataRaces = enabled
	return ret
}

// WithInteractive enables the interactive debugger, which reads commands from Stdin and writes to Stdout.
func (c *ContextConfig) WithInteractive(enabled bool) *ContextConfig {
	ret := c.clone()
	ret.interactive = enabled
	return ret
}

// WithPluginPaths sets the plugin libraries loaded at construction, in order. Each must export InitializePlugins.
func (c *ContextConfig) WithPluginPaths(paths ...string) *ContextConfig {
	ret := c.clone()
	ret.pluginPaths = append([]string(nil), paths...)
	return ret
}

// WithLogPath sets a file diagnostics are written to instead of Stderr. Defaults to "" (Stderr).
//
// Note: If the file cannot be created, a warning is logged and diagnostics go to Stderr.
func (c *ContextConfig) WithLogPath(path string) *ContextConfig {
	ret := c.clone()
	ret.logPath = path
	return ret
}

// WithMaxErrors sets the count of errors and warnings printed before further ones are suppressed. Defaults to 1000.
// A value below one disables the limit.
func (c *ContextConfig) WithMaxErrors(maxErrors int) *ContextConfig {
	ret := c.clone()
	ret.maxErrors = maxErrors
	return ret
}

// WithStderr sets where diagnostics are written. Defaults to os.Stderr.
func (c *ContextConfig) WithStderr(stderr io.Writer) *ContextConfig {
	ret := c.clone()
	ret.stderr = stderr
	return ret
}

// WithStdin sets where the interactive debugger reads commands from. Defaults to os.Stdin.
func (c *ContextConfig) WithStdin(stdin io.Reader) *ContextConfig {
	ret := c.clone()
	ret.stdin = stdin
	return ret
}

// WithStdout sets where the interactive debugger writes to. Defaults to os.Stdout.
func (c *ContextConfig) WithStdout(stdout io.Writer) *ContextConfig {
	ret := c.clone()
	ret.stdout = stdout
	return ret
}

// WithLogger sets the operational logger, used for example when a plugin library fails to load. Defaults to a
// logfmt logger on Stderr at info level.
func (c *ContextConfig) WithLogger(l log15.Logger) *ContextConfig {
	ret := c.clone()
	ret.logger = l
	return ret
}

func (c *ContextConfig) withOpenLibrary(open func(path string) (library, error)) *ContextConfig {
	ret := c.clone()
	ret.openLibrary = open
	return ret
}

// newLogger returns the configured operational logger, or a default one writing to stderr.
func (c *ContextConfig) newLogger() log15.Logger {
	if c.logger != nil {
		return c.logger
	}
	l := log15.New("module", "oclgrind")
	l.SetHandler(log15.LvlFilterHandler(log15.LvlInfo, log15.StreamHandler(c.stderr, log15.LogfmtFormat())))
	return l
}
