package oclgrind

import (
	"errors"
	"fmt"
	"io"
	"plugin"
	"reflect"
	"slices"

	"github.com/oclgrind/oclgrind/api"
	"github.com/oclgrind/oclgrind/internal/plugins/debugger"
	"github.com/oclgrind/oclgrind/internal/plugins/instcount"
	"github.com/oclgrind/oclgrind/internal/plugins/logger"
	"github.com/oclgrind/oclgrind/internal/plugins/racedetect"
)

// Symbols looked up in plugin libraries. Each must be a func(*Context).
//
// InitializePlugins is required and typically calls Context.RegisterPlugin. ReleasePlugins is optional and is called
// on Context.Close, before the Context closes plugins it owns.
const (
	InitializePluginsSymbol = "InitializePlugins"
	ReleasePluginsSymbol    = "ReleasePlugins"
)

// pluginRecord is a registered plugin. Owned plugins were created by the Context, which closes them.
type pluginRecord struct {
	plugin api.Plugin
	owned  bool
}

// library is an open plugin library.
type library interface {
	Lookup(symbol string) (interface{}, error)
	Close() error
}

type loadedLibrary struct {
	path string
	lib  library
}

// goPlugin implements library with a Go plugin built with -buildmode=plugin.
type goPlugin struct {
	p *plugin.Plugin
}

func openGoPlugin(path string) (library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &goPlugin{p: p}, nil
}

func (g *goPlugin) Lookup(symbol string) (interface{}, error) {
	return g.p.Lookup(symbol)
}

// Close implements io.Closer. Go plugins cannot be unloaded, so this is a no-op.
func (g *goPlugin) Close() error {
	return nil
}

// loadPlugins registers the built-in plugins enabled by the config, then loads the plugin libraries in order.
func (c *Context) loadPlugins() {
	c.plugins = append(c.plugins, pluginRecord{plugin: c.newLogger(), owned: true})
	if c.config.instCounts {
		c.plugins = append(c.plugins, pluginRecord{plugin: instcount.New(c), owned: true})
	}
	if c.config.dataRaces {
		c.plugins = append(c.plugins, pluginRecord{plugin: racedetect.New(c), owned: true})
	}
	if c.config.interactive {
		c.plugins = append(c.plugins, pluginRecord{plugin: debugger.New(c.config.stdin, c.config.stdout), owned: true})
	}

	for _, path := range c.config.pluginPaths {
		c.loadLibrary(path)
	}
}

func (c *Context) newLogger() *logger.Logger {
	if path := c.config.logPath; path != "" {
		l, err := logger.Open(path, c.config.maxErrors)
		if err == nil {
			return l
		}
		c.log.Warn("Opening Oclgrind log file failed, using stderr", "path", path, "err", err)
	}
	return logger.New(c.config.stderr, c.config.maxErrors)
}

// loadLibrary opens the library at path and calls its InitializePlugins. Failures are logged and skipped.
func (c *Context) loadLibrary(path string) {
	lib, err := c.config.openLibrary(path)
	if err != nil {
		c.log.Error("Loading Oclgrind plugin failed (open)", "path", path, "err", err)
		return
	}

	sym, err := lib.Lookup(InitializePluginsSymbol)
	if err != nil {
		c.log.Error("Loading Oclgrind plugin failed (lookup)", "path", path, "err", err)
		lib.Close() //nolint
		return
	}
	initialize, ok := sym.(func(*Context))
	if !ok {
		c.log.Error("Loading Oclgrind plugin failed (symbol type)", "path", path, "symbol", InitializePluginsSymbol,
			"type", fmt.Sprintf("%T", sym))
		lib.Close() //nolint
		return
	}

	initialize(c)
	c.libraries = append(c.libraries, loadedLibrary{path: path, lib: lib})
	c.log.Debug("Loaded Oclgrind plugin", "path", path)
}

// unloadPlugins calls ReleasePlugins of each library, closes the libraries, then closes owned plugins.
func (c *Context) unloadPlugins() error {
	var errs []error
	for _, l := range c.libraries {
		if sym, err := l.lib.Lookup(ReleasePluginsSymbol); err == nil {
			if release, ok := sym.(func(*Context)); ok {
				release(c)
			} else {
				c.log.Warn("Releasing Oclgrind plugin failed (symbol type)", "path", l.path,
					"type", fmt.Sprintf("%T", sym))
			}
		}
		if err := l.lib.Close(); err != nil {
			c.log.Error("Closing Oclgrind plugin library failed", "path", l.path, "err", err)
			errs = append(errs, err)
		}
	}

	for _, r := range c.plugins {
		if !r.owned {
			continue
		}
		if closer, ok := r.plugin.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.log.Error("Closing Oclgrind plugin failed", "plugin", fmt.Sprintf("%T", r.plugin), "err", err)
				errs = append(errs, err)
			}
		}
	}

	c.libraries = nil
	c.plugins = nil
	return errors.Join(errs...)
}

// RegisterPlugin adds p to the end of the fan-out order. The caller keeps ownership: Close does not close p.
//
// p must be a comparable type, such as a pointer, so that UnregisterPlugin can find it. Otherwise, this panics.
//
// Note: This must not be called from a plugin hook, except InitializePlugins.
func (c *Context) RegisterPlugin(p api.Plugin) {
	if p == nil {
		panic("BUG: RegisterPlugin with nil plugin")
	}
	if !reflect.TypeOf(p).Comparable() {
		panic(fmt.Sprintf("BUG: RegisterPlugin with non-comparable plugin type %T, use a pointer", p))
	}
	c.plugins = append(c.plugins, pluginRecord{plugin: p})
}

// UnregisterPlugin removes the first registration of p made with RegisterPlugin. Plugins created by the Context are
// never removed.
func (c *Context) UnregisterPlugin(p api.Plugin) {
	i := slices.IndexFunc(c.plugins, func(r pluginRecord) bool {
		return !r.owned && r.plugin == p
	})
	if i >= 0 {
		c.plugins = slices.Delete(c.plugins, i, i+1)
	}
}

// Plugins returns the registered plugins in fan-out order.
func (c *Context) Plugins() []api.Plugin {
	ret := make([]api.Plugin, 0, len(c.plugins))
	for _, r := range c.plugins {
		ret = append(ret, r.plugin)
	}
	return ret
}

// PluginLibraries returns the paths of plugin libraries that loaded successfully, in load order.
func (c *Context) PluginLibraries() []string {
	ret := make([]string, 0, len(c.libraries))
	for _, l := range c.libraries {
		ret = append(ret, l.path)
	}
	return ret
}
