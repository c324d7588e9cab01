package main

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/internal/builtins"
	internalconfig "github.com/luma-launcher/luma/internal/config"
	"github.com/luma-launcher/luma/internal/plugin"
	"github.com/luma-launcher/luma/internal/query"
	"github.com/luma-launcher/luma/internal/registry"
	"github.com/luma-launcher/luma/pkg/logger"
)

// launcher wires configuration, registry, plugin provider, and query engine
// into one runtime.
type launcher struct {
	cfg      *internalconfig.Config
	log      logger.Logger
	reg      *registry.ExtensionRegistry
	provider *plugin.Provider
	engine   *query.Engine
}

// newLauncher builds the runtime and loads all discovered plugins.
func newLauncher() (*launcher, error) {
	loader, err := internalconfig.NewLoader()
	if err != nil {
		return nil, err
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	locale := cfg.Locale
	if locale == "" {
		locale = plugin.SystemLocale()
	}

	reg := registry.New(log)

	builtinOpener := plugin.NewBuiltinOpener(builtins.Registry())
	opener := &dispatchOpener{
		native:  plugin.NewNativeOpener(),
		builtin: builtinOpener,
	}

	provider := plugin.NewProvider(reg, opener, cfg.PluginPaths, locale, log)
	provider.AddCandidates(builtinOpener.Paths()...)

	if err := provider.Scan(); err != nil {
		return nil, errors.Wrap(err, "plugin scan failed")
	}

	engine := query.NewEngine(reg, query.Options{
		Seeds:           seedsFromConfig(cfg),
		HandlerDeadline: cfg.Query.HandlerDeadline.ToDuration(),
		MaxCPUWorkers:   cfg.Query.MaxCPUWorkers,
		MaxIOWorkers:    cfg.Query.MaxIOWorkers,
	}, log)

	if err := provider.LoadAll(); err != nil {
		log.Error("some plugins failed to load", "error", err.Error())
	}

	return &launcher{
		cfg:      cfg,
		log:      log,
		reg:      reg,
		provider: provider,
		engine:   engine,
	}, nil
}

// shutdown unloads plugins and detaches the engine.
func (l *launcher) shutdown() {
	if err := l.provider.UnloadAll(); err != nil {
		l.log.Error("unload failed", "error", err.Error())
	}

	l.engine.Close()
}

func buildLogger(cfg *internalconfig.Config) (logger.Logger, error) {
	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}

	path := cfg.Log.File
	if logFileFlag != "" {
		path = logFileFlag
	}

	if path != "" {
		return logger.NewFileLogger(path, logger.ParseLevel(level))
	}

	return logger.New(os.Stderr, logger.ParseLevel(level)), nil
}

func seedsFromConfig(cfg *internalconfig.Config) map[string]query.Seed {
	seeds := make(map[string]query.Seed, len(cfg.Handlers))
	for id, handler := range cfg.Handlers {
		seeds[id] = query.Seed{
			Trigger: handler.Trigger,
			Enabled: handler.Enabled,
		}
	}

	return seeds
}

// dispatchOpener routes native module paths to the runtime linker and
// everything else to the builtin table.
type dispatchOpener struct {
	native  plugin.Opener
	builtin plugin.Opener
}

func (o *dispatchOpener) Open(path string) (plugin.Module, error) {
	if strings.HasSuffix(path, ".so") {
		return o.native.Open(path)
	}

	return o.builtin.Open(path)
}
