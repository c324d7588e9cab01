package plugin

import (
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/internal/registry"
	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

// modulePattern matches candidate module files below a search path.
const modulePattern = "**/*.so"

// Provider enumerates candidate modules, owns one loader per candidate and
// moves their extensions in and out of the registry. Bulk operations
// respect load types: frontend plugins load before everything else and
// no-unload plugins are never torn down.
type Provider struct {
	log    logger.Logger
	reg    *registry.ExtensionRegistry
	opener Opener
	locale string
	paths  []string

	mu         sync.Mutex
	loaders    []*Loader
	byID       map[string]*Loader
	byPath     map[string]*Loader
	scanned    map[string]bool
	registered map[string][]extension.Extension
}

// NewProvider creates a provider scanning the given search paths.
func NewProvider(
	reg *registry.ExtensionRegistry,
	opener Opener,
	paths []string,
	locale string,
	log logger.Logger,
) *Provider {
	return &Provider{
		log:        log.With("component", "provider"),
		reg:        reg,
		opener:     opener,
		locale:     locale,
		paths:      paths,
		byID:       make(map[string]*Loader),
		byPath:     make(map[string]*Loader),
		scanned:    make(map[string]bool),
		registered: make(map[string][]extension.Extension),
	}
}

// Scan enumerates the search paths and constructs loaders for candidates
// not yet tracked. Candidates that are not plugins are skipped quietly;
// broken candidates are skipped loudly. Scan-discovered loaders whose
// file vanished are dropped once they are not loaded; candidates added
// through AddCandidates are never pruned.
func (p *Provider) Scan() error {
	var candidates []string

	for _, dir := range p.paths {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, modulePattern))
		if err != nil {
			return errors.Wrapf(err, "scan %s", dir)
		}

		candidates = append(candidates, matches...)
	}

	p.mu.Lock()
	for _, path := range candidates {
		p.scanned[path] = true
	}
	p.mu.Unlock()

	p.AddCandidates(candidates...)
	p.prune(candidates)

	return nil
}

// AddCandidates constructs loaders for the given module paths. Paths
// already tracked are ignored.
func (p *Provider) AddCandidates(paths ...string) {
	for _, path := range paths {
		p.mu.Lock()
		_, tracked := p.byPath[path]
		p.mu.Unlock()

		if tracked {
			continue
		}

		loader, err := NewLoader(path, p.opener, p.locale, p.log)

		switch {
		case errors.Is(err, ErrNotAPlugin):
			p.log.Debug("candidate is not a plugin", "path", path)

			continue
		case err != nil:
			p.log.Error("candidate rejected", "path", path, "error", err)

			continue
		}

		id := loader.Metadata().ID

		p.mu.Lock()

		if _, dup := p.byID[id]; dup {
			p.mu.Unlock()
			p.log.Error("duplicate plugin id, candidate ignored", "id", id, "path", path)

			continue
		}

		p.loaders = append(p.loaders, loader)
		p.byID[id] = loader
		p.byPath[path] = loader
		p.mu.Unlock()

		p.log.Debug("candidate discovered", "id", id, "path", path)
	}
}

// prune drops scan-discovered loaders whose module file disappeared.
// Loaders still holding an instance are kept; their file may come back
// before unload. Loaders tracked outside a scan are not prune's business.
func (p *Provider) prune(current []string) {
	present := make(map[string]bool, len(current))
	for _, path := range current {
		present[path] = true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.loaders[:0]

	for _, l := range p.loaders {
		if !p.scanned[l.Path()] || present[l.Path()] || l.State() == StateLoaded {
			kept = append(kept, l)

			continue
		}

		delete(p.byID, l.Metadata().ID)
		delete(p.byPath, l.Path())
		delete(p.scanned, l.Path())

		if err := l.Close(); err != nil {
			p.log.Error("pruned loader close failed", "id", l.Metadata().ID, "error", err)
		}
	}

	p.loaders = kept
}

// Loaders returns the tracked loaders in discovery order.
func (p *Provider) Loaders() []*Loader {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*Loader(nil), p.loaders...)
}

// Get returns the loader for a plugin id.
func (p *Provider) Get(id string) (*Loader, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.byID[id]

	return l, ok
}

// Load loads one plugin and registers its extensions.
func (p *Provider) Load(id string) error {
	l, ok := p.Get(id)
	if !ok {
		return errors.Wrapf(ErrUnknownPlugin, "load %q", id)
	}

	return p.loadOne(l)
}

func (p *Provider) loadOne(l *Loader) error {
	if err := l.Load(); err != nil {
		return err
	}

	registered := make([]extension.Extension, 0, len(l.Extensions()))

	for _, ext := range l.Extensions() {
		if err := p.reg.Add(ext); err != nil {
			p.log.Error("extension not registered",
				"plugin", l.Metadata().ID,
				"extension", ext.ID(),
				"error", err,
			)

			continue
		}

		registered = append(registered, ext)
	}

	p.mu.Lock()
	p.registered[l.Metadata().ID] = registered
	p.mu.Unlock()

	return nil
}

// Unload deregisters one plugin's extensions and unloads it. No-unload
// plugins are refused.
func (p *Provider) Unload(id string) error {
	l, ok := p.Get(id)
	if !ok {
		return errors.Wrapf(ErrUnknownPlugin, "unload %q", id)
	}

	if l.Metadata().LoadType == pluginapi.LoadTypeNoUnload {
		return errors.Newf("plugin %q is marked nounload", id)
	}

	return p.unloadOne(l)
}

func (p *Provider) unloadOne(l *Loader) error {
	id := l.Metadata().ID

	p.mu.Lock()
	registered := p.registered[id]
	delete(p.registered, id)
	p.mu.Unlock()

	for _, ext := range registered {
		if err := p.reg.Remove(ext); err != nil {
			p.log.Error("extension not deregistered",
				"plugin", id,
				"extension", ext.ID(),
				"error", err,
			)
		}
	}

	if err := l.Unload(); err != nil {
		// Keep the registry consistent with the still-loaded instance.
		for _, ext := range registered {
			if addErr := p.reg.Add(ext); addErr != nil {
				p.log.Error("extension not re-registered after failed unload",
					"plugin", id,
					"extension", ext.ID(),
					"error", addErr,
				)
			}
		}

		p.mu.Lock()
		p.registered[id] = registered
		p.mu.Unlock()

		return err
	}

	return nil
}

// LoadAll loads every tracked plugin, frontend plugins first. Failures are
// logged and collected; one broken plugin never stops the others.
func (p *Provider) LoadAll() error {
	var errs []error

	for _, l := range p.inLoadOrder() {
		if l.State() == StateLoaded {
			continue
		}

		if err := p.loadOne(l); err != nil {
			errs = append(errs, errors.Wrapf(err, "plugin %q", l.Metadata().ID))
		}
	}

	return errors.Join(errs...)
}

// UnloadAll unloads every loaded plugin in reverse load order, skipping
// no-unload plugins, then disposes the loaders.
func (p *Provider) UnloadAll() error {
	ordered := p.inLoadOrder()

	var errs []error

	for i := len(ordered) - 1; i >= 0; i-- {
		l := ordered[i]

		if l.State() != StateLoaded {
			continue
		}

		if l.Metadata().LoadType == pluginapi.LoadTypeNoUnload {
			p.log.Debug("skipping nounload plugin", "id", l.Metadata().ID)

			continue
		}

		if err := p.unloadOne(l); err != nil {
			errs = append(errs, errors.Wrapf(err, "plugin %q", l.Metadata().ID))
		}
	}

	for _, l := range ordered {
		if l.State() == StateLoaded {
			continue
		}

		if err := l.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close %q", l.Metadata().ID))
		}
	}

	return errors.Join(errs...)
}

// inLoadOrder returns the tracked loaders with frontend plugins first,
// keeping discovery order within each group.
func (p *Provider) inLoadOrder() []*Loader {
	p.mu.Lock()
	defer p.mu.Unlock()

	ordered := make([]*Loader, 0, len(p.loaders))

	for _, l := range p.loaders {
		if l.Metadata().LoadType == pluginapi.LoadTypeFrontend {
			ordered = append(ordered, l)
		}
	}

	for _, l := range p.loaders {
		if l.Metadata().LoadType != pluginapi.LoadTypeFrontend {
			ordered = append(ordered, l)
		}
	}

	return ordered
}
