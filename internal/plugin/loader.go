// Package plugin discovers, validates, loads and unloads native extension
// modules with strict version and state-machine discipline.
package plugin

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

// errNotInstance is the cast-failure message surfaced when a module's
// instance symbol does not implement plugin.Instance.
const errNotInstance = "Plugin is not of type PluginInstance."

// Loader owns one module's lifecycle: at most one native handle and at most
// one instantiated extension group. State transitions are serialized per
// loader; concurrent lifecycle calls block on the loader mutex.
type Loader struct {
	path   string
	opener Opener
	log    logger.Logger

	metadata       pluginapi.Metadata
	validationErrs []error

	mu         sync.Mutex
	state      State
	lastError  string
	module     Module
	instance   pluginapi.Instance
	extensions []extension.Extension
	loadedAt   time.Time
	generation atomic.Uint64
}

// NewLoader resolves the candidate at path and extracts and validates its
// manifest. It fails fast when the candidate is not a plugin at all
// (ErrNotAPlugin) or cannot be linked; manifest validation failures are
// recoverable and recorded on the constructed loader, making Load report
// them instead.
func NewLoader(path string, opener Opener, locale string, log logger.Logger) (*Loader, error) {
	module, err := opener.Open(path)
	if err != nil {
		return nil, err
	}

	raw, err := module.Metadata()
	if err != nil {
		return nil, err
	}

	md, err := ExtractMetadata(raw, locale)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		path:     path,
		opener:   opener,
		log:      log.With("plugin", md.ID),
		metadata: md,
		module:   module,
	}
	l.validationErrs = ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

	if len(l.validationErrs) > 0 {
		l.lastError = joinValidationErrors(l.validationErrs).Error()
	}

	return l, nil
}

// Path returns the module path the loader was constructed from.
func (l *Loader) Path() string { return l.path }

// Metadata returns the validated-or-not manifest of the module.
func (l *Loader) Metadata() pluginapi.Metadata { return l.metadata }

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// LastError returns the diagnostic of the most recent failure, or "".
func (l *Loader) LastError() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lastError
}

// ValidationErrors returns the manifest violations found at construction.
func (l *Loader) ValidationErrors() []error {
	return append([]error(nil), l.validationErrs...)
}

// Extensions returns the guarded extensions of the loaded instance. Empty
// unless the loader is in the loaded state.
func (l *Loader) Extensions() []extension.Extension {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]extension.Extension(nil), l.extensions...)
}

// LoadedAt returns the time of the last successful load.
func (l *Loader) LoadedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loadedAt
}

// Load resolves the module and instantiates its extension group. Allowed
// from the unloaded and failed states. Validation and link failures never
// panic across this boundary; they come back as descriptive errors and
// leave the loader loadable again.
func (l *Loader) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateUnloaded && l.state != StateFailed {
		return errors.Wrapf(ErrNotUnloaded, "load requested in state %s", l.state)
	}

	if len(l.validationErrs) > 0 {
		err := joinValidationErrors(l.validationErrs)
		l.lastError = err.Error()

		return err
	}

	l.state = StateLoading

	if l.module == nil {
		module, err := l.opener.Open(l.path)
		if err != nil {
			return l.failLoad(errors.Wrap(err, "resolve module"))
		}

		l.module = module
	}

	sym, err := l.module.Instance()
	if err != nil {
		return l.failLoad(errors.Wrap(err, "resolve instance"))
	}

	instance, ok := sym.(pluginapi.Instance)
	if !ok {
		return l.failLoad(errors.New(errNotInstance))
	}

	if init, ok := instance.(pluginapi.Initializer); ok {
		if err := init.Initialize(); err != nil {
			return l.failLoad(errors.Wrap(err, "initialize"))
		}
	}

	guard := &generationGuard{pluginID: l.metadata.ID, gen: &l.generation}

	exts := instance.Extensions()
	l.extensions = make([]extension.Extension, 0, len(exts))

	for _, ext := range exts {
		l.extensions = append(l.extensions, guardExtension(ext, guard))
	}

	l.instance = instance
	l.state = StateLoaded
	l.loadedAt = time.Now()
	l.lastError = ""

	l.log.Info("plugin loaded", "version", l.metadata.Version)

	return nil
}

// failLoad records the failure and reports it without panicking.
func (l *Loader) failLoad(err error) error {
	l.state = StateFailed
	l.lastError = err.Error()

	l.log.Error("plugin load failed", "error", err)

	return err
}

// Unload destroys the owned instance first, clears it, then releases the
// native handle. On failure the loader stays loaded and the call may be
// retried. A successful unload bumps the generation counter, invalidating
// the actions of all items the instance produced.
func (l *Loader) Unload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateLoaded {
		return errors.Wrapf(ErrNotLoaded, "unload requested in state %s", l.state)
	}

	l.state = StateUnloading

	if l.instance != nil {
		if fin, ok := l.instance.(pluginapi.Finalizer); ok {
			if err := fin.Finalize(); err != nil {
				l.state = StateLoaded

				return errors.Wrap(err, "finalize")
			}
		}

		l.instance = nil
		l.extensions = nil
		l.generation.Add(1)
	}

	if err := l.module.Release(); err != nil {
		l.state = StateLoaded

		return errors.Wrap(err, "release module")
	}

	l.module = nil
	l.state = StateUnloaded

	l.log.Info("plugin unloaded")

	return nil
}

// Close disposes the loader. Closing a loader that is not unloaded is a
// logic error: items produced by the module may still be referenced by
// live queries. The error is reported loudly, never panicked.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateUnloaded && l.state != StateFailed {
		err := errors.Wrapf(ErrNotUnloaded, "close requested in state %s", l.state)

		l.log.Error("logic error: loader closed while plugin is live",
			"state", l.state.String(),
			"error", err,
		)

		return err
	}

	if l.module != nil {
		if err := l.module.Release(); err != nil {
			return errors.Wrap(err, "release module")
		}

		l.module = nil
	}

	return nil
}
