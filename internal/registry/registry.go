// Package registry tracks the live set of extensions and notifies
// capability-typed watchers about membership changes.
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
)

var (
	// ErrDuplicateID is returned when adding an extension whose id is
	// already registered.
	ErrDuplicateID = errors.New("extension id already registered")

	// ErrNotFound is returned when removing an extension that is not
	// registered.
	ErrNotFound = errors.New("extension not registered")
)

// Watcher observes registry membership changes for one capability.
//
// Notifications are synchronous and delivered in watcher registration order.
// OnRemove fires before the extension is erased, so a watcher may still read
// its final state. Watchers may mutate the registry from within a callback;
// such nested mutations are deferred and applied after the current
// notification round completes.
type Watcher[T extension.Extension] interface {
	// OnAdd is called after an extension implementing T was registered.
	OnAdd(t T)

	// OnRemove is called before an extension implementing T is erased.
	OnRemove(t T)
}

type watcherEntry struct {
	id        uint64
	notifyAdd func(extension.Extension)
	notifyRem func(extension.Extension)
}

type opKind int

const (
	opAdd opKind = iota
	opRemove
)

type pendingOp struct {
	kind opKind
	ext  extension.Extension
}

// ExtensionRegistry owns the live set of extensions. Structural mutation is
// single-writer: add and remove must not be called from multiple goroutines
// concurrently. Watch dispatch is two-phase: the mutation is applied first,
// then watchers are notified with no registry lock held.
type ExtensionRegistry struct {
	log logger.Logger

	mu         sync.Mutex
	extensions map[string]extension.Extension
	watchers   []watcherEntry
	nextID     uint64
	notifying  bool
	pending    []pendingOp
}

// New creates an empty registry.
func New(log logger.Logger) *ExtensionRegistry {
	return &ExtensionRegistry{
		log:        log,
		extensions: make(map[string]extension.Extension),
	}
}

// Add registers ext and synchronously notifies matching watchers. It fails
// with ErrDuplicateID if the id is already present. When called from within
// a watcher callback the registration is deferred until the active
// notification round finishes.
func (r *ExtensionRegistry) Add(ext extension.Extension) error {
	r.mu.Lock()

	if _, ok := r.extensions[ext.ID()]; ok {
		r.mu.Unlock()

		return errors.Wrapf(ErrDuplicateID, "add %q", ext.ID())
	}

	if r.notifying {
		r.pending = append(r.pending, pendingOp{kind: opAdd, ext: ext})
		r.mu.Unlock()

		return nil
	}

	r.extensions[ext.ID()] = ext
	watchers := append([]watcherEntry(nil), r.watchers...)
	r.notifying = true
	r.mu.Unlock()

	r.log.Debug("extension registered", "id", ext.ID())

	for _, w := range watchers {
		w.notifyAdd(ext)
	}

	r.finishNotify()

	return nil
}

// Remove notifies matching watchers and then deregisters ext. It fails with
// ErrNotFound if the id is not present. Nested calls from watcher callbacks
// are deferred like Add.
func (r *ExtensionRegistry) Remove(ext extension.Extension) error {
	r.mu.Lock()

	registered, ok := r.extensions[ext.ID()]
	if !ok {
		r.mu.Unlock()

		return errors.Wrapf(ErrNotFound, "remove %q", ext.ID())
	}

	if r.notifying {
		r.pending = append(r.pending, pendingOp{kind: opRemove, ext: registered})
		r.mu.Unlock()

		return nil
	}

	watchers := append([]watcherEntry(nil), r.watchers...)
	r.notifying = true
	r.mu.Unlock()

	// Watchers see the extension in its final registered state.
	for _, w := range watchers {
		w.notifyRem(registered)
	}

	r.mu.Lock()
	delete(r.extensions, registered.ID())
	r.mu.Unlock()

	r.log.Debug("extension deregistered", "id", registered.ID())

	r.finishNotify()

	return nil
}

// finishNotify drains mutations queued during a notification round.
func (r *ExtensionRegistry) finishNotify() {
	r.mu.Lock()
	r.notifying = false
	queue := r.pending
	r.pending = nil
	r.mu.Unlock()

	for _, op := range queue {
		var err error

		if op.kind == opAdd {
			err = r.Add(op.ext)
		} else {
			err = r.Remove(op.ext)
		}

		if err != nil {
			r.log.Error("deferred registry mutation failed",
				"id", op.ext.ID(),
				"error", err,
			)
		}
	}
}

// Get returns the registered extension with the given id.
func (r *ExtensionRegistry) Get(id string) (extension.Extension, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.extensions[id]

	return ext, ok
}

// IDs returns the registered extension ids in ascending order.
func (r *ExtensionRegistry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.extensions))
	for id := range r.extensions {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// snapshot returns the current extensions in ascending id order.
func (r *ExtensionRegistry) snapshot() []extension.Extension {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.extensions))
	for id := range r.extensions {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	exts := make([]extension.Extension, 0, len(ids))
	for _, id := range ids {
		exts = append(exts, r.extensions[id])
	}

	return exts
}

// Watch subscribes w to membership changes of extensions implementing T.
// Extensions already registered are replayed through OnAdd so a watcher
// starting late observes the full live set. The returned function
// unsubscribes; after it returns no further notifications are delivered.
func Watch[T extension.Extension](r *ExtensionRegistry, w Watcher[T]) func() {
	r.mu.Lock()

	r.nextID++
	id := r.nextID

	entry := watcherEntry{
		id: id,
		notifyAdd: func(ext extension.Extension) {
			if t, ok := ext.(T); ok {
				w.OnAdd(t)
			}
		},
		notifyRem: func(ext extension.Extension) {
			if t, ok := ext.(T); ok {
				w.OnRemove(t)
			}
		},
	}

	r.watchers = append(r.watchers, entry)
	r.mu.Unlock()

	for _, ext := range r.snapshot() {
		entry.notifyAdd(ext)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		for i, e := range r.watchers {
			if e.id == id {
				r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)

				break
			}
		}
	}
}

// ExtensionsOf returns the registered extensions implementing T in ascending
// id order.
func ExtensionsOf[T extension.Extension](r *ExtensionRegistry) []T {
	var out []T

	for _, ext := range r.snapshot() {
		if t, ok := ext.(T); ok {
			out = append(out, t)
		}
	}

	return out
}
