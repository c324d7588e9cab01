package plugin

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// rescanDebounce coalesces bursts of file events into one rescan.
const rescanDebounce = 200 * time.Millisecond

// Watch observes the provider's search paths and rescans when module files
// appear or disappear. onChange, if non-nil, runs after every rescan.
// Loading newly discovered plugins stays an explicit host decision. Watch
// blocks until ctx is cancelled.
func (p *Provider) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	watching := 0

	for _, dir := range p.paths {
		if _, statErr := os.Stat(dir); statErr != nil {
			p.log.Debug("search path not watchable", "path", dir, "error", statErr)

			continue
		}

		if addErr := w.Add(dir); addErr != nil {
			p.log.Error("watch failed", "path", dir, "error", addErr)

			continue
		}

		watching++
	}

	if watching == 0 {
		return errors.New("no watchable search paths")
	}

	var debounce *time.Timer

	rescan := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Ext(event.Name) != ".so" {
				continue
			}

			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) &&
				!event.Op.Has(fsnotify.Rename) && !event.Op.Has(fsnotify.Write) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(rescanDebounce, func() {
				select {
				case rescan <- struct{}{}:
				default:
				}
			})

		case <-rescan:
			if err := p.Scan(); err != nil {
				p.log.Error("rescan failed", "error", err)
			} else if onChange != nil {
				onChange()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}

			p.log.Error("watch error", "error", watchErr)
		}
	}
}
