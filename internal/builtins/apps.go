package builtins

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/luma-launcher/luma/pkg/extension"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

// appsPlugin indexes executables on the search path and offers them as
// launchable items.
type appsPlugin struct {
	handler *appsHandler
}

func newAppsPlugin(searchPath string) *appsPlugin {
	return &appsPlugin{
		handler: &appsHandler{dirs: filepath.SplitList(searchPath)},
	}
}

func (p *appsPlugin) Initialize() error {
	p.handler.index = indexExecutables(p.handler.dirs)

	return nil
}

func (p *appsPlugin) Extensions() []extension.Extension {
	return []extension.Extension{p.handler}
}

type appsHandler struct {
	dirs  []string
	index []application
}

type application struct {
	name string
	path string
}

func (h *appsHandler) ID() string { return "apps" }

func (h *appsHandler) Name() string { return "Applications" }

func (h *appsHandler) Description() string {
	return "Find and launch installed applications"
}

func (h *appsHandler) DefaultTrigger() string { return "apps " }

func (h *appsHandler) AllowTriggerRemap() bool { return true }

func (h *appsHandler) Synopsis() string { return "<application>" }

func (h *appsHandler) Category() extension.Category { return extension.CategoryIO }

func (h *appsHandler) HandleTriggerQuery(_ context.Context, q extension.TriggerQuery) {
	for _, ranked := range h.match(q.String()) {
		if !q.IsValid() {
			return
		}

		q.Add(ranked.Item)
	}
}

func (h *appsHandler) HandleGlobalQuery(_ context.Context, q extension.GlobalQuery) []extension.RankItem {
	return h.match(q.String())
}

// match scores indexed applications against the query. Name prefixes score
// by covered fraction, other substring hits score half of that.
func (h *appsHandler) match(query string) []extension.RankItem {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var results []extension.RankItem

	for _, app := range h.index {
		name := strings.ToLower(app.name)

		var score float32

		switch {
		case strings.HasPrefix(name, needle):
			score = float32(len(needle)) / float32(len(name))
		case strings.Contains(name, needle):
			score = float32(len(needle)) / float32(len(name)) / 2
		default:
			continue
		}

		results = append(results, extension.RankItem{
			Item:  launchItem(app),
			Score: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

func launchItem(app application) extension.Item {
	path := app.path

	return extension.NewItem(
		"apps:"+app.name,
		app.name,
		path,
		extension.Action{
			ID:   "launch",
			Text: "Launch " + app.name,
			Run: func() error {
				cmd := exec.Command(path)

				return cmd.Start()
			},
		},
	).WithInputActionText(app.name)
}

// indexExecutables collects executable regular files from dirs, first hit
// per name wins, sorted by name.
func indexExecutables(dirs []string) []application {
	seen := make(map[string]bool)

	var apps []application

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || seen[entry.Name()] {
				continue
			}

			info, err := entry.Info()
			if err != nil || info.Mode()&0o111 == 0 {
				continue
			}

			seen[entry.Name()] = true
			apps = append(apps, application{
				name: entry.Name(),
				path: filepath.Join(dir, entry.Name()),
			})
		}
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].name < apps[j].name })

	return apps
}

var (
	_ pluginapi.Instance    = (*appsPlugin)(nil)
	_ pluginapi.Initializer = (*appsPlugin)(nil)

	_ extension.GlobalQueryHandler = (*appsHandler)(nil)
)
