// Package builtins ships the plugins statically linked into the launcher.
// They are served through the builtin opener and take the same loader path
// as native modules, so validation, state tracking, and the stale-item guard
// apply to them too.
package builtins

import (
	"os"

	"github.com/luma-launcher/luma/internal/plugin"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

// Registry returns the builtin plugins keyed by id.
func Registry() map[string]plugin.Builtin {
	return map[string]plugin.Builtin{
		"apps": {
			Manifest: manifest("apps", "Applications", "Find and launch installed applications"),
			New: func() pluginapi.Instance {
				return newAppsPlugin(os.Getenv("PATH"))
			},
		},
		"websearch": {
			Manifest: manifest("websearch", "Web Search", "Search the web with your default browser"),
			New: func() pluginapi.Instance {
				return newWebSearchPlugin()
			},
		},
	}
}

func manifest(id, name, description string) map[string]any {
	return map[string]any{
		"iid":         pluginapi.InterfaceID,
		"id":          id,
		"version":     "1.0.0",
		"name":        name,
		"description": description,
		"license":     "MIT",
		"url":         "https://github.com/luma-launcher/luma",
		"loadtype":    "nounload",
	}
}
