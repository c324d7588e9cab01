package builtins

import (
	"context"
	"net/url"
	"os/exec"

	"github.com/luma-launcher/luma/pkg/extension"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

const searchURL = "https://duckduckgo.com/?q="

// webSearchPlugin answers triggered queries and doubles as the catch-all
// fallback: any query can be sent to the browser.
type webSearchPlugin struct {
	handler *webSearchHandler
}

func newWebSearchPlugin() *webSearchPlugin {
	return &webSearchPlugin{handler: &webSearchHandler{openURL: openInBrowser}}
}

func (p *webSearchPlugin) Extensions() []extension.Extension {
	return []extension.Extension{p.handler}
}

type webSearchHandler struct {
	openURL func(url string) error
}

func (h *webSearchHandler) ID() string { return "websearch" }

func (h *webSearchHandler) Name() string { return "Web Search" }

func (h *webSearchHandler) Description() string {
	return "Search the web with your default browser"
}

func (h *webSearchHandler) DefaultTrigger() string { return "? " }

func (h *webSearchHandler) AllowTriggerRemap() bool { return true }

func (h *webSearchHandler) Synopsis() string { return "<search term>" }

func (h *webSearchHandler) Category() extension.Category { return extension.CategoryIO }

func (h *webSearchHandler) HandleTriggerQuery(_ context.Context, q extension.TriggerQuery) {
	if q.String() == "" {
		return
	}

	q.Add(h.searchItem(q.String()))
}

func (h *webSearchHandler) Fallbacks(query string) []extension.Item {
	if query == "" {
		return nil
	}

	return []extension.Item{h.searchItem(query)}
}

func (h *webSearchHandler) searchItem(query string) extension.Item {
	target := searchURL + url.QueryEscape(query)

	return extension.NewItem(
		"websearch:"+query,
		"Search the web for \""+query+"\"",
		target,
		extension.Action{
			ID:   "open",
			Text: "Open in browser",
			Run: func() error {
				return h.openURL(target)
			},
		},
	)
}

func openInBrowser(target string) error {
	return exec.Command("xdg-open", target).Start()
}

var (
	_ pluginapi.Instance        = (*webSearchPlugin)(nil)
	_ extension.QueryHandler    = (*webSearchHandler)(nil)
	_ extension.FallbackHandler = (*webSearchHandler)(nil)
)
