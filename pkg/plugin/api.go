// Package plugin provides the public API for luma plugin authors.
//
// A native plugin is a Go plugin (.so file) exporting two symbols:
//
//   - "Metadata": a map[string]any manifest block (keys below)
//   - "Plugin": a value implementing plugin.Instance
//
// Example:
//
//	package main
//
//	import (
//		"github.com/luma-launcher/luma/pkg/extension"
//		"github.com/luma-launcher/luma/pkg/plugin"
//	)
//
//	var Metadata = map[string]any{
//		"iid":         plugin.InterfaceID,
//		"id":          "files",
//		"version":     "1.0.0",
//		"name":        "Files",
//		"description": "Find and open files",
//	}
//
//	type filesPlugin struct{}
//
//	func (p *filesPlugin) Extensions() []extension.Extension { ... }
//
//	var Plugin filesPlugin
//
// The manifest requires id, version, name and description; license, url,
// authors, runtime_dependencies, binary_dependencies, credits and loadtype
// are optional. Name and description may carry localized variants using
// bracketed locale suffixes, e.g. "name[de]" or "name[de_AT]".
package plugin

import (
	"fmt"

	"github.com/luma-launcher/luma/pkg/extension"
)

const (
	// InterfaceMajor is the major version of the plugin interface. Plugins
	// built against a different major version are rejected.
	InterfaceMajor = 2

	// InterfaceMinor is the minor version of the plugin interface. Plugins
	// may target this or any older minor version.
	InterfaceMinor = 3

	// MetadataSymbol is the exported symbol holding the manifest block.
	MetadataSymbol = "Metadata"

	// InstanceSymbol is the exported symbol holding the plugin instance.
	InstanceSymbol = "Plugin"
)

// InterfaceID is the interface id current plugins must declare in their
// manifest, e.g. "org.luma.PluginInterface/2.3".
var InterfaceID = fmt.Sprintf("org.luma.PluginInterface/%d.%d", InterfaceMajor, InterfaceMinor)

// Instance is the interface a loaded plugin module must implement.
type Instance interface {
	// Extensions returns the extensions the plugin contributes. The slice
	// must be stable for the lifetime of the instance.
	Extensions() []extension.Extension
}

// Initializer is an optional Instance extension invoked after a successful
// load, before the plugin's extensions are registered.
type Initializer interface {
	Initialize() error
}

// Finalizer is an optional Instance extension invoked during unload, after
// the plugin's extensions have been deregistered.
type Finalizer interface {
	Finalize() error
}

// Metadata is the parsed and locale-resolved manifest of a loadable module.
type Metadata struct {
	// IID is the declared plugin interface id,
	// "org.<ns>.PluginInterface/<major>.<minor>".
	IID string `json:"iid" jsonschema:"required" mapstructure:"iid"`

	// ID is the unique plugin identifier, lowercase [a-z0-9_]+.
	ID string `json:"id" jsonschema:"required" mapstructure:"id"`

	// Version is the plugin version, "<major>[.<minor>].<patch>".
	Version string `json:"version" jsonschema:"required" mapstructure:"version"`

	// Name is the locale-resolved display name.
	Name string `json:"name" jsonschema:"required" mapstructure:"name"`

	// Description is the locale-resolved description.
	Description string `json:"description" jsonschema:"required" mapstructure:"description"`

	License string `json:"license,omitempty" mapstructure:"license"`

	URL string `json:"url,omitempty" mapstructure:"url"`

	Authors []string `json:"authors,omitempty" mapstructure:"authors"`

	// RuntimeDependencies lists runtime requirements of the module, for
	// diagnostics only; the loader does not resolve them.
	RuntimeDependencies []string `json:"runtime_dependencies,omitempty" mapstructure:"runtime_dependencies"`

	// BinaryDependencies lists executables the module expects on PATH.
	BinaryDependencies []string `json:"binary_dependencies,omitempty" mapstructure:"binary_dependencies"`

	// Credits lists third-party attributions.
	Credits []string `json:"credits,omitempty" mapstructure:"credits"`

	// LoadType controls load ordering and teardown policy.
	LoadType LoadType `json:"loadtype,omitempty" mapstructure:"-"`
}
