package plugin

import "github.com/invopop/jsonschema"

// LoadType controls when a module is loaded and whether it may be torn down.
type LoadType int

const (
	// LoadTypeUser marks an ordinary plugin, loaded and unloaded on demand.
	LoadTypeUser LoadType = iota

	// LoadTypeFrontend marks a presentation-boundary plugin. Frontend
	// plugins are loaded before any query-handler plugin.
	LoadTypeFrontend

	// LoadTypeNoUnload marks a plugin whose native state is unsafe to tear
	// down. Once loaded it is excluded from bulk unload.
	LoadTypeNoUnload
)

// ParseLoadType maps a manifest loadtype value to its LoadType. Unknown and
// empty values map to LoadTypeUser.
func ParseLoadType(s string) LoadType {
	switch s {
	case "frontend":
		return LoadTypeFrontend
	case "nounload":
		return LoadTypeNoUnload
	default:
		return LoadTypeUser
	}
}

// JSONSchema documents the manifest spelling of load types.
func (LoadType) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Enum:        []any{"user", "frontend", "nounload"},
		Description: "Load ordering and teardown policy",
	}
}

// String returns the manifest spelling of the load type.
func (t LoadType) String() string {
	switch t {
	case LoadTypeFrontend:
		return "frontend"
	case LoadTypeNoUnload:
		return "nounload"
	default:
		return "user"
	}
}
