package plugin

import (
	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"

	"github.com/luma-launcher/luma/pkg/plugin"
)

// ExtractMetadata decodes a raw manifest block into plugin.Metadata. Name
// and description are locale-resolved against the given locale, the load
// type is parsed from its manifest spelling. Decoding failures indicate a
// structurally broken manifest and are reported as ErrNotAPlugin; content
// problems are left to ValidateMetadata.
func ExtractMetadata(raw map[string]any, locale string) (plugin.Metadata, error) {
	var md plugin.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return plugin.Metadata{}, errors.Wrap(err, "build metadata decoder")
	}

	if err := decoder.Decode(raw); err != nil {
		return plugin.Metadata{}, errors.Wrapf(ErrNotAPlugin, "malformed manifest: %v", err)
	}

	md.Name = ResolveLocalized(raw, "name", locale)
	md.Description = ResolveLocalized(raw, "description", locale)

	if lt, ok := raw["loadtype"].(string); ok {
		md.LoadType = plugin.ParseLoadType(lt)
	}

	return md, nil
}
