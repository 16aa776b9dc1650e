// Package cfg decodes raw driver config maps (from TOML) into typed structs.
package cfg

import (
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes input into c and returns the sorted list of keys c did not consume.
// Durations accept Go duration strings ("2s") and numeric strings are weakly
// converted, so TOML authors may quote numbers. If c implements Setter,
// ApplyDefaults() runs after decoding, including for a nil input map.
func Decode(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, err
	}
	if input != nil {
		if err := decoder.Decode(input); err != nil {
			return nil, err
		}
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}
