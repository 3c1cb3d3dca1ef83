package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Overlay merges configuration maps with explicit precedence.
//
// Later sources win per key. Recursion happens only into map[string]any values;
// every other value, slices included, is replaced wholesale. Inputs are not mutated.
func Overlay(srcs ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, src := range srcs {
		overlayInto(out, src)
	}
	return out
}

func overlayInto(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			merged := clone(existing)
			overlayInto(merged, sub)
			dst[k] = merged
			continue
		}
		dst[k] = clone(sub)
	}
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = clone(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// Decode maps an option map onto a typed struct using `mapstructure` tags.
// Input is weakly typed so values from env vars ("true", "30s") decode cleanly.
func Decode(input map[string]any, target any) error {
	return decode(input, target, "mapstructure")
}

// DecodeTagged is Decode with a custom struct tag (e.g. "json" for wire payloads).
func DecodeTagged(input map[string]any, target any, tag string) error {
	return decode(input, target, tag)
}

func decode(input map[string]any, target any, tag string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          tag,
		WeaklyTypedInput: true,
		Result:           target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
