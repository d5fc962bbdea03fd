// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package objectdiff parses structured configuration files (JSON, JSON5,
// YAML, TOML) into a normalized tree of maps/sequences/scalars and produces
// the minimal ObjectChange set between two such trees.
package objectdiff

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"

	"github.com/fensak-io/rengine/internal/errkind"
)

// Format is a recognized structured-configuration file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatJSON5
	FormatYAML
	FormatTOML
)

// DetectFormat returns the Format implied by path's extension, or
// FormatUnknown if path does not end in a recognized structured
// configuration extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".json5":
		return FormatJSON5
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatUnknown
	}
}

// Parse decodes data as the given format into a normalized tree: objects as
// map[string]any, sequences as []any, and scalars as nil/bool/float64/string.
// Any parser failure returns a *errkind.ParseFailure wrapping the underlying
// decode error.
func Parse(format Format, path string, data []byte) (any, error) {
	var (
		raw any
		err error
	)
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatJSON5:
		err = json5.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, errkind.NewInvalidPatch("unsupported structured configuration format")
	}
	if err != nil {
		return nil, errkind.NewParseFailure(path, err)
	}
	return normalize(raw), nil
}

// normalize recursively coerces a decoded tree into the scalar kinds this
// package compares: every numeric kind (int, int64, uint64, float32,
// float64, json.Number) becomes float64 so that the same logical number
// compares equal regardless of which parser produced it, and any
// map[interface{}]interface{} (an older YAML decoder shape) becomes
// map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[toStringKey(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	default:
		return v
	}
}

func toStringKey(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return ""
}
