// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package objectdiff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff_ScalarChange(t *testing.T) {
	previous := map[string]any{"subapp": "v1.1.0"}
	current := map[string]any{"subapp": "v1.2.0"}
	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeChange, changes[0].Type)
	require.Equal(t, []PathStep{{Key: "subapp"}}, changes[0].Path)
	require.Equal(t, "v1.2.0", changes[0].Value)
	require.Equal(t, "v1.1.0", changes[0].OldValue)
}

func TestDiff_CreateAndRemove(t *testing.T) {
	previous := map[string]any{"a": 1.0}
	current := map[string]any{"b": 2.0}
	changes := Diff(previous, current)
	require.Len(t, changes, 2)

	var created, removed bool
	for _, c := range changes {
		switch c.Type {
		case ChangeCreate:
			created = true
			require.Equal(t, "b", c.Path[0].Key)
			require.Equal(t, 2.0, c.Value)
		case ChangeRemove:
			removed = true
			require.Equal(t, "a", c.Path[0].Key)
			require.Equal(t, 1.0, c.OldValue)
		}
	}
	require.True(t, created)
	require.True(t, removed)
}

func TestDiff_NestedRecursion(t *testing.T) {
	previous := map[string]any{"nested": map[string]any{"x": 1.0}}
	current := map[string]any{"nested": map[string]any{"x": 2.0}}
	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, []PathStep{{Key: "nested"}, {Key: "x"}}, changes[0].Path)
}

func TestDiff_ArrayPositional(t *testing.T) {
	previous := map[string]any{"items": []any{1.0, 2.0}}
	current := map[string]any{"items": []any{1.0, 2.0, 3.0}}
	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeCreate, changes[0].Type)
	require.Equal(t, []PathStep{{Key: "items"}, {Index: 2, IsIndex: true}}, changes[0].Path)
}

func TestDiff_ArrayShrink(t *testing.T) {
	previous := []any{1.0, 2.0, 3.0}
	current := []any{1.0, 2.0}
	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeRemove, changes[0].Type)
	require.Equal(t, 2, changes[0].Path[0].Index)
}

func TestDiff_StrictScalarEquality(t *testing.T) {
	// 1 and "1" are never equal, regardless of value.
	previous := map[string]any{"v": 1.0}
	current := map[string]any{"v": "1"}
	changes := Diff(previous, current)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeChange, changes[0].Type)
}

func TestDiff_NullOnlyEqualsNull(t *testing.T) {
	previous := map[string]any{"v": nil}
	current := map[string]any{"v": nil}
	require.Empty(t, Diff(previous, current))

	current2 := map[string]any{"v": false}
	changes := Diff(previous, current2)
	require.Len(t, changes, 1)
}

func TestDiff_NoChanges(t *testing.T) {
	previous := map[string]any{"a": []any{1.0, map[string]any{"b": "x"}}}
	current := map[string]any{"a": []any{1.0, map[string]any{"b": "x"}}}
	require.Empty(t, Diff(previous, current))
}

func TestParse_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		v, err := Parse(FormatJSON, "a.json", []byte(`{"x": 1}`))
		require.NoError(t, err)
		require.Equal(t, map[string]any{"x": 1.0}, v)
	})
	t.Run("yaml", func(t *testing.T) {
		v, err := Parse(FormatYAML, "a.yaml", []byte("x: 1\n"))
		require.NoError(t, err)
		require.Equal(t, map[string]any{"x": 1.0}, v)
	})
	t.Run("toml", func(t *testing.T) {
		v, err := Parse(FormatTOML, "a.toml", []byte("x = 1\n"))
		require.NoError(t, err)
		require.Equal(t, map[string]any{"x": 1.0}, v)
	})
	t.Run("invalid json fails", func(t *testing.T) {
		_, err := Parse(FormatJSON, "a.json", []byte(`{not valid`))
		require.Error(t, err)
	})
}

func TestDetectFormat(t *testing.T) {
	require.Equal(t, FormatJSON, DetectFormat("a/b.json"))
	require.Equal(t, FormatJSON5, DetectFormat("a/b.json5"))
	require.Equal(t, FormatYAML, DetectFormat("a/b.yaml"))
	require.Equal(t, FormatYAML, DetectFormat("a/b.yml"))
	require.Equal(t, FormatTOML, DetectFormat("a/b.toml"))
	require.Equal(t, FormatUnknown, DetectFormat("a/b.txt"))
}
