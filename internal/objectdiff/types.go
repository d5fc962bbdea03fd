// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package objectdiff

import "encoding/json"

// ChangeKind enumerates the structural-diff operation kinds emitted for a
// single key or index step within a diff.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "CREATE"
	ChangeRemove ChangeKind = "REMOVE"
	ChangeChange ChangeKind = "CHANGE"
)

// PathStep is one step of a Change's Path: either a map key (string) or a
// sequence index (int). Exactly one of Key/Index is meaningful per step;
// IsIndex distinguishes them since JSON has no sum-type step encoding.
type PathStep struct {
	Key     string
	Index   int
	IsIndex bool
}

// MarshalJSON encodes a PathStep as either a bare string or a bare number: a
// sequence of (string | integer) key-steps, with no wrapper object to
// distinguish the two cases.
func (s PathStep) MarshalJSON() ([]byte, error) {
	if s.IsIndex {
		return json.Marshal(s.Index)
	}
	return json.Marshal(s.Key)
}

// UnmarshalJSON accepts either a bare string or a bare number, the inverse
// of MarshalJSON.
func (s *PathStep) UnmarshalJSON(data []byte) error {
	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*s = PathStep{Index: asInt, IsIndex: true}
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return err
	}
	*s = PathStep{Key: asString}
	return nil
}

// Change is one structural edit within a Diff result. CREATE carries Value
// only; REMOVE carries OldValue only; CHANGE carries both.
type Change struct {
	Type     ChangeKind `json:"type"`
	Path     []PathStep `json:"path"`
	Value    any        `json:"value,omitempty"`
	OldValue any        `json:"oldValue,omitempty"`
}
