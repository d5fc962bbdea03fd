// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package patch

import (
	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/objectdiff"
)

// BuildObjectDiff assembles the ObjectDiff for one patch: nil when path's
// extension is not a recognized structured-configuration format; otherwise
// parses whichever of previousContent/currentContent the op requires and
// runs the structural diff. Any parser failure fails the enclosing patch
// assembly with errkind.ParseFailure, never silently.
func BuildObjectDiff(path string, op PatchOp, previousContent, currentContent []byte) (*ObjectDiff, error) {
	format := objectdiff.DetectFormat(path)
	if format == objectdiff.FormatUnknown {
		return nil, nil
	}

	switch op {
	case PatchInsert:
		current, err := objectdiff.Parse(format, path, currentContent)
		if err != nil {
			return nil, err
		}
		return &ObjectDiff{Current: current, Diff: []objectdiff.Change{}}, nil
	case PatchDelete:
		previous, err := objectdiff.Parse(format, path, previousContent)
		if err != nil {
			return nil, err
		}
		return &ObjectDiff{Previous: previous, Diff: []objectdiff.Change{}}, nil
	case PatchModified:
		previous, err := objectdiff.Parse(format, path, previousContent)
		if err != nil {
			return nil, err
		}
		current, err := objectdiff.Parse(format, path, currentContent)
		if err != nil {
			return nil, err
		}
		return &ObjectDiff{
			Previous: previous,
			Current:  current,
			Diff:     objectdiff.Diff(previous, current),
		}, nil
	default:
		return nil, errkind.NewEngineInternalError("BuildObjectDiff called with unknown PatchOp")
	}
}
