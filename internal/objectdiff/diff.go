// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package objectdiff

// Diff produces the minimal Change sequence such that applying it to
// previous reproduces current. Both arguments must already be normalized
// trees as returned by Parse.
func Diff(previous, current any) []Change {
	var changes []Change
	walk(nil, previous, current, &changes)
	return changes
}

func walk(path []PathStep, previous, current any, changes *[]Change) {
	prevObj, prevIsObj := previous.(map[string]any)
	curObj, curIsObj := current.(map[string]any)
	if prevIsObj && curIsObj {
		walkObject(path, prevObj, curObj, changes)
		return
	}

	prevArr, prevIsArr := previous.([]any)
	curArr, curIsArr := current.([]any)
	if prevIsArr && curIsArr {
		walkArray(path, prevArr, curArr, changes)
		return
	}

	if scalarEqual(previous, current) {
		return
	}
	*changes = append(*changes, Change{
		Type:     ChangeChange,
		Path:     clonePath(path),
		Value:    current,
		OldValue: previous,
	})
}

func walkObject(path []PathStep, previous, current map[string]any, changes *[]Change) {
	for key, prevVal := range previous {
		curVal, ok := current[key]
		if !ok {
			*changes = append(*changes, Change{
				Type:     ChangeRemove,
				Path:     clonePath(append(path, PathStep{Key: key})),
				OldValue: prevVal,
			})
			continue
		}
		if sameContainerKind(prevVal, curVal) {
			if !deepEqual(prevVal, curVal) {
				walk(append(path, PathStep{Key: key}), prevVal, curVal, changes)
			}
			continue
		}
		if !scalarEqual(prevVal, curVal) {
			*changes = append(*changes, Change{
				Type:     ChangeChange,
				Path:     clonePath(append(path, PathStep{Key: key})),
				Value:    curVal,
				OldValue: prevVal,
			})
		}
	}
	for key, curVal := range current {
		if _, ok := previous[key]; ok {
			continue
		}
		*changes = append(*changes, Change{
			Type:  ChangeCreate,
			Path:  clonePath(append(path, PathStep{Key: key})),
			Value: curVal,
		})
	}
}

func walkArray(path []PathStep, previous, current []any, changes *[]Change) {
	n := len(previous)
	if len(current) < n {
		n = len(current)
	}
	for i := 0; i < n; i++ {
		prevVal, curVal := previous[i], current[i]
		if sameContainerKind(prevVal, curVal) {
			if !deepEqual(prevVal, curVal) {
				walk(append(path, PathStep{Index: i, IsIndex: true}), prevVal, curVal, changes)
			}
			continue
		}
		if !scalarEqual(prevVal, curVal) {
			*changes = append(*changes, Change{
				Type:     ChangeChange,
				Path:     clonePath(append(path, PathStep{Index: i, IsIndex: true})),
				Value:    curVal,
				OldValue: prevVal,
			})
		}
	}
	for i := n; i < len(previous); i++ {
		*changes = append(*changes, Change{
			Type:     ChangeRemove,
			Path:     clonePath(append(path, PathStep{Index: i, IsIndex: true})),
			OldValue: previous[i],
		})
	}
	for i := n; i < len(current); i++ {
		*changes = append(*changes, Change{
			Type:  ChangeCreate,
			Path:  clonePath(append(path, PathStep{Index: i, IsIndex: true})),
			Value: current[i],
		})
	}
}

// sameContainerKind reports whether a and b are both maps or both slices
// (the condition under which walkObject/walkArray recurse instead of
// emitting a flat CHANGE).
func sameContainerKind(a, b any) bool {
	_, aObj := a.(map[string]any)
	_, bObj := b.(map[string]any)
	if aObj && bObj {
		return true
	}
	_, aArr := a.([]any)
	_, bArr := b.([]any)
	return aArr && bArr
}

// scalarEqual implements strict scalar equality: differing types are never
// equal (1 != "1"), and null equals only null.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return false
	}
}

func deepEqual(a, b any) bool {
	aObj, aIsObj := a.(map[string]any)
	bObj, bIsObj := b.(map[string]any)
	if aIsObj && bIsObj {
		if len(aObj) != len(bObj) {
			return false
		}
		for k, av := range aObj {
			bv, ok := bObj[k]
			if !ok || !deepEqual(av, bv) {
				return false
			}
		}
		return true
	}
	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		if len(aArr) != len(bArr) {
			return false
		}
		for i := range aArr {
			if !deepEqual(aArr[i], bArr[i]) {
				return false
			}
		}
		return true
	}
	if aIsObj != bIsObj || aIsArr != bIsArr {
		return false
	}
	return scalarEqual(a, b)
}

func clonePath(path []PathStep) []PathStep {
	out := make([]PathStep, len(path))
	copy(out, path)
	return out
}
