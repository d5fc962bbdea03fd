// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package patch defines the canonical sum types used to represent a
// pull-request change set: per-file line-diff hunks, structured
// configuration object diffs, and change-set metadata. Every type here is
// immutable once constructed by an adapter; the sandbox interpreter only
// ever sees a serialized snapshot.
package patch

import "github.com/fensak-io/rengine/internal/objectdiff"

// LineOp classifies one line within a Hunk's diffOperations.
type LineOp int8

const (
	LineUnknown LineOp = iota
	LineInsert
	LineDelete
	LineModified
	LineUntouched
)

func (op LineOp) String() string {
	switch op {
	case LineInsert:
		return "Insert"
	case LineDelete:
		return "Delete"
	case LineModified:
		return "Modified"
	case LineUntouched:
		return "Untouched"
	default:
		return "Unknown"
	}
}

// LineDiff is one entry in a Hunk's diffOperations. newText is non-empty
// only when op == LineModified; for every other op it is the empty string.
// For LineInsert the content is in Text; for LineDelete the removed content
// is in Text.
type LineDiff struct {
	Op      LineOp `json:"op"`
	Text    string `json:"text"`
	NewText string `json:"newText"`
}

// Hunk is a contiguous region of a unified diff with position metadata.
//
// Invariants (enforced by the udiff parser, not re-checked here):
//   - count of entries with Op in {Delete, Modified, Untouched} == OriginalLength
//   - count of entries with Op in {Insert, Modified, Untouched} == UpdatedLength
//   - OriginalStart >= 1 when OriginalLength > 0, else 0 (and likewise for Updated)
type Hunk struct {
	OriginalStart  int        `json:"originalStart"`
	OriginalLength int        `json:"originalLength"`
	UpdatedStart   int        `json:"updatedStart"`
	UpdatedLength  int        `json:"updatedLength"`
	DiffOperations []LineDiff `json:"diffOperations"`
}

// PatchOp classifies the kind of change a Patch represents at the file
// level.
type PatchOp int8

const (
	PatchUnknown PatchOp = iota
	PatchInsert
	PatchDelete
	PatchModified
)

func (op PatchOp) String() string {
	switch op {
	case PatchInsert:
		return "Insert"
	case PatchDelete:
		return "Delete"
	case PatchModified:
		return "Modified"
	default:
		return "Unknown"
	}
}

// Patch is the per-file entry in a PullRequestPatches.patchList.
// ObjectDiff is non-nil only when Path's extension is a recognized
// structured-configuration format and Op admits parsing under that op's
// rules (see internal/objectdiff).
type Patch struct {
	Path       string     `json:"path"`
	Op         PatchOp    `json:"op"`
	Additions  int        `json:"additions"`
	Deletions  int        `json:"deletions"`
	Diff       []Hunk     `json:"diff"`
	ObjectDiff *ObjectDiff `json:"objectDiff"`
}

// ChangeKind, PathStep, and ObjectChange alias the structural-diff types
// defined in internal/objectdiff, which this package's BuildObjectDiff
// (build.go) already depends on to compute them.
type ChangeKind = objectdiff.ChangeKind

const (
	ChangeCreate = objectdiff.ChangeCreate
	ChangeRemove = objectdiff.ChangeRemove
	ChangeChange = objectdiff.ChangeChange
)

type PathStep = objectdiff.PathStep

type ObjectChange = objectdiff.Change

// ObjectDiff is the structural diff between two parsed configuration trees.
//
// Invariants: for PatchInsert, Previous == nil,
// Current == parsed tree, Diff == []. For Delete, Previous == parsed tree,
// Current == nil, Diff == []. For Modified, both are non-nil and Diff
// enumerates the changes. Diff has no `omitempty`: an empty slice must
// marshal as "diff":[], never "diff":null, since rule programs index and
// iterate it unconditionally.
type ObjectDiff struct {
	Previous any            `json:"previous"`
	Current  any            `json:"current"`
	Diff     []ObjectChange `json:"diff"`
}

// LinkedPR references another pull request that the host PR depends on,
// extracted from front matter (internal/frontmatter). Repo == "" means the
// same repository as the host PR. IsMerged implies IsClosed.
type LinkedPR struct {
	Repo     string `json:"repo"`
	PRNum    int    `json:"prNum"`
	IsMerged bool   `json:"isMerged"`
	IsClosed bool   `json:"isClosed"`
}

// ChangeSetMetadata describes the pull request a patch list belongs to.
type ChangeSetMetadata struct {
	SourceBranch string     `json:"sourceBranch"`
	TargetBranch string     `json:"targetBranch"`
	LinkedPRs    []LinkedPR `json:"linkedPRs"`
}

// PullRequestPatches is the normalized input handed to the sandbox
// interpreter: a change-set's metadata plus its ordered patch list.
type PullRequestPatches struct {
	Metadata  ChangeSetMetadata `json:"metadata"`
	PatchList []Patch           `json:"patchList"`
}
