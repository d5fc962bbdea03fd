// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package restfile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/frontmatter"
	"github.com/fensak-io/rengine/internal/objectdiff"
	"github.com/fensak-io/rengine/internal/patch"
	"github.com/fensak-io/rengine/internal/udiff"
)

// Options configures one Assemble call.
type Options struct {
	// MaxPages bounds how many pages Assemble will fetch from the changed
	// files listing before giving up (default 100). Hitting the cap is
	// logged, never silent.
	MaxPages int
	// LegacyRenameShape, when true, emits a rename as a bare two-record
	// Delete + Insert pair instead of this engine's default three-record
	// normalization (Delete + Insert + Modified-with-diff); see DESIGN.md.
	LegacyRenameShape bool
}

// Assemble builds a PullRequestPatches for pull request number num in
// owner/repo by paging through its changed-files listing and, where needed,
// fetching base/head file contents for structured object diffs.
func Assemble(ctx context.Context, client *Client, owner, repo string, num int, opts Options) (*patch.PullRequestPatches, error) {
	pr, err := client.getPullRequest(ctx, owner, repo, num)
	if err != nil {
		return nil, errkind.NewEngineInternalError(err.Error())
	}

	linkedPRs, err := resolveLinkedPRs(ctx, client, owner, repo, pr.Body)
	if err != nil {
		return nil, err
	}

	files, err := client.listChangedFiles(ctx, owner, repo, num, opts.MaxPages)
	if err != nil {
		return nil, errkind.NewEngineInternalError(err.Error())
	}

	headRef := pr.Head.Ref
	baseRef := pr.Base.Ref

	var patches []patch.Patch
	for _, f := range files {
		built, err := buildPatchesForFile(ctx, client, owner, repo, baseRef, headRef, f, opts)
		if err != nil {
			return nil, err
		}
		patches = append(patches, built...)
	}

	return &patch.PullRequestPatches{
		Metadata: patch.ChangeSetMetadata{
			SourceBranch: headRef,
			TargetBranch: baseRef,
			LinkedPRs:    linkedPRs,
		},
		PatchList: patches,
	}, nil
}

func buildPatchesForFile(ctx context.Context, client *Client, owner, repo, baseRef, headRef string, f changedFileResponse, opts Options) ([]patch.Patch, error) {
	switch f.Status {
	case "added", "copied":
		return buildSimplePatch(ctx, client, owner, repo, baseRef, headRef, patch.PatchInsert, f)
	case "removed":
		return buildSimplePatch(ctx, client, owner, repo, baseRef, headRef, patch.PatchDelete, f)
	case "changed", "modified":
		return buildSimplePatch(ctx, client, owner, repo, baseRef, headRef, patch.PatchModified, f)
	case "renamed":
		return buildRenamePatches(ctx, client, owner, repo, baseRef, headRef, f, opts)
	default:
		return nil, errkind.NewUnknownFileStatus(f.Status)
	}
}

func buildSimplePatch(ctx context.Context, client *Client, owner, repo, baseRef, headRef string, op patch.PatchOp, f changedFileResponse) ([]patch.Patch, error) {
	hunks, err := udiff.Parse(f.Patch)
	if err != nil {
		return nil, err
	}

	var objDiff *patch.ObjectDiff
	if objectdiff.DetectFormat(f.Filename) != objectdiff.FormatUnknown {
		previous, current, err := fetchObjectDiffContent(ctx, client, owner, repo, baseRef, headRef, f.Filename, op)
		if err != nil {
			return nil, err
		}
		objDiff, err = patch.BuildObjectDiff(f.Filename, op, previous, current)
		if err != nil {
			return nil, err
		}
	}

	return []patch.Patch{{
		Path:       f.Filename,
		Op:         op,
		Additions:  f.Additions,
		Deletions:  f.Deletions,
		Diff:       hunks,
		ObjectDiff: objDiff,
	}}, nil
}

// buildRenamePatches normalizes the rename shape to three records (Delete
// old path, Insert new path, Modified new path carrying the content diff)
// unless Options.LegacyRenameShape asks for the bare two-record form. See
// DESIGN.md for the rationale.
func buildRenamePatches(ctx context.Context, client *Client, owner, repo, baseRef, headRef string, f changedFileResponse, opts Options) ([]patch.Patch, error) {
	if f.PreviousFilename == "" {
		return nil, errkind.NewInconsistentForgeResponse("renamed file missing previous_filename")
	}

	deletePatch := patch.Patch{Path: f.PreviousFilename, Op: patch.PatchDelete}
	insertPatch := patch.Patch{Path: f.Filename, Op: patch.PatchInsert}

	if opts.LegacyRenameShape {
		return []patch.Patch{deletePatch, insertPatch}, nil
	}

	hunks, err := udiff.Parse(f.Patch)
	if err != nil {
		return nil, err
	}

	var objDiff *patch.ObjectDiff
	if objectdiff.DetectFormat(f.Filename) != objectdiff.FormatUnknown {
		previousContent, currentContent, err := fetchContentPair(ctx, client, owner, repo, baseRef, headRef, f.PreviousFilename, f.Filename)
		if err != nil {
			return nil, err
		}
		objDiff, err = patch.BuildObjectDiff(f.Filename, patch.PatchModified, previousContent, currentContent)
		if err != nil {
			return nil, err
		}
	}
	modifiedPatch := patch.Patch{
		Path:       f.Filename,
		Op:         patch.PatchModified,
		Additions:  f.Additions,
		Deletions:  f.Deletions,
		Diff:       hunks,
		ObjectDiff: objDiff,
	}
	return []patch.Patch{deletePatch, insertPatch, modifiedPatch}, nil
}

// fetchObjectDiffContent fetches exactly the sides BuildObjectDiff needs for
// op: head-only for Insert, base-only for Delete, both for Modified.
func fetchObjectDiffContent(ctx context.Context, client *Client, owner, repo, baseRef, headRef, path string, op patch.PatchOp) (previous, current []byte, err error) {
	switch op {
	case patch.PatchInsert:
		current, err = client.getFileContents(ctx, owner, repo, path, headRef)
		return nil, current, err
	case patch.PatchDelete:
		previous, err = client.getFileContents(ctx, owner, repo, path, baseRef)
		return previous, nil, err
	case patch.PatchModified:
		return fetchContentPair(ctx, client, owner, repo, baseRef, headRef, path, path)
	default:
		return nil, nil, nil
	}
}

// fetchContentPair fetches previousPath@baseRef and currentPath@headRef
// concurrently via errgroup, the teacher's own pattern for a fixed pair of
// independent fetches with joint error propagation (pkg/serve/odb/unpack.go,
// pkg/serve/odb/oss.go, pkg/serve/repo/push.go).
func fetchContentPair(ctx context.Context, client *Client, owner, repo, baseRef, headRef, previousPath, currentPath string) (previous, current []byte, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		previous, err = client.getFileContents(gctx, owner, repo, previousPath, baseRef)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = client.getFileContents(gctx, owner, repo, currentPath, headRef)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return previous, current, nil
}

func resolveLinkedPRs(ctx context.Context, client *Client, hostOwner, hostRepo, description string) ([]patch.LinkedPR, error) {
	refs, err := frontmatter.Extract(description)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	linked := make([]patch.LinkedPR, 0, len(refs))
	for _, ref := range refs {
		owner, repo := hostOwner, hostRepo
		if ref.Repo != "" {
			owner, repo = splitOwnerRepo(ref.Repo)
		}
		info, err := client.getPullRequest(ctx, owner, repo, ref.PRNum)
		if err != nil {
			return nil, errkind.NewEngineInternalError(err.Error())
		}
		linked = append(linked, patch.LinkedPR{
			Repo:     ref.Repo,
			PRNum:    ref.PRNum,
			IsMerged: info.Merged,
			IsClosed: info.Merged || info.State == "closed",
		})
	}
	return linked, nil
}

func splitOwnerRepo(full string) (owner, repo string) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}
