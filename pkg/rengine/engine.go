// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package rengine is the public facade over this engine's internals: a
// caller picks a forge Source, fetches a change set, and hands it to
// Evaluate alongside a rule program's text to get back an approve/deny
// verdict. Everything below internal/ is deliberately unexported; this
// package is the only supported integration surface, the same layering the
// teacher uses between its modules/ and pkg/zeta packages.
package rengine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fensak-io/rengine/internal/errkind"
	"github.com/fensak-io/rengine/internal/forge/combined"
	"github.com/fensak-io/rengine/internal/forge/restfile"
	"github.com/fensak-io/rengine/internal/patch"
	"github.com/fensak-io/rengine/internal/sandbox"
)

// Re-exported so callers never need to import internal/patch directly.
type (
	Patch             = patch.Patch
	PatchOp           = patch.PatchOp
	Hunk              = patch.Hunk
	ObjectDiff        = patch.ObjectDiff
	ObjectChange      = patch.ObjectChange
	LinkedPR          = patch.LinkedPR
	ChangeSetMetadata = patch.ChangeSetMetadata
	ChangeSet         = patch.PullRequestPatches
)

const (
	PatchInsert   = patch.PatchInsert
	PatchDelete   = patch.PatchDelete
	PatchModified = patch.PatchModified
)

// GitHubSource fetches change sets from a REST-per-file forge: a
// changed-files listing with an embedded unified diff per entry, the GitHub
// pulls API shape.
type GitHubSource struct {
	client *restfile.Client
	opts   restfile.Options
}

// NewGitHubSource builds a GitHubSource against baseURL (e.g.
// "https://api.github.com") using token for bearer authentication.
func NewGitHubSource(baseURL, token string, legacyRenameShape bool) (*GitHubSource, error) {
	client, err := restfile.NewClient(baseURL, token)
	if err != nil {
		return nil, err
	}
	return &GitHubSource{client: client, opts: restfile.Options{LegacyRenameShape: legacyRenameShape}}, nil
}

// FetchChangeSet assembles the normalized ChangeSet for pull request num in
// owner/repo.
func (s *GitHubSource) FetchChangeSet(ctx context.Context, owner, repo string, num int) (*ChangeSet, error) {
	return restfile.Assemble(ctx, s.client, owner, repo, num, s.opts)
}

// BitbucketSource fetches change sets from a combined-diff forge: one
// concatenated diff blob per pull request, the Bitbucket Cloud shape.
type BitbucketSource struct {
	client *combined.Client
}

// NewBitbucketSource builds a BitbucketSource against baseURL (e.g.
// "https://api.bitbucket.org") using token for bearer authentication.
func NewBitbucketSource(baseURL, token string) (*BitbucketSource, error) {
	client, err := combined.NewClient(baseURL, token)
	if err != nil {
		return nil, err
	}
	return &BitbucketSource{client: client}, nil
}

// FetchChangeSet assembles the normalized ChangeSet for pull request num in
// owner/repo.
func (s *BitbucketSource) FetchChangeSet(ctx context.Context, owner, repo string, num int) (*ChangeSet, error) {
	return combined.Assemble(ctx, s.client, owner, repo, num, combined.Options{})
}

// EvaluateOptions configures one rule evaluation.
type EvaluateOptions struct {
	// MaxRuntime bounds wall-clock execution time (MAX_RUNTIME_MS). Defaults
	// to sandbox.DefaultMaxRuntime.
	MaxRuntime time.Duration
	// CaptureLogs, when true, returns the rule's console.* output in
	// Verdict.Logs instead of discarding it.
	CaptureLogs bool
	Logger      *logrus.Entry
}

// Verdict is the outcome of evaluating one rule against one ChangeSet.
type Verdict struct {
	Approve bool
	Logs    []sandbox.LogEntry
}

// Evaluate runs programText's main(patches, metadata) entry point against
// changeSet under a hard timeout and returns the rule's approve/deny
// verdict. See internal/errkind for the failure kinds this can return.
func Evaluate(ctx context.Context, programText string, changeSet *ChangeSet, opts EvaluateOptions) (*Verdict, error) {
	if changeSet == nil {
		return nil, errkind.NewEngineInternalError("nil change set")
	}

	logMode := sandbox.LogDrop
	if opts.CaptureLogs {
		logMode = sandbox.LogCapture
	}

	result, err := sandbox.RunRule(ctx, programText, changeSet.PatchList, changeSet.Metadata, &sandbox.Options{
		LogMode:    logMode,
		MaxRuntime: opts.MaxRuntime,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Verdict{Approve: result.Approve, Logs: result.Logs}, nil
}
